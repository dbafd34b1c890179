package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices and balances are JSON numbers on the wire
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	RoleUser   = "user"
	RoleSeller = "seller"
	RoleAdmin  = "admin"

	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusBanned   = "banned"

	DepositPending  = "pending"
	DepositApproved = "approved"
	DepositRejected = "rejected"

	TxDeposit     = "deposit"
	TxPurchase    = "purchase"
	TxAdminAdjust = "admin_adjust"

	SettingTotalRevenue = "total_revenue"
)

type User struct {
	ID           uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	Email        string          `gorm:"uniqueIndex;not null"              json:"email"`
	PasswordHash string          `gorm:"not null"                          json:"-"`
	FullName     string          `gorm:"not null;default:''"               json:"full_name"`
	Avatar       string          `json:"avatar"`
	Gender       string          `json:"gender"`
	Bio          string          `json:"bio"`
	Phone        string          `json:"phone"`
	Role         string          `gorm:"not null;default:user;index"       json:"role"`
	Status       string          `gorm:"not null;default:active"           json:"status"`
	Balance      decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
	LastLogin    *time.Time      `json:"last_login"`
}

func (User) TableName() string { return "users" }

type Category struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null"                 json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null"     json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

func (Category) TableName() string { return "categories" }

type Product struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"          json:"id"`
	Slug          string          `gorm:"uniqueIndex;not null"              json:"slug"`
	Title         string          `gorm:"not null"                          json:"title"`
	Description   string          `json:"description"`
	Content       string          `json:"content"`
	Price         decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"price"`
	SellerID      uint            `gorm:"not null;index"                    json:"seller_id"`
	CategoryID    *uint           `gorm:"index"                             json:"category_id"`
	Status        string          `gorm:"not null;default:active;index"     json:"status"`
	PurchaseCount int             `gorm:"not null;default:0"                json:"purchase_count"`
	ViewCount     int             `gorm:"not null;default:0"                json:"view_count"`
	Thumbnail     string          `json:"thumbnail"`
	CreatedAt     time.Time       `gorm:"index"                             json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Product) TableName() string { return "products" }

type ProductImage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint   `gorm:"not null;index"           json:"product_id"`
	ImageURL  string `gorm:"not null"                 json:"image_url"`
	SortOrder int    `gorm:"not null;default:0"       json:"sort_order"`
}

func (ProductImage) TableName() string { return "product_images" }

type ProductCategory struct {
	ProductID  uint `gorm:"primaryKey" json:"product_id"`
	CategoryID uint `gorm:"primaryKey" json:"category_id"`
}

func (ProductCategory) TableName() string { return "product_categories" }

// Purchase is unique per (user, product); the constraint is what closes the
// double-spend window between concurrent purchase transactions.
type Purchase struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"                       json:"id"`
	UserID        uint            `gorm:"not null;uniqueIndex:idx_purchases_user_product" json:"user_id"`
	ProductID     uint            `gorm:"not null;uniqueIndex:idx_purchases_user_product;index" json:"product_id"`
	PricePaid     decimal.Decimal `gorm:"type:numeric(18,2);not null"                    json:"price_paid"`
	DownloadCount int             `gorm:"not null;default:0"                             json:"download_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (Purchase) TableName() string { return "purchases" }

// Transaction is append-only: BalanceAfter = BalanceBefore + Amount.
type Transaction struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"   json:"id"`
	UserID        uint            `gorm:"not null;index"             json:"user_id"`
	Type          string          `gorm:"not null"                   json:"type"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"balance_after"`
	Description   string          `json:"description"`
	ReferenceID   *uint           `json:"reference_id"`
	CreatedAt     time.Time       `gorm:"index"                      json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

type DepositRequest struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"     json:"id"`
	UserID        uint            `gorm:"not null;index"               json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2);not null"  json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	PaymentProof  string          `json:"payment_proof"`
	Status        string          `gorm:"not null;default:pending;index" json:"status"`
	AdminNote     string          `json:"admin_note"`
	ApprovedBy    *uint           `json:"approved_by"`
	ProcessedAt   *time.Time      `json:"processed_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (DepositRequest) TableName() string { return "deposit_requests" }

type Post struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"   json:"id"`
	UserID    uint      `gorm:"not null;index"             json:"user_id"`
	Content   string    `gorm:"not null"                   json:"content"`
	Status    string    `gorm:"not null;default:active"    json:"status"`
	CreatedAt time.Time `gorm:"index"                      json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }

type PostMedia struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    uint   `gorm:"not null;index"           json:"post_id"`
	MediaURL  string `gorm:"not null"                 json:"media_url"`
	MediaType string `gorm:"not null;default:image"   json:"media_type"`
}

func (PostMedia) TableName() string { return "post_media" }

type PostLike struct {
	PostID    uint      `gorm:"primaryKey" json:"post_id"`
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (PostLike) TableName() string { return "post_likes" }

type PostComment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    uint      `gorm:"not null;index"           json:"post_id"`
	UserID    uint      `gorm:"not null;index"           json:"user_id"`
	Content   string    `gorm:"not null"                 json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (PostComment) TableName() string { return "post_comments" }

type Message struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   uint      `gorm:"not null;index"           json:"sender_id"`
	ReceiverID uint      `gorm:"not null;index"           json:"receiver_id"`
	Content    string    `gorm:"not null"                 json:"content"`
	IsRead     bool      `gorm:"not null;default:false"   json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Message) TableName() string { return "messages" }

type CommunityMessage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;index"           json:"user_id"`
	Content   string    `gorm:"not null"                 json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (CommunityMessage) TableName() string { return "community_messages" }

type SupportRequest struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;index"           json:"user_id"`
	Type      string    `gorm:"not null;default:support" json:"type"`
	Subject   string    `json:"subject"`
	Content   string    `gorm:"not null"                 json:"content"`
	Status    string    `gorm:"not null;default:open"    json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (SupportRequest) TableName() string { return "support_requests" }

type APIKey struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null"                 json:"name"`
	KeyHash   string    `gorm:"not null;uniqueIndex"     json:"-"`
	CreatedBy uint      `gorm:"not null;index"           json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (APIKey) TableName() string { return "api_keys" }

type Notification struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title        string    `gorm:"not null"                 json:"title"`
	Content      string    `json:"content"`
	ImageURL     string    `json:"image_url"`
	TargetUserID *uint     `gorm:"index"                    json:"target_user_id"`
	CreatedBy    *uint     `gorm:"index"                    json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

type NotificationRead struct {
	NotificationID uint      `gorm:"primaryKey" json:"notification_id"`
	UserID         uint      `gorm:"primaryKey" json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

func (NotificationRead) TableName() string { return "notification_reads" }

type SystemSetting struct {
	Key       string    `gorm:"primaryKey"           json:"key"`
	Value     string    `gorm:"not null;default:''"  json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SystemSetting) TableName() string { return "system_settings" }

// All lists every persisted model in dependency order, for AutoMigrate and
// full exports.
func All() []any {
	return []any{
		&User{}, &Category{}, &Product{}, &ProductImage{}, &ProductCategory{},
		&Purchase{}, &Transaction{}, &DepositRequest{},
		&Post{}, &PostMedia{}, &PostLike{}, &PostComment{},
		&Message{}, &CommunityMessage{}, &SupportRequest{}, &APIKey{},
		&Notification{}, &NotificationRead{}, &SystemSetting{},
	}
}
