package archive

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category names one archivable collection, as used by the admin share API.
type Category string

const (
	ProductsInactive Category = "products_inactive"
	UsersInactive    Category = "users_inactive"
	PostsOld         Category = "posts_old"
)

type CategoryInfo struct {
	Key         Category `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
}

var Categories = []CategoryInfo{
	{Key: ProductsInactive, Label: "Old products", Description: "Inactive or banned products, or listed more than 120 days ago"},
	{Key: UsersInactive, Label: "Old accounts", Description: "Non-admin accounts idle for more than 180 days, or banned"},
	{Key: PostsOld, Label: "Old posts", Description: "Posts published more than 90 days ago"},
}

func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c.Key) == s {
			return c.Key, true
		}
	}
	return "", false
}

type Image struct {
	ID        uint   `json:"id"`
	ProductID uint   `json:"product_id"`
	ImageURL  string `json:"image_url"`
	SortOrder int    `json:"sort_order"`
}

type CategoryRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Product is a product row frozen together with the display fields of its
// seller and category, which no longer resolve once the live rows are gone.
type Product struct {
	ID            uint            `json:"id"`
	Slug          string          `json:"slug"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Content       string          `json:"content"`
	Price         decimal.Decimal `json:"price"`
	SellerID      uint            `json:"seller_id"`
	CategoryID    *uint           `json:"category_id"`
	Status        string          `json:"status"`
	PurchaseCount int             `json:"purchase_count"`
	ViewCount     int             `json:"view_count"`
	Thumbnail     string          `json:"thumbnail"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CategoryName  string          `json:"category_name"`
	CategorySlug  string          `json:"category_slug"`
	SellerName    string          `json:"seller_name"`
	SellerAvatar  string          `json:"seller_avatar"`
	SellerEmail   string          `json:"seller_email"`
	Gallery       []Image         `json:"gallery"`
	Categories    []CategoryRef   `json:"categories"`
	IsArchived    bool            `json:"is_archived"`
}

type Media struct {
	ID        uint   `json:"id"`
	PostID    uint   `json:"post_id"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
}

type Comment struct {
	ID        uint      `json:"id"`
	PostID    uint      `json:"post_id"`
	UserID    uint      `json:"user_id"`
	Content   string    `json:"content"`
	FullName  string    `json:"full_name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

type Post struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"user_id"`
	Content      string    `json:"content"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	FullName     string    `json:"full_name"`
	Avatar       string    `json:"avatar"`
	Gender       string    `json:"gender"`
	Media        []Media   `json:"media"`
	Comments     []Comment `json:"comments"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	IsArchived   bool      `json:"is_archived"`
}

// User never carries credentials.
type User struct {
	ID         uint            `json:"id"`
	Email      string          `json:"email"`
	FullName   string          `json:"full_name"`
	Avatar     string          `json:"avatar"`
	Gender     string          `json:"gender"`
	Bio        string          `json:"bio"`
	Phone      string          `json:"phone"`
	Role       string          `json:"role"`
	Status     string          `json:"status"`
	Balance    decimal.Decimal `json:"balance"`
	CreatedAt  time.Time       `json:"created_at"`
	LastLogin  *time.Time      `json:"last_login"`
	IsArchived bool            `json:"is_archived"`
}

type Meta struct {
	LastSharedAt  *time.Time `json:"last_shared_at,omitempty"`
	LastSharedKey string     `json:"last_shared_key,omitempty"`
}

type Envelope struct {
	Meta     Meta      `json:"meta"`
	Products []Product `json:"products"`
	Posts    []Post    `json:"posts"`
	Users    []User    `json:"users"`
}

// normalize guarantees non-nil collections so that readers and the JSON
// output never see null arrays.
func (e *Envelope) normalize() {
	if e.Products == nil {
		e.Products = []Product{}
	}
	if e.Posts == nil {
		e.Posts = []Post{}
	}
	if e.Users == nil {
		e.Users = []User{}
	}
	for i := range e.Products {
		p := &e.Products[i]
		p.IsArchived = true
		if p.Gallery == nil {
			p.Gallery = []Image{}
		}
		if p.Categories == nil {
			p.Categories = []CategoryRef{}
		}
	}
	for i := range e.Posts {
		p := &e.Posts[i]
		p.IsArchived = true
		if p.Media == nil {
			p.Media = []Media{}
		}
		if p.Comments == nil {
			p.Comments = []Comment{}
		}
	}
	for i := range e.Users {
		e.Users[i].IsArchived = true
	}
}

// clone copies the collections so callers can filter and sort freely without
// touching the cached document.
func (e *Envelope) clone() *Envelope {
	out := &Envelope{Meta: e.Meta}
	out.Products = append(make([]Product, 0, len(e.Products)), e.Products...)
	out.Posts = append(make([]Post, 0, len(e.Posts)), e.Posts...)
	out.Users = append(make([]User, 0, len(e.Users)), e.Users...)
	return out
}

func (e *Envelope) ProductIDs() []uint {
	ids := make([]uint, 0, len(e.Products))
	for _, p := range e.Products {
		ids = append(ids, p.ID)
	}
	return ids
}

func (e *Envelope) PostIDs() []uint {
	ids := make([]uint, 0, len(e.Posts))
	for _, p := range e.Posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func (e *Envelope) UserIDs() []uint {
	ids := make([]uint, 0, len(e.Users))
	for _, u := range e.Users {
		ids = append(ids, u.ID)
	}
	return ids
}

// FindProduct matches by id or slug.
func (e *Envelope) FindProduct(ident string, id uint) (Product, bool) {
	for _, p := range e.Products {
		if (id != 0 && p.ID == id) || (ident != "" && p.Slug == ident) {
			return p, true
		}
	}
	return Product{}, false
}

func (e *Envelope) FindPost(id uint) (Post, bool) {
	for _, p := range e.Posts {
		if p.ID == id {
			return p, true
		}
	}
	return Post{}, false
}

func (e *Envelope) FindUser(id uint) (User, bool) {
	for _, u := range e.Users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}
