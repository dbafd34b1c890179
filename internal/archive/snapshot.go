package archive

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

const (
	productMaxAge = 120 * 24 * time.Hour
	postMaxAge    = 90 * 24 * time.Hour
	userIdleAge   = 180 * 24 * time.Hour
)

// Snapshotter reads the live rows that qualify for archiving, with every
// joined display field resolved while the joins still exist.
type Snapshotter struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *Snapshotter) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func productScope(cutoff time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("p.status <> ? OR p.created_at < ?", models.StatusActive, cutoff)
	}
}

func postScope(cutoff time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("p.created_at < ?", cutoff)
	}
}

// Sellers that still own live products are kept: their listings would be
// left pointing at a purged account.
func userScope(cutoff time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("u.role <> ?", models.RoleAdmin).
			Where("(u.last_login IS NULL AND u.created_at < ?) OR u.last_login < ? OR u.status = ?",
				cutoff, cutoff, models.StatusBanned).
			Where("NOT EXISTS (SELECT 1 FROM products sp WHERE sp.seller_id = u.id)")
	}
}

func (s *Snapshotter) Count(ctx context.Context, cat Category) (int64, error) {
	now := s.now()
	db := s.DB.WithContext(ctx)
	var n int64
	var err error
	switch cat {
	case ProductsInactive:
		err = db.Table("products p").Scopes(productScope(now.Add(-productMaxAge))).Count(&n).Error
	case PostsOld:
		err = db.Table("posts p").Scopes(postScope(now.Add(-postMaxAge))).Count(&n).Error
	case UsersInactive:
		err = db.Table("users u").Scopes(userScope(now.Add(-userIdleAge))).Count(&n).Error
	default:
		return 0, apperr.Newf(apperr.KindValidation, "invalid category %q", cat)
	}
	if err != nil {
		return 0, apperr.FromStore(err)
	}
	return n, nil
}

type productRow struct {
	models.Product
	CategoryName string
	CategorySlug string
	SellerName   string
	SellerAvatar string
	SellerEmail  string
}

func (s *Snapshotter) Products(ctx context.Context) ([]Product, error) {
	db := s.DB.WithContext(ctx)

	var rows []productRow
	if err := db.Table("products p").
		Select(`p.*, c.name AS category_name, c.slug AS category_slug,
			u.full_name AS seller_name, u.avatar AS seller_avatar, u.email AS seller_email`).
		Joins("LEFT JOIN categories c ON c.id = p.category_id").
		Joins("LEFT JOIN users u ON u.id = p.seller_id").
		Scopes(productScope(s.now().Add(-productMaxAge))).
		Order("p.created_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("snapshot products: %w", err))
	}
	if len(rows) == 0 {
		return []Product{}, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	gallery, err := LoadGalleries(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	cats, err := LoadCategoryRefs(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Product, 0, len(rows))
	for _, r := range rows {
		p := Product{
			ID:            r.ID,
			Slug:          r.Slug,
			Title:         r.Title,
			Description:   r.Description,
			Content:       r.Content,
			Price:         r.Price,
			SellerID:      r.SellerID,
			CategoryID:    r.CategoryID,
			Status:        r.Status,
			PurchaseCount: r.PurchaseCount,
			ViewCount:     r.ViewCount,
			Thumbnail:     r.Thumbnail,
			CreatedAt:     r.CreatedAt,
			UpdatedAt:     r.UpdatedAt,
			CategoryName:  r.CategoryName,
			CategorySlug:  r.CategorySlug,
			SellerName:    r.SellerName,
			SellerAvatar:  r.SellerAvatar,
			SellerEmail:   r.SellerEmail,
			Gallery:       gallery[r.ID],
			Categories:    cats[r.ID],
			IsArchived:    true,
		}
		if p.Gallery == nil {
			p.Gallery = []Image{}
		}
		if len(p.Categories) == 0 {
			p.Categories = []CategoryRef{}
			if r.CategoryID != nil {
				p.Categories = []CategoryRef{{ID: *r.CategoryID, Name: r.CategoryName, Slug: r.CategorySlug}}
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadGalleries returns product images grouped by product id.
func LoadGalleries(ctx context.Context, db *gorm.DB, productIDs []uint) (map[uint][]Image, error) {
	out := map[uint][]Image{}
	if len(productIDs) == 0 {
		return out, nil
	}
	var images []models.ProductImage
	if err := db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("sort_order, id").
		Find(&images).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("load galleries: %w", err))
	}
	for _, img := range images {
		out[img.ProductID] = append(out[img.ProductID], Image{
			ID: img.ID, ProductID: img.ProductID, ImageURL: img.ImageURL, SortOrder: img.SortOrder,
		})
	}
	return out, nil
}

// LoadCategoryRefs returns the many-to-many category list of each product.
func LoadCategoryRefs(ctx context.Context, db *gorm.DB, productIDs []uint) (map[uint][]CategoryRef, error) {
	out := map[uint][]CategoryRef{}
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ProductID uint
		ID        uint
		Name      string
		Slug      string
	}
	if err := db.WithContext(ctx).
		Table("product_categories pc").
		Select("pc.product_id, c.id, c.name, c.slug").
		Joins("JOIN categories c ON c.id = pc.category_id").
		Where("pc.product_id IN ?", productIDs).
		Order("c.id").
		Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("load product categories: %w", err))
	}
	for _, r := range rows {
		out[r.ProductID] = append(out[r.ProductID], CategoryRef{ID: r.ID, Name: r.Name, Slug: r.Slug})
	}
	return out, nil
}

type postRow struct {
	models.Post
	FullName string
	Avatar   string
	Gender   string
}

func (s *Snapshotter) Posts(ctx context.Context) ([]Post, error) {
	var rows []postRow
	if err := s.DB.WithContext(ctx).
		Table("posts p").
		Select("p.*, u.full_name, u.avatar, u.gender").
		Joins("JOIN users u ON u.id = p.user_id").
		Scopes(postScope(s.now().Add(-postMaxAge))).
		Order("p.created_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("snapshot posts: %w", err))
	}
	if len(rows) == 0 {
		return []Post{}, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	media, err := LoadMedia(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	comments, err := loadComments(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	likes, err := LoadLikeCounts(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Post, 0, len(rows))
	for _, r := range rows {
		p := Post{
			ID:         r.ID,
			UserID:     r.UserID,
			Content:    r.Content,
			Status:     r.Status,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
			FullName:   r.FullName,
			Avatar:     r.Avatar,
			Gender:     r.Gender,
			Media:      media[r.ID],
			Comments:   comments[r.ID],
			LikeCount:  likes[r.ID],
			IsArchived: true,
		}
		if p.Media == nil {
			p.Media = []Media{}
		}
		if p.Comments == nil {
			p.Comments = []Comment{}
		}
		p.CommentCount = len(p.Comments)
		out = append(out, p)
	}
	return out, nil
}

func LoadMedia(ctx context.Context, db *gorm.DB, postIDs []uint) (map[uint][]Media, error) {
	out := map[uint][]Media{}
	if len(postIDs) == 0 {
		return out, nil
	}
	var media []models.PostMedia
	if err := db.WithContext(ctx).Where("post_id IN ?", postIDs).Order("id").Find(&media).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("load post media: %w", err))
	}
	for _, m := range media {
		out[m.PostID] = append(out[m.PostID], Media{ID: m.ID, PostID: m.PostID, MediaURL: m.MediaURL, MediaType: m.MediaType})
	}
	return out, nil
}

func LoadLikeCounts(ctx context.Context, db *gorm.DB, postIDs []uint) (map[uint]int, error) {
	out := map[uint]int{}
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		PostID uint
		Total  int
	}
	if err := db.WithContext(ctx).Model(&models.PostLike{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("count likes: %w", err))
	}
	for _, r := range rows {
		out[r.PostID] = r.Total
	}
	return out, nil
}

func loadComments(ctx context.Context, db *gorm.DB, postIDs []uint) (map[uint][]Comment, error) {
	var rows []Comment
	if err := db.WithContext(ctx).
		Table("post_comments c").
		Select("c.id, c.post_id, c.user_id, c.content, c.created_at, u.full_name, u.avatar").
		Joins("JOIN users u ON u.id = c.user_id").
		Where("c.post_id IN ?", postIDs).
		Order("c.created_at ASC, c.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("load comments: %w", err))
	}
	out := map[uint][]Comment{}
	for _, c := range rows {
		out[c.PostID] = append(out[c.PostID], c)
	}
	return out, nil
}

func (s *Snapshotter) Users(ctx context.Context) ([]User, error) {
	var rows []models.User
	if err := s.DB.WithContext(ctx).
		Table("users u").
		Select("u.*").
		Scopes(userScope(s.now().Add(-userIdleAge))).
		Order("COALESCE(u.last_login, u.created_at) ASC").
		Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("snapshot users: %w", err))
	}
	out := make([]User, 0, len(rows))
	for _, u := range rows {
		out = append(out, User{
			ID:         u.ID,
			Email:      u.Email,
			FullName:   u.FullName,
			Avatar:     u.Avatar,
			Gender:     u.Gender,
			Bio:        u.Bio,
			Phone:      u.Phone,
			Role:       u.Role,
			Status:     u.Status,
			Balance:    u.Balance,
			CreatedAt:  u.CreatedAt,
			LastLogin:  u.LastLogin,
			IsArchived: true,
		})
	}
	return out, nil
}
