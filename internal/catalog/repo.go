package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

func (r *GormRepo) base(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table("products p").
		Select(`p.*, c.name AS category_name, c.slug AS category_slug,
			u.full_name AS seller_name, u.avatar AS seller_avatar, u.email AS seller_email`).
		Joins("LEFT JOIN categories c ON c.id = p.category_id").
		Joins("LEFT JOIN users u ON u.id = p.seller_id")
}

// ListLive returns live products outside exclude. An empty status means any
// status; sellerID 0 means any seller.
func (r *GormRepo) ListLive(ctx context.Context, exclude []uint, status string, sellerID uint) ([]ProductView, error) {
	q := r.base(ctx)
	if len(exclude) > 0 {
		q = q.Where("p.id NOT IN ?", exclude)
	}
	if status != "" {
		q = q.Where("p.status = ?", status)
	}
	if sellerID != 0 {
		q = q.Where("p.seller_id = ?", sellerID)
	}
	var rows []liveRow
	if err := q.Order("p.created_at DESC, p.id DESC").Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("list products: %w", err))
	}
	return r.hydrate(ctx, rows)
}

func (r *GormRepo) hydrate(ctx context.Context, rows []liveRow) ([]ProductView, error) {
	if len(rows) == 0 {
		return []ProductView{}, nil
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	gallery, err := archive.LoadGalleries(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	cats, err := archive.LoadCategoryRefs(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ProductView, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromLive(row, gallery[row.ID], cats[row.ID]))
	}
	return out, nil
}

// GetLive matches a numeric identifier against id first and then slug.
func (r *GormRepo) GetLive(ctx context.Context, ident string) (*ProductView, error) {
	var rows []liveRow
	if id, err := strconv.ParseUint(ident, 10, 64); err == nil {
		if err := r.base(ctx).Where("p.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
			return nil, apperr.FromStore(fmt.Errorf("get product: %w", err))
		}
	}
	if len(rows) == 0 {
		if err := r.base(ctx).Where("p.slug = ?", ident).Limit(1).Scan(&rows).Error; err != nil {
			return nil, apperr.FromStore(fmt.Errorf("get product: %w", err))
		}
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "product not found")
	}
	views, err := r.hydrate(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r *GormRepo) IsPurchased(ctx context.Context, userID, productID uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Purchase{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&n).Error
	if err != nil {
		return false, apperr.FromStore(fmt.Errorf("check purchase: %w", err))
	}
	return n > 0, nil
}

func (r *GormRepo) IncrementViews(ctx context.Context, id uint) error {
	err := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
	return apperr.FromStore(err)
}

func (r *GormRepo) UpdateStatus(ctx context.Context, id uint, status string) error {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return apperr.FromStore(fmt.Errorf("update product status: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.KindNotFound, "product not found")
	}
	return nil
}

type productOwner struct {
	SellerID    uint
	SellerEmail string
	Status      string
}

func (r *GormRepo) owner(ctx context.Context, id uint) (*productOwner, error) {
	var rows []productOwner
	if err := r.DB.WithContext(ctx).
		Table("products p").
		Select("p.seller_id, p.status, u.email AS seller_email").
		Joins("LEFT JOIN users u ON u.id = p.seller_id").
		Where("p.id = ?", id).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("find product owner: %w", err))
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "product not found")
	}
	return &rows[0], nil
}

func (r *GormRepo) email(ctx context.Context, userID uint) (string, error) {
	var emails []string
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Pluck("email", &emails).Error; err != nil {
		return "", apperr.FromStore(err)
	}
	if len(emails) == 0 {
		return "", nil
	}
	return emails[0], nil
}

func (r *GormRepo) SlugTaken(ctx context.Context, slug string, except uint) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", slug)
	if except != 0 {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, apperr.FromStore(fmt.Errorf("check slug: %w", err))
	}
	return n > 0, nil
}

// MissingCategories returns the ids that have no category row.
func (r *GormRepo) MissingCategories(ctx context.Context, ids []uint) ([]uint, error) {
	var found []uint
	if err := r.DB.WithContext(ctx).Model(&models.Category{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("check categories: %w", err))
	}
	have := make(map[uint]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	var missing []uint
	for _, id := range ids {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *GormRepo) Categories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := r.DB.WithContext(ctx).Order("name, id").Find(&out).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("list categories: %w", err))
	}
	return out, nil
}

// Create inserts the product with its category links and gallery. The first
// category id is the primary one.
func (r *GormRepo) Create(ctx context.Context, p *models.Product, categoryIDs []uint, gallery []string) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if err := replaceCategories(tx, p.ID, categoryIDs); err != nil {
			return err
		}
		return replaceGallery(tx, p.ID, gallery)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.New(apperr.KindConflict, "slug already in use")
	}
	return apperr.FromStore(err)
}

// Update applies the column changes and, when non-nil, replaces the category
// links and the gallery.
func (r *GormRepo) Update(ctx context.Context, id uint, cols map[string]any, categoryIDs []uint, gallery []string) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.Clauses(forUpdate).Select("id").First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "product not found")
			}
			return err
		}
		if categoryIDs != nil {
			cols["category_id"] = categoryIDs[0]
		}
		cols["updated_at"] = time.Now().UTC()
		if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return err
		}
		if categoryIDs != nil {
			if err := tx.Where("product_id = ?", id).Delete(&models.ProductCategory{}).Error; err != nil {
				return err
			}
			if err := replaceCategories(tx, id, categoryIDs); err != nil {
				return err
			}
		}
		if gallery != nil {
			if err := tx.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
				return err
			}
			if err := replaceGallery(tx, id, gallery); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.New(apperr.KindConflict, "slug already in use")
	}
	return apperr.FromStore(err)
}

// Delete removes a product that nobody has bought, with its images and
// category links.
func (r *GormRepo) Delete(ctx context.Context, id uint) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bought int64
		if err := tx.Model(&models.Purchase{}).Where("product_id = ?", id).Count(&bought).Error; err != nil {
			return err
		}
		if bought > 0 {
			return apperr.New(apperr.KindConflict, "product has purchases; deactivate it instead")
		}
		for _, m := range []any{&models.ProductImage{}, &models.ProductCategory{}} {
			if err := tx.Where("product_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Product{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindNotFound, "product not found")
		}
		return nil
	})
	return apperr.FromStore(err)
}

func replaceCategories(tx *gorm.DB, productID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	links := make([]models.ProductCategory, 0, len(ids))
	for _, id := range ids {
		links = append(links, models.ProductCategory{ProductID: productID, CategoryID: id})
	}
	return tx.Create(&links).Error
}

func replaceGallery(tx *gorm.DB, productID uint, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	images := make([]models.ProductImage, 0, len(urls))
	for i, u := range urls {
		images = append(images, models.ProductImage{ProductID: productID, ImageURL: u, SortOrder: i})
	}
	return tx.Create(&images).Error
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
