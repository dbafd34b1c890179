package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
)

const maxSlugAttempts = 50

var errReadOnly = apperr.New(apperr.KindInvalidState, "archived product is read-only")

// Editor is the caller creating or changing a product.
type Editor struct {
	ID   uint
	Role string
}

type ProductInput struct {
	Title       string
	Slug        string
	Description string
	Content     string
	Price       decimal.Decimal
	Thumbnail   string
	// CategoryIDs lists the categories; the first is the primary one.
	CategoryIDs []uint
	Gallery     []string
}

// ProductPatch holds the fields to change. Nil fields and nil slices are
// left as they are.
type ProductPatch struct {
	Title       *string
	Slug        *string
	Description *string
	Content     *string
	Price       *decimal.Decimal
	Thumbnail   *string
	Status      *string
	CategoryIDs []uint
	Gallery     []string
}

func (p ProductPatch) empty() bool {
	return p.Title == nil && p.Slug == nil && p.Description == nil && p.Content == nil &&
		p.Price == nil && p.Thumbnail == nil && p.Status == nil &&
		p.CategoryIDs == nil && p.Gallery == nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	return s.Repo.Categories(ctx)
}

// Create lists a new active product for ed. Without an explicit slug one is
// derived from the title and suffixed until it is free.
func (s *CatalogService) Create(ctx context.Context, ed Editor, in ProductInput) (*ProductView, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.create", "seller_id", ed.ID)

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.New(apperr.KindValidation, "title is required")
	}
	if in.Price.IsNegative() {
		return nil, apperr.New(apperr.KindValidation, "price cannot be negative")
	}
	cats, err := s.checkCategories(ctx, in.CategoryIDs)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return nil, apperr.New(apperr.KindValidation, "category is required")
	}
	slug, err := s.freeSlug(ctx, in.Slug, title, 0)
	if err != nil {
		return nil, err
	}

	p := &models.Product{
		Slug:        slug,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Content:     in.Content,
		Price:       in.Price.Round(2),
		SellerID:    ed.ID,
		CategoryID:  &cats[0],
		Status:      models.StatusActive,
		Thumbnail:   strings.TrimSpace(in.Thumbnail),
	}
	if err := s.Repo.Create(ctx, p, cats, cleanURLs(in.Gallery)); err != nil {
		return nil, err
	}
	l.Info("product_created", "product_id", p.ID, "slug", p.Slug)

	s.reindex(ctx, p.ID, p.Status)
	return s.Repo.GetLive(ctx, strconv.FormatUint(uint64(p.ID), 10))
}

// Update changes a live product. Sellers may only touch their own products
// and may not lift a ban; admins may change any product except those of the
// primary admin, which only the primary admin may change.
func (s *CatalogService) Update(ctx context.Context, id uint, ed Editor, patch ProductPatch) (*ProductView, error) {
	if patch.empty() {
		return nil, apperr.New(apperr.KindValidation, "no data to update")
	}
	own, err := s.authorize(ctx, id, ed, "edit")
	if err != nil {
		return nil, err
	}

	cols := map[string]any{}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return nil, apperr.New(apperr.KindValidation, "title cannot be empty")
		}
		cols["title"] = t
	}
	if patch.Slug != nil {
		slug, err := s.freeSlug(ctx, *patch.Slug, "", id)
		if err != nil {
			return nil, err
		}
		cols["slug"] = slug
	}
	if patch.Description != nil {
		cols["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Content != nil {
		cols["content"] = *patch.Content
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, apperr.New(apperr.KindValidation, "price cannot be negative")
		}
		cols["price"] = patch.Price.Round(2)
	}
	if patch.Thumbnail != nil {
		cols["thumbnail"] = strings.TrimSpace(*patch.Thumbnail)
	}
	status := own.Status
	if patch.Status != nil {
		switch *patch.Status {
		case models.StatusActive, models.StatusInactive:
		case models.StatusBanned:
			if ed.Role != models.RoleAdmin {
				return nil, apperr.New(apperr.KindForbidden, "only admins can ban products")
			}
		default:
			return nil, apperr.Newf(apperr.KindValidation, "invalid status %q", *patch.Status)
		}
		if own.Status == models.StatusBanned && ed.Role != models.RoleAdmin {
			return nil, apperr.New(apperr.KindForbidden, "banned products can only be restored by an admin")
		}
		status = *patch.Status
		cols["status"] = status
	}

	var cats []uint
	if patch.CategoryIDs != nil {
		if cats, err = s.checkCategories(ctx, patch.CategoryIDs); err != nil {
			return nil, err
		}
		if len(cats) == 0 {
			return nil, apperr.New(apperr.KindValidation, "category is required")
		}
	}
	var gallery []string
	if patch.Gallery != nil {
		gallery = append([]string{}, cleanURLs(patch.Gallery)...)
	}

	if err := s.Repo.Update(ctx, id, cols, cats, gallery); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("product_updated", "product_id", id, "editor_id", ed.ID)

	s.reindex(ctx, id, status)
	return s.Repo.GetLive(ctx, strconv.FormatUint(uint64(id), 10))
}

// Delete removes a live product nobody has bought yet, under the same
// ownership rules as Update.
func (s *CatalogService) Delete(ctx context.Context, id uint, ed Editor) error {
	if _, err := s.authorize(ctx, id, ed, "delete"); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	l := logging.FromContext(ctx)
	l.Info("product_deleted", "product_id", id, "editor_id", ed.ID)
	if s.Index != nil {
		if err := s.Index.DeleteProduct(ctx, id); err != nil {
			l.Warn("search_delete_failed", "product_id", id, "error", err)
		}
	}
	return nil
}

func (s *CatalogService) authorize(ctx context.Context, id uint, ed Editor, action string) (*productOwner, error) {
	env, err := s.Archive.Envelope(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := env.FindProduct("", id); ok {
		return nil, errReadOnly
	}
	own, err := s.Repo.owner(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.PrimaryAdminEmail != "" && strings.EqualFold(own.SellerEmail, s.PrimaryAdminEmail) {
		email, err := s.Repo.email(ctx, ed.ID)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(email, s.PrimaryAdminEmail) {
			return nil, apperr.New(apperr.KindForbidden, "only the primary admin can change the primary admin's products")
		}
	}
	if ed.Role != models.RoleAdmin && own.SellerID != ed.ID {
		return nil, apperr.Newf(apperr.KindForbidden, "you do not have permission to %s this product", action)
	}
	return own, nil
}

// checkCategories drops zero and repeated ids, keeping the order, and
// rejects ids without a category row.
func (s *CatalogService) checkCategories(ctx context.Context, ids []uint) ([]uint, error) {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return out, nil
	}
	missing, err := s.Repo.MissingCategories(ctx, out)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, apperr.Newf(apperr.KindValidation, "category %d does not exist", missing[0])
	}
	return out, nil
}

// freeSlug normalizes an explicit slug, which must be free, or derives one
// from title and suffixes it until it is. Slugs held by archived products
// count as taken.
func (s *CatalogService) freeSlug(ctx context.Context, explicit, title string, self uint) (string, error) {
	env, err := s.Archive.Envelope(ctx)
	if err != nil {
		return "", err
	}
	taken := func(slug string) (bool, error) {
		if p, ok := env.FindProduct(slug, 0); ok && p.ID != self {
			return true, nil
		}
		return s.Repo.SlugTaken(ctx, slug, self)
	}

	if strings.TrimSpace(explicit) != "" {
		slug := Slugify(explicit)
		if slug == "" {
			return "", apperr.New(apperr.KindValidation, "slug must contain letters or digits")
		}
		busy, err := taken(slug)
		if err != nil {
			return "", err
		}
		if busy {
			return "", apperr.New(apperr.KindConflict, "slug already in use")
		}
		return slug, nil
	}
	if self != 0 {
		return "", apperr.New(apperr.KindValidation, "slug cannot be empty")
	}

	base := Slugify(title)
	if base == "" {
		base = "product"
	}
	slug := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		busy, err := taken(slug)
		if err != nil {
			return "", err
		}
		if !busy {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
	return "", apperr.New(apperr.KindConflict, "could not find a free slug; set one explicitly")
}

func cleanURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
