package catalog

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	"github.com/Skotchmaster/marketfeed/pkg/util"
)

const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortPopular   = "popular"

	// StatusAny disables the status filter.
	StatusAny = "all"

	defaultLimit = 10
)

// Archive is the part of the archive layer the query side needs.
type Archive interface {
	Envelope(ctx context.Context) (*archive.Envelope, error)
	PurgeArchived(ctx context.Context, cat archive.Category, env *archive.Envelope) (int, error)
}

// Indexer mirrors product changes into the keyword index.
type Indexer interface {
	IndexProduct(ctx context.Context, p ProductView) error
	DeleteProduct(ctx context.Context, id uint) error
}

type ListQuery struct {
	Status      string
	SellerID    uint
	CategoryID  uint
	CategoryIDs []uint
	Search      string
	Sort        string
	Page        int
	Limit       int
}

type ListResult struct {
	Products   []ProductView   `json:"products"`
	Pagination util.Pagination `json:"pagination"`
}

type CatalogService struct {
	Repo    *GormRepo
	Archive Archive
	Index   Indexer
	// PrimaryAdminEmail owns products that nobody else may change.
	PrimaryAdminEmail string
}

// archived loads the envelope and drops any live leftovers of archived
// products. A failed purge is logged and the listing carries on: archived
// ids are excluded from the live query either way.
func (s *CatalogService) archived(ctx context.Context) (*archive.Envelope, error) {
	env, err := s.Archive.Envelope(ctx)
	if err != nil {
		return nil, err
	}
	if len(env.Products) > 0 {
		if _, err := s.Archive.PurgeArchived(ctx, archive.ProductsInactive, env); err != nil {
			logging.FromContext(ctx).Warn("archived_products_purge_failed", "error", err)
		}
	}
	return env, nil
}

func (s *CatalogService) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	env, err := s.archived(ctx)
	if err != nil {
		return nil, err
	}

	status := q.Status
	if status == "" {
		status = models.StatusActive
	}
	liveStatus := status
	if status == StatusAny {
		liveStatus = ""
	}

	live, err := s.Repo.ListLive(ctx, env.ProductIDs(), liveStatus, q.SellerID)
	if err != nil {
		return nil, err
	}

	all := make([]ProductView, 0, len(live)+len(env.Products))
	all = append(all, live...)
	for _, p := range env.Products {
		all = append(all, FromArchived(p))
	}

	filtered := filter(all, q, liveStatus)
	sortViews(filtered, q.Sort)

	page, limit := util.Normalize(q.Page, q.Limit, defaultLimit)
	items, meta := util.Paginate(filtered, page, limit)
	return &ListResult{Products: items, Pagination: meta}, nil
}

func filter(in []ProductView, q ListQuery, status string) []ProductView {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]ProductView, 0, len(in))
	for _, p := range in {
		if status != "" && p.Status != status {
			continue
		}
		if q.SellerID != 0 && p.SellerID != q.SellerID {
			continue
		}
		if q.CategoryID != 0 && !p.inCategory(q.CategoryID) {
			continue
		}
		if len(q.CategoryIDs) > 0 && !anyCategory(p, q.CategoryIDs) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func anyCategory(p ProductView, ids []uint) bool {
	for _, id := range ids {
		if p.inCategory(id) {
			return true
		}
	}
	return false
}

func newer(a, b ProductView) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func sortViews(v []ProductView, mode string) {
	sort.SliceStable(v, func(i, j int) bool { return newer(v[i], v[j]) })
	switch mode {
	case SortPriceAsc:
		sort.SliceStable(v, func(i, j int) bool { return v[i].Price.LessThan(v[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(v, func(i, j int) bool { return v[i].Price.GreaterThan(v[j].Price) })
	case SortPopular:
		sort.SliceStable(v, func(i, j int) bool { return v[i].popularity() > v[j].popularity() })
	}
}

// Get looks the identifier up in the archive first and then in the live
// store. Live hits count as a view.
func (s *CatalogService) Get(ctx context.Context, ident string, viewerID uint) (*ProductView, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return nil, apperr.New(apperr.KindValidation, "product id is required")
	}
	env, err := s.archived(ctx)
	if err != nil {
		return nil, err
	}

	var id uint
	if n, err := strconv.ParseUint(ident, 10, 64); err == nil {
		id = uint(n)
	}
	if p, ok := env.FindProduct(ident, id); ok {
		v := FromArchived(p)
		if viewerID != 0 {
			if v.IsPurchased, err = s.Repo.IsPurchased(ctx, viewerID, v.ID); err != nil {
				return nil, err
			}
		}
		return &v, nil
	}

	v, err := s.Repo.GetLive(ctx, ident)
	if err != nil {
		return nil, err
	}
	if viewerID != 0 {
		if v.IsPurchased, err = s.Repo.IsPurchased(ctx, viewerID, v.ID); err != nil {
			return nil, err
		}
	}
	if err := s.Repo.IncrementViews(ctx, v.ID); err != nil {
		logging.FromContext(ctx).Warn("product_view_count_failed", "product_id", v.ID, "error", err)
	}
	return v, nil
}

func (s *CatalogService) SetStatus(ctx context.Context, id uint, status string) error {
	switch status {
	case models.StatusActive, models.StatusInactive, models.StatusBanned:
	default:
		return apperr.Newf(apperr.KindValidation, "invalid status %q", status)
	}
	if err := s.Repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.reindex(ctx, id, status)
	return nil
}

func (s *CatalogService) reindex(ctx context.Context, id uint, status string) {
	if s.Index == nil {
		return
	}
	l := logging.FromContext(ctx)
	if status != models.StatusActive {
		if err := s.Index.DeleteProduct(ctx, id); err != nil {
			l.Warn("search_delete_failed", "product_id", id, "error", err)
		}
		return
	}
	v, err := s.Repo.GetLive(ctx, strconv.FormatUint(uint64(id), 10))
	if err != nil {
		l.Warn("search_index_failed", "product_id", id, "error", err)
		return
	}
	if err := s.Index.IndexProduct(ctx, *v); err != nil {
		l.Warn("search_index_failed", "product_id", id, "error", err)
	}
}

// Reindex pushes every active live product into the keyword index and
// returns how many were sent.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, apperr.New(apperr.KindUnavailable, "search is not configured")
	}
	live, err := s.Repo.ListLive(ctx, nil, models.StatusActive, 0)
	if err != nil {
		return 0, err
	}
	for i, p := range live {
		if err := s.Index.IndexProduct(ctx, p); err != nil {
			return i, apperr.Wrap(apperr.KindUnavailable, "search index unavailable", err)
		}
	}
	return len(live), nil
}

// Resolve maps keyword index hits back to current views, skipping ids that
// no longer resolve.
func (s *CatalogService) Resolve(ctx context.Context, ids []uint) ([]ProductView, error) {
	env, err := s.Archive.Envelope(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProductView, 0, len(ids))
	for _, id := range ids {
		if p, ok := env.FindProduct("", id); ok {
			out = append(out, FromArchived(p))
			continue
		}
		v, err := s.Repo.GetLive(ctx, strconv.FormatUint(uint64(id), 10))
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}
