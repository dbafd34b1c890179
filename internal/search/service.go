package search

import (
	"context"
	"strings"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/catalog"
	"github.com/Skotchmaster/marketfeed/pkg/util"
)

const defaultLimit = 20

type Querier interface {
	Query(ctx context.Context, q string, from, size int) (int64, []uint, error)
}

type Resolver interface {
	Resolve(ctx context.Context, ids []uint) ([]catalog.ProductView, error)
}

type Result struct {
	Products   []catalog.ProductView `json:"products"`
	Pagination util.Pagination       `json:"pagination"`
}

type SearchService struct {
	Index   Querier
	Catalog Resolver
}

func (s *SearchService) Search(ctx context.Context, q string, page, limit int) (*Result, error) {
	if s == nil || s.Index == nil {
		return nil, apperr.New(apperr.KindUnavailable, "search is not configured")
	}
	q = strings.TrimSpace(q)
	page, limit = util.Normalize(page, limit, defaultLimit)
	if q == "" {
		return &Result{Products: []catalog.ProductView{}, Pagination: util.Pagination{Page: page, Limit: limit}}, nil
	}

	from, size := util.Calculate(page, limit)
	total, ids, err := s.Index.Query(ctx, q, from, size)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "search index unavailable", err)
	}
	views, err := s.Catalog.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &Result{
		Products: views,
		Pagination: util.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      int(total),
			TotalPages: util.TotalPages(int(total), limit),
		},
	}, nil
}
