package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	"github.com/Skotchmaster/marketfeed/pkg/metrics"
)

type ArchiveService struct {
	Store   *FileStore
	Snap    *Snapshotter
	Purger  *Purger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type CategoryCount struct {
	CategoryInfo
	Count int64 `json:"count"`
}

type ShareResult struct {
	Category Category `json:"category"`
	Archived int      `json:"archived"`
	Purged   int      `json:"purged"`
	Revived  int      `json:"revived"`
}

func (s *ArchiveService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ArchiveService) Envelope(ctx context.Context) (*Envelope, error) {
	return s.Store.Load(ctx)
}

// Categories reports how many live rows currently qualify for each category.
func (s *ArchiveService) Categories(ctx context.Context) ([]CategoryCount, error) {
	out := make([]CategoryCount, 0, len(Categories))
	for _, c := range Categories {
		n, err := s.Snap.Count(ctx, c.Key)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", c.Key, err)
		}
		out = append(out, CategoryCount{CategoryInfo: c, Count: n})
	}
	return out, nil
}

// Share snapshots the qualifying rows of a category, merges them into the
// envelope and, once the envelope is durably written, purges them from the
// live store. A crash between the two steps leaves rows in both places,
// which the read paths tolerate and the next share or list call cleans up.
func (s *ArchiveService) Share(ctx context.Context, key string) (*Envelope, ShareResult, error) {
	l := logging.FromContext(ctx).With("svc", "archive.share", "category", key)

	cat, ok := ParseCategory(key)
	if !ok {
		return nil, ShareResult{}, apperr.New(apperr.KindValidation, "invalid category")
	}
	res := ShareResult{Category: cat}

	var apply func(*Envelope)
	switch cat {
	case ProductsInactive:
		recs, err := s.Snap.Products(ctx)
		if err != nil {
			return nil, res, err
		}
		res.Archived = len(recs)
		apply = func(e *Envelope) { e.Products = MergeByID(e.Products, recs, productID) }
	case PostsOld:
		recs, err := s.Snap.Posts(ctx)
		if err != nil {
			return nil, res, err
		}
		res.Archived = len(recs)
		apply = func(e *Envelope) { e.Posts = MergeByID(e.Posts, recs, postID) }
	case UsersInactive:
		recs, err := s.Snap.Users(ctx)
		if err != nil {
			return nil, res, err
		}
		res.Archived = len(recs)
		apply = func(e *Envelope) { e.Users = MergeByID(e.Users, recs, userID) }
	}

	sharedAt := s.now()
	env, err := s.Store.Update(ctx, func(e *Envelope) error {
		apply(e)
		e.Meta.LastSharedAt = &sharedAt
		e.Meta.LastSharedKey = string(cat)
		return nil
	})
	if err != nil {
		l.Error("archive_write_failed", "error", err)
		return nil, res, fmt.Errorf("merge %s into archive: %w", cat, err)
	}
	s.Metrics.Archived(string(cat), res.Archived)

	pr, err := s.Purger.Purge(ctx, cat, env)
	if err != nil {
		l.Error("archive_purge_failed", "archived", res.Archived, "error", err)
		return env, res, err
	}
	res.Purged, res.Revived = pr.Deleted, len(pr.Revived)
	s.Metrics.Purged(string(cat), pr.Deleted)

	if len(pr.Revived) > 0 {
		if env, err = s.dropRevived(ctx, cat, pr.Revived); err != nil {
			l.Error("archive_write_failed", "error", err)
			return nil, res, err
		}
	}

	l.Info("archive_shared", "archived", res.Archived, "purged", res.Purged, "revived", res.Revived)
	return env, res, nil
}

// PurgeArchived removes from the live store every row of a category that is
// already present in the envelope and still qualifies for it. Archived rows
// that came back to life are dropped from the envelope instead.
func (s *ArchiveService) PurgeArchived(ctx context.Context, cat Category, env *Envelope) (int, error) {
	if _, ok := ParseCategory(string(cat)); !ok {
		return 0, apperr.New(apperr.KindValidation, "invalid category")
	}
	pr, err := s.Purger.Purge(ctx, cat, env)
	if err != nil {
		return 0, err
	}
	s.Metrics.Purged(string(cat), pr.Deleted)
	if len(pr.Revived) > 0 {
		if _, err := s.dropRevived(ctx, cat, pr.Revived); err != nil {
			return pr.Deleted, err
		}
	}
	return pr.Deleted, nil
}

func (s *ArchiveService) dropRevived(ctx context.Context, cat Category, ids []uint) (*Envelope, error) {
	drop := make(map[uint]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	env, err := s.Store.Update(ctx, func(e *Envelope) error {
		switch cat {
		case ProductsInactive:
			e.Products = keep(e.Products, func(p Product) bool { return !drop[p.ID] })
		case PostsOld:
			e.Posts = keep(e.Posts, func(p Post) bool { return !drop[p.ID] })
		case UsersInactive:
			e.Users = keep(e.Users, func(u User) bool { return !drop[u.ID] })
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drop revived %s from archive: %w", cat, err)
	}
	return env, nil
}

func keep[T any](list []T, ok func(T) bool) []T {
	out := list[:0]
	for _, v := range list {
		if ok(v) {
			out = append(out, v)
		}
	}
	return out
}
