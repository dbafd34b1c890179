package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

// Purger deletes archived rows and everything that references them from the
// live store. A row is deleted only while it still qualifies for its
// category and the envelope copy still covers it: nothing newer than the
// archived record, and no dependent the archive does not hold. Ids it has
// already purged are remembered for the process lifetime; ids purged by
// another process are detected because the row no longer exists.
type Purger struct {
	DB  *gorm.DB
	Now func() time.Time

	mu     sync.Mutex
	purged map[Category]map[uint]struct{}
}

// PurgeResult reports one purge. Revived lists archived rows that are live
// again and no longer qualify for the category; they are left in place.
type PurgeResult struct {
	Deleted int
	Revived []uint
}

func NewPurger(db *gorm.DB) *Purger {
	return &Purger{DB: db, purged: map[Category]map[uint]struct{}{}}
}

func (p *Purger) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Purge deletes the live rows of cat that env holds. Calling it again with
// the same envelope deletes nothing.
func (p *Purger) Purge(ctx context.Context, cat Category, env *Envelope) (PurgeResult, error) {
	var ids []uint
	switch cat {
	case ProductsInactive:
		ids = env.ProductIDs()
	case PostsOld:
		ids = env.PostIDs()
	case UsersInactive:
		ids = env.UserIDs()
	default:
		return PurgeResult{}, apperr.Newf(apperr.KindValidation, "invalid category %q", cat)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	todo := p.pending(cat, ids)
	if len(todo) == 0 {
		return PurgeResult{}, nil
	}

	var res PurgeResult
	var gone []uint
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		live, err := existing(tx, cat, todo)
		if err != nil {
			return err
		}
		gone = subtract(todo, live)
		if len(live) == 0 {
			return nil
		}

		qualifying, err := p.qualifying(tx, cat, live)
		if err != nil {
			return err
		}
		res.Revived = subtract(live, qualifying)
		if len(qualifying) == 0 {
			return nil
		}

		var covered []uint
		switch cat {
		case ProductsInactive:
			if covered, err = coveredProducts(tx, qualifying, env); err == nil && len(covered) > 0 {
				err = purgeProducts(tx, covered)
			}
		case PostsOld:
			if covered, err = coveredPosts(tx, qualifying, env); err == nil && len(covered) > 0 {
				err = purgePosts(tx, covered)
			}
		case UsersInactive:
			covered = qualifying
			err = purgeUsers(tx, covered)
		}
		if err != nil {
			return err
		}
		res.Deleted = len(covered)
		gone = append(gone, covered...)
		return nil
	})
	if err != nil {
		return PurgeResult{}, apperr.FromStore(fmt.Errorf("purge %s: %w", cat, err))
	}

	set := p.purged[cat]
	if set == nil {
		set = map[uint]struct{}{}
		p.purged[cat] = set
	}
	for _, id := range gone {
		set[id] = struct{}{}
	}
	return res, nil
}

func (p *Purger) pending(cat Category, ids []uint) []uint {
	seen := map[uint]bool{}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		if _, done := p.purged[cat][id]; done {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func existing(tx *gorm.DB, cat Category, ids []uint) ([]uint, error) {
	var model any
	switch cat {
	case ProductsInactive:
		model = &models.Product{}
	case PostsOld:
		model = &models.Post{}
	case UsersInactive:
		model = &models.User{}
	}
	var live []uint
	err := tx.Model(model).Where("id IN ?", ids).Order("id").Pluck("id", &live).Error
	return live, err
}

// qualifying re-applies the category predicate inside the purge transaction.
func (p *Purger) qualifying(tx *gorm.DB, cat Category, ids []uint) ([]uint, error) {
	now := p.now()
	var q *gorm.DB
	var col string
	switch cat {
	case ProductsInactive:
		q, col = tx.Table("products p").Scopes(productScope(now.Add(-productMaxAge))), "p.id"
	case PostsOld:
		q, col = tx.Table("posts p").Scopes(postScope(now.Add(-postMaxAge))), "p.id"
	case UsersInactive:
		q, col = tx.Table("users u").Scopes(userScope(now.Add(-userIdleAge))), "u.id"
	}
	var out []uint
	err := q.Where(col+" IN ?", ids).Order(col).Pluck(col, &out).Error
	return out, err
}

type stamp struct {
	ID        uint
	UpdatedAt time.Time
}

func newer(live, archived time.Time) bool {
	return live.Truncate(time.Microsecond).After(archived.Truncate(time.Microsecond))
}

// coveredProducts keeps the products whose row, images and category links
// are all present in the archived copy.
func coveredProducts(tx *gorm.DB, ids []uint, env *Envelope) ([]uint, error) {
	archived := make(map[uint]Product, len(env.Products))
	for _, rec := range env.Products {
		archived[rec.ID] = rec
	}

	var stamps []stamp
	if err := tx.Model(&models.Product{}).Select("id, updated_at").Where("id IN ?", ids).Scan(&stamps).Error; err != nil {
		return nil, err
	}
	var images []models.ProductImage
	if err := tx.Select("id, product_id").Where("product_id IN ?", ids).Find(&images).Error; err != nil {
		return nil, err
	}
	var links []models.ProductCategory
	if err := tx.Where("product_id IN ?", ids).Find(&links).Error; err != nil {
		return nil, err
	}

	changed := map[uint]bool{}
	for _, st := range stamps {
		if newer(st.UpdatedAt, archived[st.ID].UpdatedAt) {
			changed[st.ID] = true
		}
	}
	for _, img := range images {
		if !containsID(archived[img.ProductID].Gallery, img.ID, func(i Image) uint { return i.ID }) {
			changed[img.ProductID] = true
		}
	}
	for _, l := range links {
		if !containsID(archived[l.ProductID].Categories, l.CategoryID, func(c CategoryRef) uint { return c.ID }) {
			changed[l.ProductID] = true
		}
	}
	return without(ids, changed), nil
}

// coveredPosts keeps the posts whose row, media and comments are all present
// in the archived copy and that gained no likes since.
func coveredPosts(tx *gorm.DB, ids []uint, env *Envelope) ([]uint, error) {
	archived := make(map[uint]Post, len(env.Posts))
	for _, rec := range env.Posts {
		archived[rec.ID] = rec
	}

	var stamps []stamp
	if err := tx.Model(&models.Post{}).Select("id, updated_at").Where("id IN ?", ids).Scan(&stamps).Error; err != nil {
		return nil, err
	}
	var media []models.PostMedia
	if err := tx.Select("id, post_id").Where("post_id IN ?", ids).Find(&media).Error; err != nil {
		return nil, err
	}
	var comments []models.PostComment
	if err := tx.Select("id, post_id").Where("post_id IN ?", ids).Find(&comments).Error; err != nil {
		return nil, err
	}
	var likes []struct {
		PostID uint
		Total  int
	}
	if err := tx.Model(&models.PostLike{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&likes).Error; err != nil {
		return nil, err
	}

	changed := map[uint]bool{}
	for _, st := range stamps {
		if newer(st.UpdatedAt, archived[st.ID].UpdatedAt) {
			changed[st.ID] = true
		}
	}
	for _, m := range media {
		if !containsID(archived[m.PostID].Media, m.ID, func(x Media) uint { return x.ID }) {
			changed[m.PostID] = true
		}
	}
	for _, c := range comments {
		if !containsID(archived[c.PostID].Comments, c.ID, func(x Comment) uint { return x.ID }) {
			changed[c.PostID] = true
		}
	}
	for _, l := range likes {
		if l.Total > archived[l.PostID].LikeCount {
			changed[l.PostID] = true
		}
	}
	return without(ids, changed), nil
}

func containsID[T any](list []T, id uint, key func(T) uint) bool {
	for _, v := range list {
		if key(v) == id {
			return true
		}
	}
	return false
}

func without(ids []uint, drop map[uint]bool) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

// subtract returns the ids of a that are not in b.
func subtract(a, b []uint) []uint {
	in := make(map[uint]bool, len(b))
	for _, id := range b {
		in[id] = true
	}
	return without(a, in)
}

func purgeProducts(tx *gorm.DB, ids []uint) error {
	steps := []struct {
		model any
		where string
	}{
		{&models.ProductImage{}, "product_id IN ?"},
		{&models.ProductCategory{}, "product_id IN ?"},
		{&models.Product{}, "id IN ?"},
	}
	for _, s := range steps {
		if err := tx.Where(s.where, ids).Delete(s.model).Error; err != nil {
			return err
		}
	}
	return nil
}

func purgePosts(tx *gorm.DB, ids []uint) error {
	steps := []struct {
		model any
		where string
	}{
		{&models.PostLike{}, "post_id IN ?"},
		{&models.PostComment{}, "post_id IN ?"},
		{&models.PostMedia{}, "post_id IN ?"},
		{&models.Post{}, "id IN ?"},
	}
	for _, s := range steps {
		if err := tx.Where(s.where, ids).Delete(s.model).Error; err != nil {
			return err
		}
	}
	return nil
}

func purgeUsers(tx *gorm.DB, ids []uint) error {
	var postIDs []uint
	if err := tx.Model(&models.Post{}).Where("user_id IN ?", ids).Pluck("id", &postIDs).Error; err != nil {
		return err
	}
	if len(postIDs) > 0 {
		if err := purgePosts(tx, postIDs); err != nil {
			return err
		}
	}

	var noteIDs []uint
	if err := tx.Model(&models.Notification{}).
		Where("target_user_id IN ? OR created_by IN ?", ids, ids).
		Pluck("id", &noteIDs).Error; err != nil {
		return err
	}

	type step struct {
		model any
		where string
		args  []any
	}
	steps := []step{
		// likes and comments the users left on other people's posts
		{&models.PostLike{}, "user_id IN ?", []any{ids}},
		{&models.PostComment{}, "user_id IN ?", []any{ids}},
		{&models.Message{}, "sender_id IN ? OR receiver_id IN ?", []any{ids, ids}},
		{&models.CommunityMessage{}, "user_id IN ?", []any{ids}},
		{&models.SupportRequest{}, "user_id IN ?", []any{ids}},
		{&models.APIKey{}, "created_by IN ?", []any{ids}},
		{&models.NotificationRead{}, "user_id IN ?", []any{ids}},
	}
	if len(noteIDs) > 0 {
		steps = append(steps,
			step{&models.NotificationRead{}, "notification_id IN ?", []any{noteIDs}},
			step{&models.Notification{}, "id IN ?", []any{noteIDs}},
		)
	}
	steps = append(steps, step{&models.User{}, "id IN ?", []any{ids}})

	for _, s := range steps {
		if err := tx.Where(s.where, s.args...).Delete(s.model).Error; err != nil {
			return err
		}
	}
	return nil
}
