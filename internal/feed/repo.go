package feed

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) base(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table("posts p").
		Select("p.*, u.full_name, u.avatar, u.gender").
		Joins("JOIN users u ON u.id = p.user_id")
}

// ListLive returns active posts outside exclude, optionally by one author.
func (r *GormRepo) ListLive(ctx context.Context, exclude []uint, authorID, viewerID uint) ([]PostView, error) {
	q := r.base(ctx).Where("p.status = ?", models.StatusActive)
	if len(exclude) > 0 {
		q = q.Where("p.id NOT IN ?", exclude)
	}
	if authorID != 0 {
		q = q.Where("p.user_id = ?", authorID)
	}
	var rows []liveRow
	if err := q.Order("p.created_at DESC, p.id DESC").Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("list posts: %w", err))
	}
	return r.hydrate(ctx, rows, viewerID)
}

func (r *GormRepo) GetLive(ctx context.Context, id, viewerID uint) (*PostView, error) {
	var rows []liveRow
	if err := r.base(ctx).Where("p.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("get post: %w", err))
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "post not found")
	}
	views, err := r.hydrate(ctx, rows, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (r *GormRepo) hydrate(ctx context.Context, rows []liveRow, viewerID uint) ([]PostView, error) {
	if len(rows) == 0 {
		return []PostView{}, nil
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	media, err := archive.LoadMedia(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	likes, err := archive.LoadLikeCounts(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	comments, err := r.commentCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	liked := map[uint]bool{}
	if viewerID != 0 {
		var likedIDs []uint
		if err := r.DB.WithContext(ctx).Model(&models.PostLike{}).
			Where("user_id = ? AND post_id IN ?", viewerID, ids).
			Pluck("post_id", &likedIDs).Error; err != nil {
			return nil, apperr.FromStore(fmt.Errorf("load liked posts: %w", err))
		}
		for _, id := range likedIDs {
			liked[id] = true
		}
	}
	out := make([]PostView, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromLive(row, media[row.ID], likes[row.ID], comments[row.ID], liked[row.ID]))
	}
	return out, nil
}

func (r *GormRepo) commentCounts(ctx context.Context, ids []uint) (map[uint]int, error) {
	var rows []struct {
		PostID uint
		Total  int
	}
	if err := r.DB.WithContext(ctx).Model(&models.PostComment{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("count comments: %w", err))
	}
	out := make(map[uint]int, len(rows))
	for _, r := range rows {
		out[r.PostID] = r.Total
	}
	return out, nil
}

func (r *GormRepo) findPost(tx *gorm.DB, id uint) (*models.Post, error) {
	var p models.Post
	err := tx.First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "post not found")
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return &p, nil
}

// ToggleLike flips the viewer's like and reports the new state.
func (r *GormRepo) ToggleLike(ctx context.Context, postID, userID uint) (bool, error) {
	var liked bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.findPost(tx, postID); err != nil {
			return err
		}
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			liked = false
			return nil
		}
		liked = true
		return tx.Create(&models.PostLike{PostID: postID, UserID: userID}).Error
	})
	if err != nil {
		return false, apperr.FromStore(err)
	}
	return liked, nil
}

func (r *GormRepo) Comments(ctx context.Context, postID uint) ([]archive.Comment, error) {
	var out []archive.Comment
	if err := r.DB.WithContext(ctx).
		Table("post_comments c").
		Select("c.id, c.post_id, c.user_id, c.content, c.created_at, u.full_name, u.avatar").
		Joins("JOIN users u ON u.id = c.user_id").
		Where("c.post_id = ?", postID).
		Order("c.created_at ASC, c.id ASC").
		Scan(&out).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("list comments: %w", err))
	}
	if out == nil {
		out = []archive.Comment{}
	}
	return out, nil
}

func (r *GormRepo) AddComment(ctx context.Context, postID, userID uint, content string) (*models.PostComment, error) {
	c := &models.PostComment{PostID: postID, UserID: userID, Content: content}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := r.findPost(tx, postID); err != nil {
			return err
		}
		return tx.Create(c).Error
	})
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return c, nil
}

func (r *GormRepo) Create(ctx context.Context, p *models.Post, media []models.PostMedia) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if len(media) == 0 {
			return nil
		}
		for i := range media {
			media[i].PostID = p.ID
		}
		return tx.Create(&media).Error
	})
	return apperr.FromStore(err)
}

type postOwner struct {
	UserID      uint
	AuthorEmail string
}

func (r *GormRepo) owner(ctx context.Context, postID uint) (*postOwner, error) {
	var rows []postOwner
	if err := r.DB.WithContext(ctx).
		Table("posts p").
		Select("p.user_id, u.email AS author_email").
		Joins("JOIN users u ON u.id = p.user_id").
		Where("p.id = ?", postID).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return nil, apperr.FromStore(err)
	}
	if len(rows) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "post not found")
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

func (r *GormRepo) Delete(ctx context.Context, postID uint) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.PostLike{}, &models.PostComment{}, &models.PostMedia{}} {
			if err := tx.Where("post_id = ?", postID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Post{}, postID).Error
	})
	return apperr.FromStore(err)
}
