package feed

import (
	"context"
	"sort"
	"strings"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/internal/notify"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	"github.com/Skotchmaster/marketfeed/pkg/util"
)

const defaultLimit = 10

var errReadOnly = apperr.New(apperr.KindInvalidState, "archived post is read-only")

type Archive interface {
	Envelope(ctx context.Context) (*archive.Envelope, error)
	PurgeArchived(ctx context.Context, cat archive.Category, env *archive.Envelope) (int, error)
}

type Notifier interface {
	Enqueue(ev notify.Event) bool
}

type Author struct {
	ID   uint
	Role string
}

type MediaInput struct {
	MediaURL  string `json:"media_url" validate:"required"`
	MediaType string `json:"media_type"`
}

type ListQuery struct {
	UserID uint
	Page   int
	Limit  int
}

type ListResult struct {
	Posts      []PostView      `json:"posts"`
	Pagination util.Pagination `json:"pagination"`
}

type FeedService struct {
	Repo     *GormRepo
	Archive  Archive
	Notifier Notifier
	// PrimaryAdminEmail owns posts that nobody else may delete.
	PrimaryAdminEmail string
}

func (s *FeedService) archived(ctx context.Context) (*archive.Envelope, error) {
	env, err := s.Archive.Envelope(ctx)
	if err != nil {
		return nil, err
	}
	if len(env.Posts) > 0 {
		if _, err := s.Archive.PurgeArchived(ctx, archive.PostsOld, env); err != nil {
			logging.FromContext(ctx).Warn("archived_posts_purge_failed", "error", err)
		}
	}
	return env, nil
}

func (s *FeedService) List(ctx context.Context, q ListQuery, viewerID uint) (*ListResult, error) {
	env, err := s.archived(ctx)
	if err != nil {
		return nil, err
	}
	live, err := s.Repo.ListLive(ctx, env.PostIDs(), q.UserID, viewerID)
	if err != nil {
		return nil, err
	}

	all := make([]PostView, 0, len(live)+len(env.Posts))
	all = append(all, live...)
	for _, p := range env.Posts {
		if q.UserID != 0 && p.UserID != q.UserID {
			continue
		}
		all = append(all, FromArchived(p))
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	page, limit := util.Normalize(q.Page, q.Limit, defaultLimit)
	items, meta := util.Paginate(all, page, limit)
	return &ListResult{Posts: items, Pagination: meta}, nil
}

func (s *FeedService) Get(ctx context.Context, id, viewerID uint) (*PostView, error) {
	env, err := s.archived(ctx)
	if err != nil {
		return nil, err
	}
	if p, ok := env.FindPost(id); ok {
		v := FromArchived(p)
		return &v, nil
	}
	return s.Repo.GetLive(ctx, id, viewerID)
}

func (s *FeedService) isArchived(ctx context.Context, id uint) (archive.Post, bool, error) {
	env, err := s.Archive.Envelope(ctx)
	if err != nil {
		return archive.Post{}, false, err
	}
	p, ok := env.FindPost(id)
	return p, ok, nil
}

func (s *FeedService) ToggleLike(ctx context.Context, postID, userID uint) (bool, error) {
	_, archived, err := s.isArchived(ctx, postID)
	if err != nil {
		return false, err
	}
	if archived {
		return false, errReadOnly
	}
	return s.Repo.ToggleLike(ctx, postID, userID)
}

func (s *FeedService) Comments(ctx context.Context, postID uint) ([]archive.Comment, error) {
	p, archived, err := s.isArchived(ctx, postID)
	if err != nil {
		return nil, err
	}
	if archived {
		return FromArchived(p).Comments, nil
	}
	return s.Repo.Comments(ctx, postID)
}

func (s *FeedService) AddComment(ctx context.Context, postID, userID uint, content string) (*models.PostComment, error) {
	_, archived, err := s.isArchived(ctx, postID)
	if err != nil {
		return nil, err
	}
	if archived {
		return nil, errReadOnly
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.KindValidation, "content is required")
	}
	return s.Repo.AddComment(ctx, postID, userID, content)
}

// Create publishes a post. Posts written by admins are also pushed to the
// outbound notifier as announcements.
func (s *FeedService) Create(ctx context.Context, author Author, content string, media []MediaInput) (*PostView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.KindValidation, "content is required")
	}
	p := &models.Post{UserID: author.ID, Content: content, Status: models.StatusActive}
	rows := make([]models.PostMedia, 0, len(media))
	for _, m := range media {
		if strings.TrimSpace(m.MediaURL) == "" {
			continue
		}
		kind := m.MediaType
		if kind == "" {
			kind = "image"
		}
		rows = append(rows, models.PostMedia{MediaURL: m.MediaURL, MediaType: kind})
	}
	if err := s.Repo.Create(ctx, p, rows); err != nil {
		return nil, err
	}

	if author.Role == models.RoleAdmin && s.Notifier != nil {
		s.Notifier.Enqueue(notify.Event{
			Kind:    notify.KindAdminPost,
			Title:   "New announcement",
			Content: content,
			Meta:    map[string]any{"post_id": p.ID, "author_id": author.ID},
		})
	}
	return s.Repo.GetLive(ctx, p.ID, author.ID)
}

// Delete lets authors remove their own posts and admins remove any post,
// except that only the primary admin may remove the primary admin's posts.
func (s *FeedService) Delete(ctx context.Context, postID uint, requester Author) error {
	_, archived, err := s.isArchived(ctx, postID)
	if err != nil {
		return err
	}
	if archived {
		return errReadOnly
	}
	own, err := s.Repo.owner(ctx, postID)
	if err != nil {
		return err
	}
	if s.PrimaryAdminEmail != "" && strings.EqualFold(own.AuthorEmail, s.PrimaryAdminEmail) {
		email, err := s.Repo.email(ctx, requester.ID)
		if err != nil {
			return err
		}
		if !strings.EqualFold(email, s.PrimaryAdminEmail) {
			return apperr.New(apperr.KindForbidden, "posts of the primary admin cannot be deleted")
		}
	}
	if requester.Role != models.RoleAdmin && own.UserID != requester.ID {
		return apperr.New(apperr.KindForbidden, "you do not have permission to delete this post")
	}
	return s.Repo.Delete(ctx, postID)
}
