package feed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/dbtest"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/internal/notify"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Enqueue(ev notify.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func newFeed(t *testing.T) (*FeedService, *archive.ArchiveService, *gorm.DB, *recordingNotifier) {
	t.Helper()
	db := dbtest.New(t)
	arch := &archive.ArchiveService{
		Store:  archive.NewFileStore(filepath.Join(t.TempDir(), "archive.json"), nil, time.Second),
		Snap:   &archive.Snapshotter{DB: db},
		Purger: archive.NewPurger(db),
	}
	n := &recordingNotifier{}
	return &FeedService{Repo: &GormRepo{DB: db}, Archive: arch, Notifier: n, PrimaryAdminEmail: "root@example.com"}, arch, db, n
}

func ago(d int) time.Time { return time.Now().UTC().Add(-time.Duration(d) * 24 * time.Hour) }

func postIDs(vs []PostView) []uint {
	out := make([]uint, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.ID)
	}
	return out
}

func TestList_MergesArchivedPosts(t *testing.T) {
	svc, arch, db, _ := newFeed(t)
	ctx := context.Background()

	alice := dbtest.User(t, db, "alice@example.com", 0)
	bob := dbtest.User(t, db, "bob@example.com", 0)

	old := dbtest.Post(t, db, alice, "from the archive", ago(120))
	mid := dbtest.Post(t, db, bob, "last month", ago(30))
	recent := dbtest.Post(t, db, alice, "today", ago(0))
	require.NoError(t, db.Create(&models.PostLike{PostID: old.ID, UserID: bob.ID}).Error)
	require.NoError(t, db.Create(&models.PostLike{PostID: recent.ID, UserID: bob.ID}).Error)

	_, _, err := arch.Share(ctx, string(archive.PostsOld))
	require.NoError(t, err)

	res, err := svc.List(ctx, ListQuery{}, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{recent.ID, mid.ID, old.ID}, postIDs(res.Posts))
	assert.Equal(t, 3, res.Pagination.Total)

	assert.True(t, res.Posts[0].IsLiked)
	assert.Equal(t, 1, res.Posts[0].LikeCount)
	assert.False(t, res.Posts[2].IsLiked, "archived posts never report is_liked")
	assert.True(t, res.Posts[2].IsArchived)
	assert.Equal(t, 1, res.Posts[2].LikeCount)

	res, err = svc.List(ctx, ListQuery{UserID: alice.ID}, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{recent.ID, old.ID}, postIDs(res.Posts))
}

func TestList_Pagination(t *testing.T) {
	svc, _, db, _ := newFeed(t)
	u := dbtest.User(t, db, "u@example.com", 0)
	for i := 0; i < 12; i++ {
		dbtest.Post(t, db, u, fmt.Sprintf("post %d", i), ago(i))
	}

	res, err := svc.List(context.Background(), ListQuery{Page: 2}, 0)
	require.NoError(t, err)
	assert.Len(t, res.Posts, 2)
	assert.Equal(t, 2, res.Pagination.TotalPages)
	assert.Equal(t, 10, res.Pagination.Limit)
}

func TestArchivedPostIsReadOnly(t *testing.T) {
	svc, arch, db, _ := newFeed(t)
	ctx := context.Background()

	u := dbtest.User(t, db, "u@example.com", 0)
	old := dbtest.Post(t, db, u, "old", ago(100))
	require.NoError(t, db.Create(&models.PostComment{PostID: old.ID, UserID: u.ID, Content: "kept"}).Error)
	_, _, err := arch.Share(ctx, string(archive.PostsOld))
	require.NoError(t, err)

	_, err = svc.ToggleLike(ctx, old.ID, u.ID)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	_, err = svc.AddComment(ctx, old.ID, u.ID, "hello")
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.Equal(t, "archived post is read-only", apperr.Message(err))

	comments, err := svc.Comments(ctx, old.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "kept", comments[0].Content)

	v, err := svc.Get(ctx, old.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, v.IsArchived)
}

func TestToggleLikeAndComment(t *testing.T) {
	svc, _, db, _ := newFeed(t)
	ctx := context.Background()

	u := dbtest.User(t, db, "u@example.com", 0)
	p := dbtest.Post(t, db, u, "hi", ago(0))

	liked, err := svc.ToggleLike(ctx, p.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	liked, err = svc.ToggleLike(ctx, p.ID, u.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	_, err = svc.ToggleLike(ctx, 999, u.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.AddComment(ctx, p.ID, u.ID, "   ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AddComment(ctx, 999, u.ID, "x")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	c, err := svc.AddComment(ctx, p.ID, u.ID, "  nice  ")
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Content)

	v, err := svc.Get(ctx, p.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v.CommentCount)
	assert.Zero(t, v.LikeCount)
}

func TestCreate_AdminPostNotifies(t *testing.T) {
	svc, _, db, n := newFeed(t)
	ctx := context.Background()

	admin := dbtest.User(t, db, "admin@example.com", 0, func(u *models.User) { u.Role = models.RoleAdmin })
	user := dbtest.User(t, db, "u@example.com", 0)

	v, err := svc.Create(ctx, Author{ID: user.ID, Role: user.Role}, "hello", []MediaInput{{MediaURL: "/a.jpg"}, {MediaURL: ""}})
	require.NoError(t, err)
	require.Len(t, v.Media, 1)
	assert.Equal(t, "image", v.Media[0].MediaType)
	assert.Empty(t, n.events)

	_, err = svc.Create(ctx, Author{ID: admin.ID, Role: admin.Role}, "maintenance at 10pm", nil)
	require.NoError(t, err)
	require.Len(t, n.events, 1)
	assert.Equal(t, notify.KindAdminPost, n.events[0].Kind)
	assert.Equal(t, "maintenance at 10pm", n.events[0].Content)

	_, err = svc.Create(ctx, Author{ID: user.ID}, " ", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDelete_Permissions(t *testing.T) {
	svc, _, db, _ := newFeed(t)
	ctx := context.Background()

	root := dbtest.User(t, db, "root@example.com", 0, func(u *models.User) { u.Role = models.RoleAdmin })
	admin := dbtest.User(t, db, "admin@example.com", 0, func(u *models.User) { u.Role = models.RoleAdmin })
	alice := dbtest.User(t, db, "alice@example.com", 0)
	bob := dbtest.User(t, db, "bob@example.com", 0)

	rootPost := dbtest.Post(t, db, root, "pinned", ago(0))
	alicePost := dbtest.Post(t, db, alice, "mine", ago(0))
	require.NoError(t, db.Create(&models.PostLike{PostID: alicePost.ID, UserID: bob.ID}).Error)

	err := svc.Delete(ctx, alicePost.ID, Author{ID: bob.ID, Role: models.RoleUser})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	err = svc.Delete(ctx, rootPost.ID, Author{ID: admin.ID, Role: models.RoleAdmin})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, svc.Delete(ctx, alicePost.ID, Author{ID: alice.ID, Role: models.RoleUser}))
	require.NoError(t, svc.Delete(ctx, rootPost.ID, Author{ID: root.ID, Role: models.RoleAdmin}))

	var likes int64
	require.NoError(t, db.Model(&models.PostLike{}).Count(&likes).Error)
	assert.Zero(t, likes)

	err = svc.Delete(ctx, alicePost.ID, Author{ID: alice.ID})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
