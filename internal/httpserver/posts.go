package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketfeed/internal/feed"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	mw "github.com/Skotchmaster/marketfeed/pkg/middleware/auth"
)

type PostHTTP struct {
	Svc *feed.FeedService
}

type createPostRequest struct {
	Content string            `json:"content" validate:"required,max=5000"`
	Media   []feed.MediaInput `json:"media" validate:"max=10,dive"`
}

type commentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

func author(c echo.Context) feed.Author {
	p, _ := mw.PrincipalFrom(c)
	return feed.Author{ID: p.ID, Role: p.Role}
}

func (h *PostHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "posts_list")

	res, err := h.Svc.List(ctx, feed.ListQuery{
		UserID: queryUint(c, "user_id"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 0),
	}, viewerID(c))
	if err != nil {
		return fail(l, "posts_list_error", err)
	}
	return ok(c, res)
}

func (h *PostHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "posts_get")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "post_get_error", err)
	}
	v, err := h.Svc.Get(ctx, id, viewerID(c))
	if err != nil {
		return fail(l, "post_get_error", err)
	}
	return ok(c, v)
}

func (h *PostHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "posts_create")

	var req createPostRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "post_create_error", err)
	}
	v, err := h.Svc.Create(ctx, author(c), req.Content, req.Media)
	if err != nil {
		return fail(l, "post_create_error", err)
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: v})
}

func (h *PostHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "posts_delete")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "post_delete_error", err)
	}
	if err := h.Svc.Delete(ctx, id, author(c)); err != nil {
		return fail(l, "post_delete_error", err)
	}
	return okMsg(c, "Post deleted", nil)
}

func (h *PostHTTP) ToggleLike(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "posts_like")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "post_like_error", err)
	}
	liked, err := h.Svc.ToggleLike(ctx, id, viewerID(c))
	if err != nil {
		return fail(l, "post_like_error", err)
	}
	return ok(c, echo.Map{"liked": liked})
}

func (h *PostHTTP) Comments(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "posts_comments")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "post_comments_error", err)
	}
	rows, err := h.Svc.Comments(ctx, id)
	if err != nil {
		return fail(l, "post_comments_error", err)
	}
	return ok(c, rows)
}

func (h *PostHTTP) AddComment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "posts_add_comment")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "comment_error", err)
	}
	var req commentRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "comment_error", err)
	}
	cm, err := h.Svc.AddComment(ctx, id, viewerID(c), req.Content)
	if err != nil {
		return fail(l, "comment_error", err)
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: cm})
}
