package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketfeed/internal/people"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
)

type UserHTTP struct {
	Svc *people.PeopleService
}

func (h *UserHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users_search")

	keyword := c.QueryParam("keyword")
	if keyword == "" {
		keyword = c.QueryParam("q")
	}
	res, err := h.Svc.Search(ctx, keyword, queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		return fail(l, "users_search_error", err)
	}
	return ok(c, res)
}

func (h *UserHTTP) Profile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users_profile")

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "profile_error", err)
	}
	p, err := h.Svc.Profile(ctx, id)
	if err != nil {
		return fail(l, "profile_error", err)
	}
	return ok(c, p)
}
