package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/marketfeed/internal/catalog"
	"github.com/Skotchmaster/marketfeed/internal/ledger"
	"github.com/Skotchmaster/marketfeed/pkg/config"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	mw "github.com/Skotchmaster/marketfeed/pkg/middleware/auth"
)

type ProductHTTP struct {
	Catalog *catalog.CatalogService
	Ledger  *ledger.LedgerService
}

type productRequest struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Slug        string          `json:"slug" validate:"max=255"`
	Description string          `json:"description"`
	Content     string          `json:"content"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  uint            `json:"category_id"`
	CategoryIDs []uint          `json:"category_ids"`
	Thumbnail   string          `json:"thumbnail"`
	Gallery     []string        `json:"gallery" validate:"max=20"`
}

// Absent fields stay untouched; an empty gallery clears it.
type productPatchRequest struct {
	Title       *string          `json:"title" validate:"omitempty,max=255"`
	Slug        *string          `json:"slug" validate:"omitempty,max=255"`
	Description *string          `json:"description"`
	Content     *string          `json:"content"`
	Price       *decimal.Decimal `json:"price"`
	CategoryID  *uint            `json:"category_id"`
	CategoryIDs []uint           `json:"category_ids"`
	Thumbnail   *string          `json:"thumbnail"`
	Gallery     []string         `json:"gallery" validate:"omitempty,max=20"`
	Status      *string          `json:"status" validate:"omitempty,oneof=active inactive banned"`
}

func editor(c echo.Context) catalog.Editor {
	p, _ := mw.PrincipalFrom(c)
	return catalog.Editor{ID: p.ID, Role: p.Role}
}

func viewerID(c echo.Context) uint {
	if p, ok := mw.PrincipalFrom(c); ok {
		return p.ID
	}
	return 0
}

func (h *ProductHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "products_list")

	q := catalog.ListQuery{
		Status:     c.QueryParam("status"),
		SellerID:   queryUint(c, "seller_id"),
		CategoryID: queryUint(c, "category_id"),
		Search:     c.QueryParam("search"),
		Sort:       c.QueryParam("sort"),
		Page:       queryInt(c, "page", 1),
		Limit:      queryInt(c, "limit", 0),
	}
	for _, s := range config.CSV(c.QueryParam("category_ids")) {
		if id := parseUint(s); id != 0 {
			q.CategoryIDs = append(q.CategoryIDs, id)
		}
	}

	res, err := h.Catalog.List(ctx, q)
	if err != nil {
		return fail(l, "products_list_error", err)
	}
	return ok(c, res)
}

func (h *ProductHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "products_get", "ident", c.Param("id"))

	v, err := h.Catalog.Get(ctx, c.Param("id"), viewerID(c))
	if err != nil {
		return fail(l, "product_get_error", err)
	}
	return ok(c, v)
}

func (h *ProductHTTP) Purchase(c echo.Context) error {
	ctx := c.Request().Context()
	p, _ := mw.PrincipalFrom(c)
	l := logging.FromContext(ctx).With("handler", "products_purchase", "user_id", p.ID, "ident", c.Param("id"))

	res, err := h.Ledger.Purchase(ctx, p.ID, c.Param("id"))
	if err != nil {
		return fail(l, "purchase_failed", err)
	}
	return okMsg(c, "Purchase successful", echo.Map{
		"newBalance":  res.NewBalance,
		"purchase_id": res.PurchaseID,
		"product_id":  res.ProductID,
	})
}

func (h *ProductHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	ed := editor(c)
	l := logging.FromContext(ctx).With("handler", "products_create", "user_id", ed.ID)

	var req productRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "product_create_error", err)
	}
	cats := req.CategoryIDs
	if len(cats) == 0 && req.CategoryID != 0 {
		cats = []uint{req.CategoryID}
	}
	v, err := h.Catalog.Create(ctx, ed, catalog.ProductInput{
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
		Content:     req.Content,
		Price:       req.Price,
		Thumbnail:   req.Thumbnail,
		CategoryIDs: cats,
		Gallery:     req.Gallery,
	})
	if err != nil {
		return fail(l, "product_create_error", err)
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Message: "Product created", Data: v})
}

func (h *ProductHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	ed := editor(c)
	l := logging.FromContext(ctx).With("handler", "products_update", "user_id", ed.ID, "ident", c.Param("id"))

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "product_update_error", err)
	}
	var req productPatchRequest
	if err := bind(c, &req); err != nil {
		return fail(l, "product_update_error", err)
	}
	cats := req.CategoryIDs
	if cats == nil && req.CategoryID != nil {
		cats = []uint{*req.CategoryID}
	}
	v, err := h.Catalog.Update(ctx, id, ed, catalog.ProductPatch{
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
		Content:     req.Content,
		Price:       req.Price,
		Thumbnail:   req.Thumbnail,
		Status:      req.Status,
		CategoryIDs: cats,
		Gallery:     req.Gallery,
	})
	if err != nil {
		return fail(l, "product_update_error", err)
	}
	return okMsg(c, "Product updated", v)
}

func (h *ProductHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ed := editor(c)
	l := logging.FromContext(ctx).With("handler", "products_delete", "user_id", ed.ID, "ident", c.Param("id"))

	id, err := parseID(c, "id")
	if err != nil {
		return fail(l, "product_delete_error", err)
	}
	if err := h.Catalog.Delete(ctx, id, ed); err != nil {
		return fail(l, "product_delete_error", err)
	}
	return okMsg(c, "Product deleted", nil)
}

func (h *ProductHTTP) Categories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "categories_list")

	cats, err := h.Catalog.Categories(ctx)
	if err != nil {
		return fail(l, "categories_list_error", err)
	}
	return ok(c, cats)
}
