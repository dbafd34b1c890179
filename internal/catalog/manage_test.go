package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/dbtest"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Learning Go":          "learning-go",
		"  Đồ án  tốt nghiệp ": "do-an-tot-nghiep",
		"C++ / Rust!!":         "c-rust",
		"2024":                 "p-2024",
		"***":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestCreate(t *testing.T) {
	svc, _, db := newCatalog(t)
	idx := &recordingIndex{}
	svc.Index = idx
	ctx := context.Background()

	seller := dbtest.User(t, db, "s@example.com", 0, func(u *models.User) { u.Role = models.RoleSeller })
	books := dbtest.Category(t, db, "books")
	music := dbtest.Category(t, db, "music")
	ed := Editor{ID: seller.ID, Role: seller.Role}

	v, err := svc.Create(ctx, ed, ProductInput{
		Title:       "Learning Go",
		Price:       decimal.RequireFromString("12.50"),
		CategoryIDs: []uint{music.ID, books.ID, music.ID},
		Gallery:     []string{"/a.png", " ", "/b.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "learning-go", v.Slug)
	assert.Equal(t, seller.ID, v.SellerID)
	assert.Equal(t, models.StatusActive, v.Status)
	require.NotNil(t, v.CategoryID)
	assert.Equal(t, music.ID, *v.CategoryID)
	assert.Len(t, v.Categories, 2)
	require.Len(t, v.Gallery, 2)
	assert.Equal(t, "/b.png", v.Gallery[1].ImageURL)
	assert.Equal(t, []uint{v.ID}, idx.indexed)

	// same title again gets a suffixed slug
	again, err := svc.Create(ctx, ed, ProductInput{Title: "Learning Go", Price: decimal.NewFromInt(1), CategoryIDs: []uint{books.ID}})
	require.NoError(t, err)
	assert.Equal(t, "learning-go-2", again.Slug)

	t.Run("explicit slug must be free", func(t *testing.T) {
		_, err := svc.Create(ctx, ed, ProductInput{Title: "Other", Slug: "Learning Go", CategoryIDs: []uint{books.ID}})
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})
	t.Run("validation", func(t *testing.T) {
		cases := []ProductInput{
			{Title: " ", CategoryIDs: []uint{books.ID}},
			{Title: "Neg", Price: decimal.NewFromInt(-1), CategoryIDs: []uint{books.ID}},
			{Title: "No category"},
			{Title: "Ghost category", CategoryIDs: []uint{9999}},
		}
		for _, in := range cases {
			_, err := svc.Create(ctx, ed, in)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), in.Title)
		}
	})
}

func TestCreate_SlugHeldByArchivedProduct(t *testing.T) {
	svc, arch, db := newCatalog(t)
	ctx := context.Background()

	seller := dbtest.User(t, db, "s@example.com", 0)
	cat := dbtest.Category(t, db, "books")
	_, err := arch.Store.Update(ctx, func(e *archive.Envelope) error {
		e.Products = append(e.Products, archive.Product{ID: 500, Slug: "atlas"})
		return nil
	})
	require.NoError(t, err)

	v, err := svc.Create(ctx, Editor{ID: seller.ID}, ProductInput{Title: "Atlas", CategoryIDs: []uint{cat.ID}})
	require.NoError(t, err)
	assert.Equal(t, "atlas-2", v.Slug)
}

func TestUpdate(t *testing.T) {
	svc, _, db := newCatalog(t)
	idx := &recordingIndex{}
	svc.Index = idx
	ctx := context.Background()

	owner := dbtest.User(t, db, "owner@example.com", 0)
	other := dbtest.User(t, db, "other@example.com", 0)
	adm := dbtest.User(t, db, "admin@example.com", 0, func(u *models.User) { u.Role = models.RoleAdmin })
	books := dbtest.Category(t, db, "books")
	music := dbtest.Category(t, db, "music")
	p := dbtest.Product(t, db, owner, books, "item", 100)
	require.NoError(t, db.Create(&models.ProductImage{ProductID: p.ID, ImageURL: "/old.png"}).Error)

	v, err := svc.Update(ctx, p.ID, Editor{ID: owner.ID, Role: models.RoleUser}, ProductPatch{
		Title:       ptr("Renamed"),
		Price:       ptr(decimal.NewFromInt(250)),
		CategoryIDs: []uint{music.ID},
		Gallery:     []string{},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", v.Title)
	assert.Equal(t, "item", v.Slug)
	assert.True(t, decimal.NewFromInt(250).Equal(v.Price))
	require.NotNil(t, v.CategoryID)
	assert.Equal(t, music.ID, *v.CategoryID)
	assert.Empty(t, v.Gallery)
	assert.True(t, v.UpdatedAt.After(p.UpdatedAt) || v.UpdatedAt.Equal(p.UpdatedAt))

	_, err = svc.Update(ctx, p.ID, Editor{ID: other.ID, Role: models.RoleUser}, ProductPatch{Title: ptr("Mine now")})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.Update(ctx, p.ID, Editor{ID: owner.ID}, ProductPatch{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Update(ctx, p.ID, Editor{ID: owner.ID}, ProductPatch{Status: ptr(models.StatusBanned)})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.Update(ctx, 9999, Editor{ID: owner.ID}, ProductPatch{Title: ptr("x")})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// an admin bans it; the owner cannot lift the ban
	v, err = svc.Update(ctx, p.ID, Editor{ID: adm.ID, Role: models.RoleAdmin}, ProductPatch{Status: ptr(models.StatusBanned)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusBanned, v.Status)
	assert.Equal(t, []uint{p.ID}, idx.deleted)

	_, err = svc.Update(ctx, p.ID, Editor{ID: owner.ID}, ProductPatch{Status: ptr(models.StatusActive)})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestUpdate_PrimaryAdminProducts(t *testing.T) {
	svc, _, db := newCatalog(t)
	svc.PrimaryAdminEmail = "root@example.com"
	ctx := context.Background()

	root := dbtest.User(t, db, "root@example.com", 0, func(u *models.User) { u.Role = models.RoleAdmin })
	adm := dbtest.User(t, db, "admin@example.com", 0, func(u *models.User) { u.Role = models.RoleAdmin })
	p := dbtest.Product(t, db, root, nil, "root-item", 100)

	_, err := svc.Update(ctx, p.ID, Editor{ID: adm.ID, Role: models.RoleAdmin}, ProductPatch{Title: ptr("hijack")})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(svc.Delete(ctx, p.ID, Editor{ID: adm.ID, Role: models.RoleAdmin})))

	_, err = svc.Update(ctx, p.ID, Editor{ID: root.ID, Role: models.RoleAdmin}, ProductPatch{Title: ptr("mine")})
	require.NoError(t, err)
}

func TestUpdate_ArchivedIsReadOnly(t *testing.T) {
	svc, arch, db := newCatalog(t)
	ctx := context.Background()

	seller := dbtest.User(t, db, "s@example.com", 0)
	p := dbtest.Product(t, db, seller, nil, "old", 100)
	dbtest.Age(t, db, "products", p.ID, days(200))
	_, _, err := arch.Share(ctx, string(archive.ProductsInactive))
	require.NoError(t, err)

	_, err = svc.Update(ctx, p.ID, Editor{ID: seller.ID}, ProductPatch{Title: ptr("new")})
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(svc.Delete(ctx, p.ID, Editor{ID: seller.ID})))
}

func TestDelete(t *testing.T) {
	svc, _, db := newCatalog(t)
	idx := &recordingIndex{}
	svc.Index = idx
	ctx := context.Background()

	seller := dbtest.User(t, db, "s@example.com", 0)
	buyer := dbtest.User(t, db, "b@example.com", 0)
	cat := dbtest.Category(t, db, "books")
	spare := dbtest.Product(t, db, seller, cat, "spare", 100)
	require.NoError(t, db.Create(&models.ProductImage{ProductID: spare.ID, ImageURL: "/x.png"}).Error)
	require.NoError(t, db.Create(&models.ProductCategory{ProductID: spare.ID, CategoryID: cat.ID}).Error)
	sold := dbtest.Product(t, db, seller, cat, "sold", 100)
	require.NoError(t, db.Create(&models.Purchase{UserID: buyer.ID, ProductID: sold.ID, PricePaid: sold.Price}).Error)

	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(svc.Delete(ctx, spare.ID, Editor{ID: buyer.ID})))

	require.NoError(t, svc.Delete(ctx, spare.ID, Editor{ID: seller.ID}))
	assert.Equal(t, []uint{spare.ID}, idx.deleted)
	for _, m := range []any{&models.ProductImage{}, &models.ProductCategory{}} {
		var n int64
		require.NoError(t, db.Model(m).Where("product_id = ?", spare.ID).Count(&n).Error)
		assert.Zero(t, n)
	}

	err := svc.Delete(ctx, sold.ID, Editor{ID: seller.ID})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = svc.Delete(ctx, spare.ID, Editor{ID: seller.ID})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCategories(t *testing.T) {
	svc, _, db := newCatalog(t)
	dbtest.Category(t, db, "music")
	dbtest.Category(t, db, "books")

	cats, err := svc.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "books", cats[0].Slug)
}
