// Package dbtest builds in-memory SQLite databases with the full schema for
// package tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/models"
	pkgdb "github.com/Skotchmaster/marketfeed/pkg/db"
)

func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), pkgdb.Config())
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func User(t testing.TB, db *gorm.DB, email string, balance int64, mutate ...func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{
		Email:        email,
		PasswordHash: "x",
		FullName:     "User " + email,
		Role:         models.RoleUser,
		Status:       models.StatusActive,
		Balance:      decimal.NewFromInt(balance),
	}
	for _, m := range mutate {
		m(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func Category(t testing.TB, db *gorm.DB, slug string) *models.Category {
	t.Helper()
	c := &models.Category{Name: "Cat " + slug, Slug: slug}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}

func Product(t testing.TB, db *gorm.DB, seller *models.User, cat *models.Category, slug string, price int64, mutate ...func(*models.Product)) *models.Product {
	t.Helper()
	p := &models.Product{
		Slug:     slug,
		Title:    "Product " + slug,
		Price:    decimal.NewFromInt(price),
		SellerID: seller.ID,
		Status:   models.StatusActive,
	}
	if cat != nil {
		p.CategoryID = &cat.ID
	}
	for _, m := range mutate {
		m(p)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func Post(t testing.TB, db *gorm.DB, author *models.User, content string, createdAt time.Time) *models.Post {
	t.Helper()
	p := &models.Post{UserID: author.ID, Content: content, Status: models.StatusActive, CreatedAt: createdAt}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

// Age rewrites created_at of a row, bypassing gorm's autoCreateTime.
func Age(t testing.TB, db *gorm.DB, table string, id uint, createdAt time.Time) {
	t.Helper()
	if err := db.Table(table).Where("id = ?", id).UpdateColumn("created_at", createdAt).Error; err != nil {
		t.Fatalf("age %s: %v", table, err)
	}
}

func Email(prefix string, i int) string {
	return fmt.Sprintf("%s%d@example.com", prefix, i)
}
