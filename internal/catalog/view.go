package catalog

import (
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

// ProductView is the single shape served for both live and archived
// products. IsArchived tells them apart.
type ProductView struct {
	archive.Product
	IsPurchased bool `json:"is_purchased"`
}

type liveRow struct {
	models.Product
	CategoryName string
	CategorySlug string
	SellerName   string
	SellerAvatar string
	SellerEmail  string
}

func FromLive(r liveRow, gallery []archive.Image, cats []archive.CategoryRef) ProductView {
	v := ProductView{Product: archive.Product{
		ID:            r.ID,
		Slug:          r.Slug,
		Title:         r.Title,
		Description:   r.Description,
		Content:       r.Content,
		Price:         r.Price,
		SellerID:      r.SellerID,
		CategoryID:    r.CategoryID,
		Status:        r.Status,
		PurchaseCount: r.PurchaseCount,
		ViewCount:     r.ViewCount,
		Thumbnail:     r.Thumbnail,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		CategoryName:  r.CategoryName,
		CategorySlug:  r.CategorySlug,
		SellerName:    r.SellerName,
		SellerAvatar:  r.SellerAvatar,
		SellerEmail:   r.SellerEmail,
		Gallery:       gallery,
		Categories:    cats,
	}}
	if v.Gallery == nil {
		v.Gallery = []archive.Image{}
	}
	if len(v.Categories) == 0 {
		v.Categories = primaryOnly(r.CategoryID, r.CategoryName, r.CategorySlug)
	}
	return v
}

func FromArchived(p archive.Product) ProductView {
	p.IsArchived = true
	if p.Gallery == nil {
		p.Gallery = []archive.Image{}
	}
	if len(p.Categories) == 0 {
		p.Categories = primaryOnly(p.CategoryID, p.CategoryName, p.CategorySlug)
	}
	return ProductView{Product: p}
}

func primaryOnly(id *uint, name, slug string) []archive.CategoryRef {
	if id == nil || *id == 0 {
		return []archive.CategoryRef{}
	}
	return []archive.CategoryRef{{ID: *id, Name: name, Slug: slug}}
}

func (v ProductView) inCategory(id uint) bool {
	if v.CategoryID != nil && *v.CategoryID == id {
		return true
	}
	for _, c := range v.Categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (v ProductView) popularity() int {
	return v.PurchaseCount*2 + v.ViewCount
}
