// Package people serves user search and profiles over live and archived
// accounts, plus the admin status and role switches.
package people

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/apperr"
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/models"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
	"github.com/Skotchmaster/marketfeed/pkg/util"
)

const defaultLimit = 20

type Archive interface {
	Envelope(ctx context.Context) (*archive.Envelope, error)
	PurgeArchived(ctx context.Context, cat archive.Category, env *archive.Envelope) (int, error)
}

// Summary is the search row: no balance, phone or bio.
type Summary struct {
	ID         uint       `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	Avatar     string     `json:"avatar"`
	Gender     string     `json:"gender"`
	Role       string     `json:"role"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login"`
	IsArchived bool       `json:"is_archived"`
}

type Stats struct {
	Posts      int64           `json:"posts"`
	Products   int64           `json:"products"`
	TotalSales decimal.Decimal `json:"total_sales"`
}

type Profile struct {
	archive.User
	Stats Stats `json:"stats"`
}

type SearchResult struct {
	Users      []Summary       `json:"users"`
	Pagination util.Pagination `json:"pagination"`
}

func summaryOf(u archive.User) Summary {
	return Summary{
		ID: u.ID, Email: u.Email, FullName: u.FullName, Avatar: u.Avatar, Gender: u.Gender,
		Role: u.Role, Status: u.Status, CreatedAt: u.CreatedAt, LastLogin: u.LastLogin,
		IsArchived: u.IsArchived,
	}
}

func fromModel(u models.User) archive.User {
	return archive.User{
		ID: u.ID, Email: u.Email, FullName: u.FullName, Avatar: u.Avatar, Gender: u.Gender,
		Bio: u.Bio, Phone: u.Phone, Role: u.Role, Status: u.Status, Balance: u.Balance,
		CreatedAt: u.CreatedAt, LastLogin: u.LastLogin,
	}
}

type PeopleService struct {
	DB      *gorm.DB
	Archive Archive
	// PrimaryAdminEmail names the account whose role and status are fixed.
	PrimaryAdminEmail string
}

func (s *PeopleService) archived(ctx context.Context) (*archive.Envelope, error) {
	env, err := s.Archive.Envelope(ctx)
	if err != nil {
		return nil, err
	}
	if len(env.Users) > 0 {
		if _, err := s.Archive.PurgeArchived(ctx, archive.UsersInactive, env); err != nil {
			logging.FromContext(ctx).Warn("archived_users_purge_failed", "error", err)
		}
	}
	return env, nil
}

func matches(u archive.User, needle string) bool {
	return needle == "" ||
		strings.Contains(strings.ToLower(u.Email), needle) ||
		strings.Contains(strings.ToLower(u.FullName), needle)
}

func (s *PeopleService) Search(ctx context.Context, keyword string, page, limit int) (*SearchResult, error) {
	env, err := s.archived(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(keyword))

	q := s.DB.WithContext(ctx).Model(&models.User{})
	if ids := env.UserIDs(); len(ids) > 0 {
		q = q.Where("id NOT IN ?", ids)
	}
	if needle != "" {
		like := "%" + needle + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}
	var live []models.User
	if err := q.Order("created_at DESC, id DESC").Find(&live).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("search users: %w", err))
	}

	all := make([]Summary, 0, len(live)+len(env.Users))
	for _, u := range live {
		all = append(all, summaryOf(fromModel(u)))
	}
	for _, u := range env.Users {
		if matches(u, needle) {
			u.IsArchived = true
			all = append(all, summaryOf(u))
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	page, limit = util.Normalize(page, limit, defaultLimit)
	items, meta := util.Paginate(all, page, limit)
	return &SearchResult{Users: items, Pagination: meta}, nil
}

// Profile resolves archived accounts first; their stats come from the
// archive since their live rows are gone.
func (s *PeopleService) Profile(ctx context.Context, id uint) (*Profile, error) {
	env, err := s.archived(ctx)
	if err != nil {
		return nil, err
	}
	if u, ok := env.FindUser(id); ok {
		u.IsArchived = true
		p := &Profile{User: u, Stats: Stats{TotalSales: decimal.Zero}}
		for _, post := range env.Posts {
			if post.UserID == id {
				p.Stats.Posts++
			}
		}
		for _, prod := range env.Products {
			if prod.SellerID == id {
				p.Stats.Products++
			}
		}
		return p, nil
	}

	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "user not found")
		}
		return nil, apperr.FromStore(err)
	}
	stats, err := s.stats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Profile{User: fromModel(u), Stats: *stats}, nil
}

func (s *PeopleService) stats(ctx context.Context, id uint) (*Stats, error) {
	db := s.DB.WithContext(ctx)
	st := &Stats{}
	if err := db.Model(&models.Post{}).Where("user_id = ? AND status = ?", id, models.StatusActive).Count(&st.Posts).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("count posts: %w", err))
	}
	if err := db.Model(&models.Product{}).Where("seller_id = ?", id).Count(&st.Products).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("count products: %w", err))
	}
	var sales []string
	if err := db.Table("purchases pu").
		Joins("JOIN products p ON p.id = pu.product_id").
		Where("p.seller_id = ?", id).
		Pluck("pu.price_paid", &sales).Error; err != nil {
		return nil, apperr.FromStore(fmt.Errorf("sum sales: %w", err))
	}
	st.TotalSales = decimal.Zero
	for _, v := range sales {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("parse sale amount %q: %w", v, err)
		}
		st.TotalSales = st.TotalSales.Add(d)
	}
	return st, nil
}

func (s *PeopleService) guardPrimary(ctx context.Context, id uint) error {
	if s.PrimaryAdminEmail == "" {
		return nil
	}
	var emails []string
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Pluck("email", &emails).Error; err != nil {
		return apperr.FromStore(err)
	}
	if len(emails) == 0 {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	if strings.EqualFold(emails[0], s.PrimaryAdminEmail) {
		return apperr.New(apperr.KindForbidden, "the primary admin cannot be modified")
	}
	return nil
}

func (s *PeopleService) update(ctx context.Context, id uint, column, value string) error {
	if err := s.guardPrimary(ctx, id); err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return apperr.FromStore(fmt.Errorf("update user %s: %w", column, res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	return nil
}

func (s *PeopleService) SetStatus(ctx context.Context, id uint, status string) error {
	if status != models.StatusActive && status != models.StatusBanned {
		return apperr.Newf(apperr.KindValidation, "invalid status %q", status)
	}
	return s.update(ctx, id, "status", status)
}

func (s *PeopleService) SetRole(ctx context.Context, id uint, role string) error {
	switch role {
	case models.RoleUser, models.RoleSeller, models.RoleAdmin:
	default:
		return apperr.Newf(apperr.KindValidation, "invalid role %q", role)
	}
	return s.update(ctx, id, "role", role)
}
