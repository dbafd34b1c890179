package feed

import (
	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/internal/models"
)

type PostView struct {
	archive.Post
	IsLiked bool `json:"is_liked"`
}

type liveRow struct {
	models.Post
	FullName string
	Avatar   string
	Gender   string
}

func FromLive(r liveRow, media []archive.Media, likes, comments int, liked bool) PostView {
	v := PostView{Post: archive.Post{
		ID:           r.ID,
		UserID:       r.UserID,
		Content:      r.Content,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		FullName:     r.FullName,
		Avatar:       r.Avatar,
		Gender:       r.Gender,
		Media:        media,
		Comments:     []archive.Comment{},
		LikeCount:    likes,
		CommentCount: comments,
	}, IsLiked: liked}
	if v.Media == nil {
		v.Media = []archive.Media{}
	}
	return v
}

// FromArchived never reports is_liked: likes of archived posts are frozen
// counts without voters.
func FromArchived(p archive.Post) PostView {
	p.IsArchived = true
	if p.Media == nil {
		p.Media = []archive.Media{}
	}
	if p.Comments == nil {
		p.Comments = []archive.Comment{}
	}
	if p.CommentCount == 0 {
		p.CommentCount = len(p.Comments)
	}
	return PostView{Post: p}
}
