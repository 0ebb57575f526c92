package models

import "time"

// PostView is the response shape of a post with its relations expanded.
type PostView struct {
	ID            uint          `json:"id"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	Category      Category      `json:"category"`
	Tags          []string      `json:"tags"`
	Images        []string      `json:"images"`
	IsPremium     bool          `json:"isPremium"`
	Locked        bool          `json:"locked,omitempty"`
	Author        UserSummary   `json:"author"`
	Upvotes       []uint        `json:"upvotes"`
	Downvotes     []uint        `json:"downvotes"`
	UpvoteCount   int           `json:"upvoteCount"`
	DownvoteCount int           `json:"downvoteCount"`
	Comments      []CommentView `json:"comments"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// CommentView is a comment with its author and replies expanded.
type CommentView struct {
	ID        uint        `json:"id"`
	Content   string      `json:"content"`
	Author    UserSummary `json:"author"`
	Replies   []ReplyView `json:"replies"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// ReplyView is a reply with its author expanded.
type ReplyView struct {
	ID        uint        `json:"id"`
	Content   string      `json:"content"`
	Author    UserSummary `json:"author"`
	CreatedAt time.Time   `json:"createdAt"`
}

// NewPostView builds the response shape from a post loaded with its
// author, votes, comments, replies and their authors.
func NewPostView(p *Post) PostView {
	v := PostView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Category:  p.Category,
		Tags:      nonNil(p.Tags),
		Images:    nonNil(p.Images),
		IsPremium: p.IsPremium,
		Author:    p.Author.Summary(),
		Upvotes:   []uint{},
		Downvotes: []uint{},
		Comments:  make([]CommentView, 0, len(p.Comments)),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	for _, vote := range p.Votes {
		switch vote.Direction {
		case VoteUp:
			v.Upvotes = append(v.Upvotes, vote.UserID)
		case VoteDown:
			v.Downvotes = append(v.Downvotes, vote.UserID)
		}
	}
	v.UpvoteCount = len(v.Upvotes)
	v.DownvoteCount = len(v.Downvotes)

	for _, c := range p.Comments {
		cv := CommentView{
			ID:        c.ID,
			Content:   c.Content,
			Author:    c.Author.Summary(),
			Replies:   make([]ReplyView, 0, len(c.Replies)),
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
		for _, r := range c.Replies {
			cv.Replies = append(cv.Replies, ReplyView{
				ID:        r.ID,
				Content:   r.Content,
				Author:    r.Author.Summary(),
				CreatedAt: r.CreatedAt,
			})
		}
		v.Comments = append(v.Comments, cv)
	}
	return v
}

// Lock hides the body of a premium post from a viewer without access.
func (v *PostView) Lock() {
	v.Content = ""
	v.Locked = true
}

// FavouriteResult is returned by a favourite toggle.
type FavouriteResult struct {
	IsFavourite bool     `json:"isFavourite"`
	Post        PostView `json:"postData"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
