package models

import "time"

type PostType string

const (
	PostBlog  PostType = "blog"
	PostLost  PostType = "lost"
	PostFound PostType = "found"
)

// IsLostFound reports whether the post belongs to the lost-pet directory.
func (t PostType) IsLostFound() bool {
	return t == PostLost || t == PostFound
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type Media struct {
	ID   string    `json:"id"`
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type InteractionType string

const (
	InteractionLike  InteractionType = "like"
	InteractionHeart InteractionType = "heart"
)

type Interaction struct {
	Type     InteractionType `json:"type"`
	Username string          `json:"username"`
}

type Comment struct {
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Post struct {
	ID           string        `json:"id"`
	Type         PostType      `json:"type"`
	Username     string        `json:"username"`
	Content      string        `json:"content"`
	Medias       []Media       `json:"medias"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Interactions []Interaction `json:"interactions"`
	CommentNum   int           `json:"commentNum"`

	// Lost and found posts only.
	LostAt       *time.Time `json:"lostAt,omitempty"`
	Area         *Location  `json:"area,omitempty"`
	LastSeen     *Location  `json:"lastSeen,omitempty"`
	ContactInfo  string     `json:"contactInfo,omitempty"`
	IsResolved   bool       `json:"isResolved"`
	Participants []string   `json:"participants"`
	RemindedAt   *time.Time `json:"-"`
}

type PostWithUser struct {
	Post
	DisplayName string `json:"displayName"`
	UserAvatar  string `json:"userAvatar"`
}

type CommentWithUser struct {
	Comment
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}
