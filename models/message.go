package models

import "time"

type Message struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	GroupID   int       `json:"groupId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Group struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	IsDirect     bool      `json:"isDirect"`
	OwnerName    string    `json:"ownerName"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"-"`
}

// GroupChat is a group as presented to one of its members.
type GroupChat struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	IsDirect    bool     `json:"isDirect"`
	OwnerName   string   `json:"ownerName"`
	Members     []string `json:"members"`
	LastMessage *Message `json:"lastMessage"`
	Avatar      string   `json:"avatar,omitempty"`
}
