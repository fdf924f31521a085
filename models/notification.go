package models

import "time"

type Notification struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Icon      string    `json:"icon"`
	Desc      string    `json:"desc"`
	Link      string    `json:"link"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type Device struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
