package models

import "time"

type User struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Avatar      string    `json:"avatar"`
	Bio         string    `json:"bio"`
	FriendNum   int       `json:"friendNum"`
	GroupID     *int      `json:"groupid,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserUpdate carries the optional fields of a profile patch. A nil field is
// left untouched.
type UserUpdate struct {
	DisplayName *string `json:"displayName"`
	Avatar      *string `json:"avatar"`
	Bio         *string `json:"bio"`
}

func (u UserUpdate) Empty() bool {
	return u.DisplayName == nil && u.Avatar == nil && u.Bio == nil
}

type Credential struct {
	Username       string
	PasswordHashed string
	Salt           string
	CreatedAt      time.Time
}

type Friendship string

const (
	FriendshipNone     Friendship = "none"
	FriendshipSent     Friendship = "sent"
	FriendshipReceived Friendship = "received"
	FriendshipFriend   Friendship = "friend"
)

type FriendRequestResult string

const (
	FriendRequestNone     FriendRequestResult = "none"
	FriendRequestSent     FriendRequestResult = "sent"
	FriendRequestAccepted FriendRequestResult = "accepted"
)
