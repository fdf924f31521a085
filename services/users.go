package services

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"furbook.app/petpals/models"
)

type UserClient struct {
	baseClient
}

func NewUserClient(baseURL string, timeout time.Duration) *UserClient {
	return &UserClient{baseClient: newBaseClient(baseURL, timeout)}
}

func (c *UserClient) GetUser(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/api/user/"+url.PathEscape(username), username, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUsers resolves many usernames in one call. Unknown names are skipped.
func (c *UserClient) FindUsers(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	body := struct {
		Usernames []string `json:"usernames"`
	}{usernames}
	if err := c.do(ctx, http.MethodPost, "/api/user/list", SystemUser, body, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *UserClient) CreateUser(ctx context.Context, username, displayName string) (*models.User, error) {
	var u models.User
	body := struct {
		Username    string `json:"username"`
		DisplayName string `json:"displayName"`
	}{username, displayName}
	if err := c.do(ctx, http.MethodPost, "/api/user", SystemUser, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes the profile of username, acting as that user.
func (c *UserClient) DeleteUser(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodDelete, "/api/user", username, nil, nil)
}
