package services

import (
	"context"
	"net/http"
	"time"

	"furbook.app/petpals/models"
)

// NotiRequest is the body of a service-only notification create.
type NotiRequest struct {
	Username string `json:"username"`
	Icon     string `json:"icon"`
	Desc     string `json:"desc"`
	Link     string `json:"link"`
}

type NotiToUsersRequest struct {
	Usernames []string `json:"usernames"`
	Icon      string   `json:"icon"`
	Desc      string   `json:"desc"`
	Link      string   `json:"link"`
}

type NotiClient struct {
	baseClient
}

func NewNotiClient(baseURL string, timeout time.Duration) *NotiClient {
	return &NotiClient{baseClient: newBaseClient(baseURL, timeout)}
}

func (c *NotiClient) CreateNoti(ctx context.Context, req NotiRequest) (*models.Notification, error) {
	var n models.Notification
	if err := c.do(ctx, http.MethodPost, "/api/noti", SystemUser, req, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *NotiClient) CreateNotiToUsers(ctx context.Context, req NotiToUsersRequest) error {
	if len(req.Usernames) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/api/noti/createMultiple", SystemUser, req, nil)
}
