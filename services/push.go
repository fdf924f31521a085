package services

import (
	"context"
	"net/http"
	"time"

	"furbook.app/petpals/models"
)

// PushClient talks to the gateway's internal listener, which relays frames
// to live WebSocket connections.
type PushClient struct {
	baseClient
}

func NewPushClient(gatewayInternalURL string, timeout time.Duration) *PushClient {
	return &PushClient{baseClient: newBaseClient(gatewayInternalURL, timeout)}
}

// SendChat asks the hub to fan a message out to the group, sender excluded.
func (c *PushClient) SendChat(ctx context.Context, msg models.ChatPayload) error {
	return c.do(ctx, http.MethodPost, "/ws/message", msg.Username, msg, nil)
}

// SendNoti delivers a notification to its owner. An offline owner yields an
// HTTPError with status 404.
func (c *PushClient) SendNoti(ctx context.Context, n models.Notification) error {
	return c.do(ctx, http.MethodPost, "/ws/noti", SystemUser, n, nil)
}
