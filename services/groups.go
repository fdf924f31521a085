package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"furbook.app/petpals/models"
)

const groupPageSize = 50

type GroupClient struct {
	baseClient
}

func NewGroupClient(baseURL string, timeout time.Duration) *GroupClient {
	return &GroupClient{baseClient: newBaseClient(baseURL, timeout)}
}

// FindDirectGroup returns the id of the direct chat between username and
// other. The message service creates it when missing.
func (c *GroupClient) FindDirectGroup(ctx context.Context, username, other string) (int, error) {
	var g models.GroupChat
	if err := c.do(ctx, http.MethodGet, "/api/group/direct/"+url.PathEscape(other), username, nil, &g); err != nil {
		return 0, err
	}
	return g.ID, nil
}

// GroupIDsOfUser walks every page of the user's groups.
func (c *GroupClient) GroupIDsOfUser(ctx context.Context, username string) ([]int, error) {
	var ids []int
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("username", username)
		q.Set("page", fmt.Sprint(page))
		q.Set("size", fmt.Sprint(groupPageSize))

		var groups []models.GroupChat
		if err := c.do(ctx, http.MethodGet, "/api/group?"+q.Encode(), username, nil, &groups); err != nil {
			return nil, err
		}
		for _, g := range groups {
			ids = append(ids, g.ID)
		}
		if len(groups) < groupPageSize {
			return ids, nil
		}
	}
}
