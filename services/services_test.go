package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furbook.app/petpals/models"
)

func TestClientDecodesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user/ghost", r.URL.Path)
		assert.Equal(t, "ghost", r.Header.Get("X-Username"))
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"user not found"}`))
	}))
	defer srv.Close()

	_, err := NewUserClient(srv.URL, time.Second).GetUser(context.Background(), "ghost")
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, "user not found", httpErr.Message)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestClientFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewNotiClient(srv.URL, time.Second).CreateNotiToUsers(context.Background(), NotiToUsersRequest{Usernames: []string{"a"}})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "Bad Gateway", httpErr.Message)
}

func TestFindUsersPostsUsernamesAsSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, SystemUser, r.Header.Get("X-Username"))
		var body struct {
			Usernames []string `json:"usernames"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"alice", "bob"}, body.Usernames)
		json.NewEncoder(w).Encode([]models.User{{Username: "alice"}, {Username: "bob"}})
	}))
	defer srv.Close()

	users, err := NewUserClient(srv.URL, time.Second).FindUsers(context.Background(), []string{"alice", "bob"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestDeleteUserActsAsThatUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/user", r.URL.Path)
		assert.Equal(t, "mochi", r.Header.Get("X-Username"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewUserClient(srv.URL, time.Second).DeleteUser(context.Background(), "mochi"))
}

func TestGroupIDsOfUserWalksPages(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "alice", r.URL.Query().Get("username"))
		var groups []models.GroupChat
		if r.URL.Query().Get("page") == "1" {
			for i := 0; i < groupPageSize; i++ {
				groups = append(groups, models.GroupChat{ID: i + 1})
			}
		} else {
			groups = []models.GroupChat{{ID: 999}}
		}
		json.NewEncoder(w).Encode(groups)
	}))
	defer srv.Close()

	ids, err := NewGroupClient(srv.URL, time.Second).GroupIDsOfUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, ids, groupPageSize+1)
	assert.Equal(t, 999, ids[len(ids)-1])
}

func TestPushClientSendChatUsesSenderIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/message", r.URL.Path)
		assert.Equal(t, "alice", r.Header.Get("X-Username"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewPushClient(srv.URL, time.Second).SendChat(context.Background(), models.ChatPayload{Username: "alice", GroupID: 3, Content: "hi"})
	assert.NoError(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)
	tok, err := issuer.Issue("alice")
	require.NoError(t, err)

	username, err := issuer.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestTokenRejectsExpiredAndForeign(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := issuer.Issue("alice")
	require.NoError(t, err)

	_, err = NewTokenIssuer([]byte("secret"), time.Hour).Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewTokenIssuer([]byte("other"), time.Hour).Issue("alice")
	require.NoError(t, err)
	_, err = NewTokenIssuer([]byte("secret"), time.Hour).Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	assert.Len(t, salt, 24)

	hashed, err := HashPassword("hunter22", salt)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hashed, "hunter22", salt))
	assert.False(t, CheckPassword(hashed, "hunter23", salt))

	other, err := NewSalt()
	require.NoError(t, err)
	assert.False(t, CheckPassword(hashed, "hunter22", other))

	_, err = HashPassword(string(make([]byte, MaxPasswordBytes+1)), salt)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestNominatimReverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "10.5", r.URL.Query().Get("lat"))
		assert.Equal(t, "106.25", r.URL.Query().Get("lon"))
		assert.Equal(t, "petpals-test", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"display_name":"District 1, Ho Chi Minh City"}`))
	}))
	defer srv.Close()

	addr, err := NewNominatim(srv.URL, "petpals-test", time.Second).Reverse(context.Background(), 10.5, 106.25)
	require.NoError(t, err)
	assert.Equal(t, "District 1, Ho Chi Minh City", addr)
}

func TestNominatimReportsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	_, err := NewNominatim(srv.URL, "ua", time.Second).Reverse(context.Background(), 0, 0)
	assert.Error(t, err)
}

type fakeMulticaster struct {
	resp *messaging.BatchResponse
	err  error
	got  *messaging.MulticastMessage
}

func (f *fakeMulticaster) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.got = m
	return f.resp, f.err
}

func TestFCMPusherDisabledWithoutCredentials(t *testing.T) {
	p, err := NewFCMPusher(context.Background(), "", zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, err = p.Multicast(context.Background(), []string{"t"}, "title", "body", nil)
	assert.ErrorIs(t, err, ErrPushDisabled)
}

func TestFCMPusherCountsResults(t *testing.T) {
	fake := &fakeMulticaster{resp: &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 1,
		Responses: []*messaging.SendResponse{
			{Success: true, MessageID: "m1"},
			{Success: false, Error: errors.New("quota exceeded")},
		},
	}}
	p := &FCMPusher{client: fake, log: zerolog.Nop()}

	res, err := p.Multicast(context.Background(), []string{"tok-a", "tok-b"}, "PetPals", "new comment", map[string]string{"link": "/post/1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Failure)
	assert.Empty(t, res.Unregistered)
	assert.Equal(t, []string{"tok-a", "tok-b"}, fake.got.Tokens)
	assert.Equal(t, "/post/1", fake.got.Data["link"])
}
