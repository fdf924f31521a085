// Package hub keeps the live WebSocket connections of the gateway and routes
// chat and notification frames to them.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"furbook.app/petpals/models"
	"furbook.app/petpals/observability"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrOffline       = errors.New("user not connected")
)

// GroupLoader returns the ids of every group a user belongs to.
type GroupLoader interface {
	GroupIDsOfUser(ctx context.Context, username string) ([]int, error)
}

// Hub is safe for concurrent use. One connection per user; groups index
// the online members of every group.
type Hub struct {
	loader GroupLoader
	log    zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[int]map[string]struct{}
}

func New(loader GroupLoader, log zerolog.Logger) *Hub {
	return &Hub{
		loader:  loader,
		log:     log,
		clients: make(map[string]*Client),
		groups:  make(map[int]map[string]struct{}),
	}
}

func encodeFrame(t models.FrameType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Frame{Type: t, Payload: raw})
}

// register installs c, evicting a previous connection of the same user.
func (h *Hub) register(c *Client, groupIDs []int) {
	h.mu.Lock()
	old := h.clients[c.username]
	if old != nil {
		h.removeLocked(old)
	}
	h.clients[c.username] = c
	h.indexLocked(c, groupIDs)
	n := len(h.clients)
	h.mu.Unlock()

	if old != nil {
		old.close()
		h.log.Info().Str("user", c.username).Msg("ws connection replaced")
	}
	observability.SetWSConnections(n)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	removed := h.clients[c.username] == c
	if removed {
		h.removeLocked(c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	if removed {
		observability.SetWSConnections(n)
	}
}

func (h *Hub) indexLocked(c *Client, groupIDs []int) {
	c.groups = make(map[int]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		c.groups[id] = struct{}{}
		members := h.groups[id]
		if members == nil {
			members = make(map[string]struct{})
			h.groups[id] = members
		}
		members[c.username] = struct{}{}
	}
}

func (h *Hub) unindexLocked(c *Client) {
	for id := range c.groups {
		members := h.groups[id]
		delete(members, c.username)
		if len(members) == 0 {
			delete(h.groups, id)
		}
	}
	c.groups = nil
}

func (h *Hub) removeLocked(c *Client) {
	h.unindexLocked(c)
	delete(h.clients, c.username)
}

// SetGroups replaces the group membership of an online user. It is a no-op
// for offline users.
func (h *Hub) SetGroups(username string, groupIDs []int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.clients[username]
	if c == nil {
		return
	}
	h.unindexLocked(c)
	h.indexLocked(c, groupIDs)
}

// Online reports whether username has a live connection.
func (h *Hub) Online(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[username]
	return ok
}

func (h *Hub) isMember(username string, groupID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.groups[groupID][username]
	return ok
}

// broadcast queues frame to every online member of groupID except exclude.
// It reports whether the group is known to the index at all.
func (h *Hub) broadcast(groupID int, frame []byte, exclude string) bool {
	h.mu.RLock()
	members, ok := h.groups[groupID]
	targets := make([]*Client, 0, len(members))
	for username := range members {
		if username == exclude {
			continue
		}
		if c := h.clients[username]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, frame)
	}
	return ok
}

// enqueue never blocks. A client whose queue is full is dropped.
func (h *Hub) enqueue(c *Client, frame []byte) bool {
	if c.trySend(frame) {
		return true
	}
	h.log.Warn().Str("user", c.username).Msg("ws send queue full, dropping client")
	h.unregister(c)
	return false
}

// PushChat relays a stored message to the rest of its group. A group missing
// from the index triggers one refresh of the sender's groups.
func (h *Hub) PushChat(ctx context.Context, msg models.ChatPayload) error {
	frame, err := encodeFrame(models.FrameChat, msg)
	if err != nil {
		return err
	}
	if h.broadcast(msg.GroupID, frame, msg.Username) {
		observability.RecordWSFrame("out", string(models.FrameChat))
		return nil
	}

	ids, err := h.loader.GroupIDsOfUser(ctx, msg.Username)
	if err != nil {
		return err
	}
	h.SetGroups(msg.Username, ids)

	if !h.broadcast(msg.GroupID, frame, msg.Username) {
		return ErrGroupNotFound
	}
	observability.RecordWSFrame("out", string(models.FrameChat))
	return nil
}

// PushNotification delivers n to its owner's connection.
func (h *Hub) PushNotification(n models.Notification) error {
	h.mu.RLock()
	c := h.clients[n.Username]
	h.mu.RUnlock()
	if c == nil {
		return ErrOffline
	}

	frame, err := encodeFrame(models.FrameNotification, n)
	if err != nil {
		return err
	}
	if !h.enqueue(c, frame) {
		return ErrOffline
	}
	observability.RecordWSFrame("out", string(models.FrameNotification))
	return nil
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.groups = make(map[int]map[string]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	observability.SetWSConnections(0)
}
