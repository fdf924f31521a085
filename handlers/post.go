package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"furbook.app/petpals/models"
	"furbook.app/petpals/services"
	"furbook.app/petpals/store"
)

type PostRepo interface {
	Get(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, p *models.Post) (*models.Post, error)
	Near(ctx context.Context, lat, lng float64, page store.Page) ([]models.Post, error)
	OfUser(ctx context.Context, username string, page store.Page) ([]models.Post, error)
	OfUsers(ctx context.Context, usernames []string, page store.Page) ([]models.Post, error)
	Participated(ctx context.Context, username string, page store.Page) ([]models.Post, error)
	UpdateContent(ctx context.Context, id, content string, medias []models.Media) (*models.Post, error)
	SetResolved(ctx context.Context, id string, resolved bool) (*models.Post, error)
	Delete(ctx context.Context, id string) error
	Comments(ctx context.Context, id string) ([]models.Comment, error)
	AddComment(ctx context.Context, id string, c models.Comment) (*models.Post, error)
	RemoveComments(ctx context.Context, id, username string) (*models.Post, error)
	SetInteraction(ctx context.Context, id, username string, t models.InteractionType) (*models.Post, error)
	RemoveInteraction(ctx context.Context, id, username string) (*models.Post, error)
	AddParticipant(ctx context.Context, id, username string) (*models.Post, error)
	RemoveParticipant(ctx context.Context, id, username string) (*models.Post, error)
}

type UserLookup interface {
	FindUsers(ctx context.Context, usernames []string) ([]models.User, error)
}

type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// PostDeps bundles what the post handlers talk to.
type PostDeps struct {
	Posts    PostRepo
	Users    UserLookup
	Noti     Notifier
	Geocoder Geocoder
}

func (d PostDeps) profiles(ctx context.Context, usernames []string) map[string]models.User {
	byName := make(map[string]models.User, len(usernames))
	if len(usernames) == 0 {
		return byName
	}
	users, err := d.Users.FindUsers(ctx, uniqueStrings(usernames))
	if err != nil {
		log.Warn().Err(err).Msg("author lookup failed")
		return byName
	}
	for _, u := range users {
		byName[u.Username] = u
	}
	return byName
}

func (d PostDeps) decorate(ctx context.Context, posts []models.Post) []models.PostWithUser {
	names := make([]string, 0, len(posts))
	for _, p := range posts {
		names = append(names, p.Username)
	}
	byName := d.profiles(ctx, names)

	out := make([]models.PostWithUser, 0, len(posts))
	for _, p := range posts {
		u := byName[p.Username]
		out = append(out, models.PostWithUser{Post: p, DisplayName: u.DisplayName, UserAvatar: u.Avatar})
	}
	return out
}

func (d PostDeps) decorateOne(ctx context.Context, p *models.Post) models.PostWithUser {
	return d.decorate(ctx, []models.Post{*p})[0]
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func normalizeMedias(medias []models.Media) ([]models.Media, bool) {
	out := make([]models.Media, 0, len(medias))
	for _, m := range medias {
		if m.Type != models.MediaImage && m.Type != models.MediaVideo {
			return nil, false
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		out = append(out, m)
	}
	return out, true
}

func GetPost(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := d.Posts.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			storeError(w, r, err, "Post not found")
			return
		}
		writeJSON(w, http.StatusOK, d.decorateOne(r.Context(), p))
	}
}

// validLocation reports whether lat/lng is a finite point the 2dsphere
// index accepts.
func validLocation(lat, lng float64) bool {
	for _, v := range []float64{lat, lng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func GetLostPosts(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
		if errLat != nil || errLng != nil || !validLocation(lat, lng) {
			writeError(w, http.StatusBadRequest, "Valid lat and lng are required")
			return
		}
		posts, err := d.Posts.Near(r.Context(), lat, lng, parsePage(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, d.decorate(r.Context(), posts))
	}
}

func GetPostsOfUser(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := d.Posts.OfUser(r.Context(), mux.Vars(r)["username"], parsePage(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, d.decorate(r.Context(), posts))
	}
}

func GetParticipatedPosts(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := d.Posts.Participated(r.Context(), mux.Vars(r)["username"], parsePage(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, d.decorate(r.Context(), posts))
	}
}

// GetFeed returns posts by any of the given users, newest first.
func GetFeed(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Usernames []string `json:"usernames"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		posts, err := d.Posts.OfUsers(r.Context(), req.Usernames, parsePage(r))
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, d.decorate(r.Context(), posts))
	}
}

func CreateBlogPost(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string         `json:"content"`
			Medias  []models.Media `json:"medias"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		medias, ok := normalizeMedias(req.Medias)
		if !ok {
			writeError(w, http.StatusBadRequest, "Media type must be image or video")
			return
		}
		if strings.TrimSpace(req.Content) == "" && len(medias) == 0 {
			writeError(w, http.StatusBadRequest, "Post cannot be empty")
			return
		}

		now := time.Now().UTC()
		p, err := d.Posts.Create(r.Context(), &models.Post{
			Type:      models.PostBlog,
			Username:  currentUser(r),
			Content:   req.Content,
			Medias:    medias,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, d.decorateOne(r.Context(), p))
	}
}

type lostPostRequest struct {
	Type        models.PostType  `json:"type"`
	Content     string           `json:"content"`
	Medias      []models.Media   `json:"medias"`
	ContactInfo string           `json:"contactInfo"`
	LostAt      *time.Time       `json:"lostAt"`
	Area        *models.Location `json:"area"`
	LastSeen    *models.Location `json:"lastSeen"`
}

// fillAddress reverse-geocodes loc when it has no address. Failures leave
// the address empty.
func (d PostDeps) fillAddress(ctx context.Context, loc *models.Location) {
	if loc == nil || loc.Address != "" || d.Geocoder == nil {
		return
	}
	addr, err := d.Geocoder.Reverse(ctx, loc.Lat, loc.Lng)
	if err != nil {
		log.Warn().Err(err).Float64("lat", loc.Lat).Float64("lng", loc.Lng).Msg("reverse geocode failed")
		return
	}
	loc.Address = addr
}

func CreateLostPost(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lostPostRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if !req.Type.IsLostFound() {
			writeError(w, http.StatusBadRequest, "Type must be lost or found")
			return
		}
		if req.LastSeen == nil {
			writeError(w, http.StatusBadRequest, "Last seen location is required")
			return
		}
		medias, ok := normalizeMedias(req.Medias)
		if !ok {
			writeError(w, http.StatusBadRequest, "Media type must be image or video")
			return
		}
		if req.Type == models.PostFound {
			req.Area = nil
		}
		if !validLocation(req.LastSeen.Lat, req.LastSeen.Lng) ||
			(req.Area != nil && !validLocation(req.Area.Lat, req.Area.Lng)) {
			writeError(w, http.StatusBadRequest, "Coordinates are out of range")
			return
		}

		d.fillAddress(r.Context(), req.LastSeen)
		d.fillAddress(r.Context(), req.Area)

		now := time.Now().UTC()
		p, err := d.Posts.Create(r.Context(), &models.Post{
			Type:         req.Type,
			Username:     currentUser(r),
			Content:      req.Content,
			Medias:       medias,
			CreatedAt:    now,
			UpdatedAt:    now,
			LostAt:       req.LostAt,
			Area:         req.Area,
			LastSeen:     req.LastSeen,
			ContactInfo:  req.ContactInfo,
			Participants: []string{},
		})
		if err != nil {
			storeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusCreated, d.decorateOne(r.Context(), p))
	}
}

// ownedPost loads the post and answers 404 or 403 itself when the caller
// may not change it.
func (d PostDeps) ownedPost(w http.ResponseWriter, r *http.Request, id string) (*models.Post, bool) {
	p, err := d.Posts.Get(r.Context(), id)
	if err != nil {
		storeError(w, r, err, "Post not found")
		return nil, false
	}
	if p.Username != currentUser(r) {
		writeError(w, http.StatusForbidden, "Only the author can change this post")
		return nil, false
	}
	return p, true
}

func UpdatePostContent(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string         `json:"content"`
			Medias  []models.Media `json:"medias"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		medias, ok := normalizeMedias(req.Medias)
		if !ok {
			writeError(w, http.StatusBadRequest, "Media type must be image or video")
			return
		}
		id := mux.Vars(r)["id"]
		if _, ok := d.ownedPost(w, r, id); !ok {
			return
		}
		p, err := d.Posts.UpdateContent(r.Context(), id, req.Content, medias)
		if err != nil {
			storeError(w, r, err, "Post not found")
			return
		}
		writeJSON(w, http.StatusOK, d.decorateOne(r.Context(), p))
	}
}

func UpdateLostFoundStatus(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IsResolved bool `json:"isResolved"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		id := mux.Vars(r)["id"]
		owned, ok := d.ownedPost(w, r, id)
		if !ok {
			return
		}
		if !owned.Type.IsLostFound() {
			writeError(w, http.StatusBadRequest, "Only lost and found posts can be resolved")
			return
		}

		p, err := d.Posts.SetResolved(r.Context(), id, req.IsResolved)
		if err != nil {
			storeError(w, r, err, "Post not found")
			return
		}
		if req.IsResolved && len(p.Participants) > 0 {
			err := d.Noti.CreateNotiToUsers(r.Context(), services.NotiToUsersRequest{
				Usernames: p.Participants,
				Icon:      "post",
				Desc:      "post:resolved:" + p.Username,
				Link:      p.ID,
			})
			if err != nil {
				log.Warn().Err(err).Str("post", p.ID).Msg("resolved notification failed")
			}
		}
		writeJSON(w, http.StatusOK, d.decorateOne(r.Context(), p))
	}
}

func DeletePost(d PostDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PostID string `json:"postId"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if _, ok := d.ownedPost(w, r, req.PostID); !ok {
			return
		}
		if err := d.Posts.Delete(r.Context(), req.PostID); err != nil {
			storeError(w, r, err, "Post not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// notifyOwner tells the author about activity by someone else.
func (d PostDeps) notifyOwner(ctx context.Context, p *models.Post, actor, event string) {
	if p.Username == actor {
		return
	}
	notify(ctx, d.Noti, services.NotiRequest{
		Username: p.Username,
		Icon:     "post",
		Desc:     "post:" + event + ":" + actor,
		Link:     p.ID,
	})
}
