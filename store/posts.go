package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"furbook.app/petpals/database"
	"furbook.app/petpals/models"
)

type PostStore struct {
	coll *mongo.Collection
}

func NewPostStore(db *mongo.Database) *PostStore {
	return &PostStore{coll: db.Collection(database.PostsCollection)}
}

// geoPoint is a GeoJSON point, coordinates in [lng, lat] order.
type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

type locationDoc struct {
	Location geoPoint `bson:"location"`
	Address  string   `bson:"address"`
}

type commentDoc struct {
	Username  string    `bson:"username"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"createdAt"`
}

type interactionDoc struct {
	Type     string `bson:"type"`
	Username string `bson:"username"`
}

type mediaDoc struct {
	ID   string `bson:"id"`
	Type string `bson:"type"`
	URL  string `bson:"url"`
}

type postDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Type         string             `bson:"type"`
	Username     string             `bson:"username"`
	Content      string             `bson:"content"`
	Medias       []mediaDoc         `bson:"medias"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
	Interactions []interactionDoc   `bson:"interactions"`
	Comments     []commentDoc       `bson:"comments,omitempty"`
	CommentNum   int                `bson:"commentNum"`

	LostAt       *time.Time   `bson:"lostAt,omitempty"`
	Area         *locationDoc `bson:"area,omitempty"`
	LastSeen     *locationDoc `bson:"lastSeen,omitempty"`
	ContactInfo  string       `bson:"contactInfo,omitempty"`
	IsResolved   bool         `bson:"isResolved"`
	Participants []string     `bson:"participants,omitempty"`
	RemindedAt   *time.Time   `bson:"remindedAt,omitempty"`
}

func toLocationDoc(l *models.Location) *locationDoc {
	if l == nil {
		return nil
	}
	return &locationDoc{
		Location: geoPoint{Type: "Point", Coordinates: []float64{l.Lng, l.Lat}},
		Address:  l.Address,
	}
}

func (d *locationDoc) model() *models.Location {
	if d == nil || len(d.Location.Coordinates) != 2 {
		return nil
	}
	return &models.Location{
		Lat:     d.Location.Coordinates[1],
		Lng:     d.Location.Coordinates[0],
		Address: d.Address,
	}
}

func toMediaDocs(ms []models.Media) []mediaDoc {
	docs := make([]mediaDoc, 0, len(ms))
	for _, m := range ms {
		docs = append(docs, mediaDoc{ID: m.ID, Type: string(m.Type), URL: m.URL})
	}
	return docs
}

func toPostDoc(p *models.Post) postDoc {
	doc := postDoc{
		Type:         string(p.Type),
		Username:     p.Username,
		Content:      p.Content,
		Medias:       toMediaDocs(p.Medias),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		Interactions: []interactionDoc{},
		LostAt:       p.LostAt,
		LastSeen:     toLocationDoc(p.LastSeen),
		ContactInfo:  p.ContactInfo,
		IsResolved:   p.IsResolved,
	}
	if p.Type.IsLostFound() {
		doc.Participants = []string{}
	}
	if p.Type == models.PostLost {
		doc.Area = toLocationDoc(p.Area)
	}
	return doc
}

func (d *postDoc) model() models.Post {
	p := models.Post{
		ID:           d.ID.Hex(),
		Type:         models.PostType(d.Type),
		Username:     d.Username,
		Content:      d.Content,
		Medias:       make([]models.Media, 0, len(d.Medias)),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Interactions: make([]models.Interaction, 0, len(d.Interactions)),
		CommentNum:   d.CommentNum,
		LostAt:       d.LostAt,
		Area:         d.Area.model(),
		LastSeen:     d.LastSeen.model(),
		ContactInfo:  d.ContactInfo,
		IsResolved:   d.IsResolved,
		Participants: d.Participants,
		RemindedAt:   d.RemindedAt,
	}
	for _, m := range d.Medias {
		p.Medias = append(p.Medias, models.Media{ID: m.ID, Type: models.MediaType(m.Type), URL: m.URL})
	}
	for _, i := range d.Interactions {
		p.Interactions = append(p.Interactions, models.Interaction{Type: models.InteractionType(i.Type), Username: i.Username})
	}
	if p.Type.IsLostFound() && p.Participants == nil {
		p.Participants = []string{}
	}
	return p
}

// objectID maps a malformed id to ErrNotFound, callers cannot tell the two
// apart.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

var withoutComments = bson.D{{Key: "comments", Value: 0}}

func pageOptions(page Page) *options.FindOptions {
	return options.Find().
		SetProjection(withoutComments).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func nearFilter(lat, lng float64) bson.D {
	return bson.D{
		{Key: "type", Value: bson.D{{Key: "$in", Value: bson.A{string(models.PostLost), string(models.PostFound)}}}},
		{Key: "lastSeen.location", Value: bson.D{{Key: "$near", Value: bson.D{
			{Key: "$geometry", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: bson.A{lng, lat}},
			}},
		}}}},
	}
}

// dueReminderFilter selects unresolved lost posts created before createdBefore
// that were never reminded or last reminded before remindedBefore.
func dueReminderFilter(createdBefore, remindedBefore time.Time) bson.D {
	return bson.D{
		{Key: "type", Value: string(models.PostLost)},
		{Key: "isResolved", Value: false},
		{Key: "createdAt", Value: bson.D{{Key: "$lte", Value: createdBefore}}},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "remindedAt", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "remindedAt", Value: bson.D{{Key: "$lte", Value: remindedBefore}}}},
		}},
	}
}

func (s *PostStore) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]models.Post, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []postDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	posts := make([]models.Post, 0, len(docs))
	for i := range docs {
		posts = append(posts, docs[i].model())
	}
	return posts, nil
}

func (s *PostStore) Get(ctx context.Context, id string) (*models.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc postDoc
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}},
		options.FindOne().SetProjection(withoutComments)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	p := doc.model()
	return &p, nil
}

func (s *PostStore) Create(ctx context.Context, p *models.Post) (*models.Post, error) {
	doc := toPostDoc(p)
	doc.ID = primitive.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	created := doc.model()
	return &created, nil
}

func (s *PostStore) Near(ctx context.Context, lat, lng float64, page Page) ([]models.Post, error) {
	return s.find(ctx, nearFilter(lat, lng), pageOptions(page))
}

func (s *PostStore) OfUser(ctx context.Context, username string, page Page) ([]models.Post, error) {
	return s.find(ctx, bson.D{{Key: "username", Value: username}}, pageOptions(page).SetSort(newestFirst))
}

func (s *PostStore) OfUsers(ctx context.Context, usernames []string, page Page) ([]models.Post, error) {
	if len(usernames) == 0 {
		return []models.Post{}, nil
	}
	filter := bson.D{{Key: "username", Value: bson.D{{Key: "$in", Value: usernames}}}}
	return s.find(ctx, filter, pageOptions(page).SetSort(newestFirst))
}

func (s *PostStore) Participated(ctx context.Context, username string, page Page) ([]models.Post, error) {
	return s.find(ctx, bson.D{{Key: "participants", Value: username}}, pageOptions(page).SetSort(newestFirst))
}

func (s *PostStore) update(ctx context.Context, id string, update any) (*models.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutComments)
	var doc postDoc
	err = s.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	p := doc.model()
	return &p, nil
}

func (s *PostStore) UpdateContent(ctx context.Context, id, content string, medias []models.Media) (*models.Post, error) {
	return s.update(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "content", Value: content},
		{Key: "medias", Value: toMediaDocs(medias)},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}})
}

func (s *PostStore) SetResolved(ctx context.Context, id string, resolved bool) (*models.Post, error) {
	return s.update(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "isResolved", Value: resolved},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}})
}

func (s *PostStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostStore) Comments(ctx context.Context, id string) ([]models.Comment, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Comments []commentDoc `bson:"comments"`
	}
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}},
		options.FindOne().SetProjection(bson.D{{Key: "comments", Value: 1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}
	comments := make([]models.Comment, 0, len(doc.Comments))
	for _, c := range doc.Comments {
		comments = append(comments, models.Comment{Username: c.Username, Content: c.Content, CreatedAt: c.CreatedAt})
	}
	return comments, nil
}

func (s *PostStore) AddComment(ctx context.Context, id string, c models.Comment) (*models.Post, error) {
	return s.update(ctx, id, bson.D{
		{Key: "$push", Value: bson.D{{Key: "comments", Value: commentDoc{
			Username:  c.Username,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		}}}},
		{Key: "$inc", Value: bson.D{{Key: "commentNum", Value: 1}}},
	})
}

// RemoveComments drops every comment by username and recounts in the same
// pipeline update.
func (s *PostStore) RemoveComments(ctx context.Context, id, username string) (*models.Post, error) {
	kept := bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$comments", bson.A{}}}}},
		{Key: "as", Value: "c"},
		{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$c.username", username}}}},
	}}}
	return s.update(ctx, id, mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "comments", Value: kept}}}},
		{{Key: "$set", Value: bson.D{{Key: "commentNum", Value: bson.D{{Key: "$size", Value: "$comments"}}}}}},
	})
}

// SetInteraction keeps at most one interaction per user; the latest type
// replaces the previous one.
func (s *PostStore) SetInteraction(ctx context.Context, id, username string, t models.InteractionType) (*models.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "interactions.username", Value: username}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "interactions.$.type", Value: string(t)}}}})
	if err != nil {
		return nil, fmt.Errorf("update interaction: %w", err)
	}
	if res.MatchedCount > 0 {
		return s.Get(ctx, id)
	}

	var doc postDoc
	err = s.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "interactions.username", Value: bson.D{{Key: "$ne", Value: username}}}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "interactions", Value: interactionDoc{Type: string(t), Username: username}}}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(withoutComments)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// either the post is gone or a concurrent push won, Get tells which
		return s.Get(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("push interaction: %w", err)
	}
	p := doc.model()
	return &p, nil
}

func (s *PostStore) RemoveInteraction(ctx context.Context, id, username string) (*models.Post, error) {
	return s.update(ctx, id, bson.D{{Key: "$pull", Value: bson.D{
		{Key: "interactions", Value: bson.D{{Key: "username", Value: username}}},
	}}})
}

func (s *PostStore) AddParticipant(ctx context.Context, id, username string) (*models.Post, error) {
	return s.update(ctx, id, bson.D{{Key: "$addToSet", Value: bson.D{{Key: "participants", Value: username}}}})
}

func (s *PostStore) RemoveParticipant(ctx context.Context, id, username string) (*models.Post, error) {
	return s.update(ctx, id, bson.D{{Key: "$pull", Value: bson.D{{Key: "participants", Value: username}}}})
}

// DueReminders lists lost posts older than after that have not been
// reminded within every.
func (s *PostStore) DueReminders(ctx context.Context, now time.Time, after, every time.Duration) ([]models.Post, error) {
	filter := dueReminderFilter(now.Add(-after), now.Add(-every))
	return s.find(ctx, filter, options.Find().
		SetProjection(withoutComments).
		SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (s *PostStore) MarkReminded(ctx context.Context, id string, at time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "remindedAt", Value: at}}}})
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
