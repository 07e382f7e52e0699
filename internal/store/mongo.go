package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/connecthub/internal/apperrors"
	"github.com/yourorg/connecthub/internal/models"
)

// Mongo implements RequestStore, ConversationStore and MessageStore on top of
// three collections. Invariants live in the indexes and in conditional
// updates: the pending pair key carries a partial unique index, settling a
// request filters on status=pending, and adding a participant filters on
// is_group and non-membership.
type Mongo struct {
	requests      *mongo.Collection
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return cli, nil
}

func NewMongo(ctx context.Context, db *mongo.Database) (*Mongo, error) {
	m := &Mongo{
		requests:      db.Collection("connection_requests"),
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.requests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// one live request per unordered pair
			Keys: bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().
				SetName("pending_pair_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "status", Value: models.RequestStatusPending}}),
		},
		{
			Keys:    bson.D{{Key: "to", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("inbox_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("request indexes: %w", err)
	}

	_, err = m.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// one 1:1 conversation per pair
			Keys: bson.D{{Key: "direct_key", Value: 1}},
			Options: options.Index().
				SetName("direct_pair_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "is_group", Value: false}}),
		},
		{
			Keys:    bson.D{{Key: "participants", Value: 1}},
			Options: options.Index().SetName("participants_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("conversation indexes: %w", err)
	}

	_, err = m.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("conversation_time_idx"),
	})
	if err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}
	return nil
}

// storeErr wraps driver failures so callers can treat them as retryable.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperrors.ErrStoreUnavailable, op, err)
}

func (m *Mongo) InsertPending(ctx context.Context, req *models.ConnectionRequest) error {
	now := time.Now().UTC()
	req.ID = uuid.NewString()
	req.Status = models.RequestStatusPending
	req.PairKey = models.PairKey(req.From, req.To)
	req.CreatedAt = now
	req.UpdatedAt = now

	if _, err := m.requests.InsertOne(ctx, req); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrDuplicatePending
		}
		return storeErr("insert request", err)
	}
	return nil
}

func (m *Mongo) GetRequest(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	var req models.ConnectionRequest
	err := m.requests.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get request", err)
	}
	return &req, nil
}

func (m *Mongo) SettleRequest(ctx context.Context, id string, status models.RequestStatus) (*models.ConnectionRequest, error) {
	filter := bson.M{"_id": id, "status": models.RequestStatusPending}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var req models.ConnectionRequest
	err := m.requests.FindOneAndUpdate(ctx, filter, update, opts).Decode(&req)
	if err == mongo.ErrNoDocuments {
		// distinguish a missing request from one already settled
		if _, gerr := m.GetRequest(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, apperrors.ErrInvalidTransition
	}
	if err != nil {
		return nil, storeErr("settle request", err)
	}
	return &req, nil
}

func (m *Mongo) SetRequestMeta(ctx context.Context, id string, meta map[string]string) (*models.ConnectionRequest, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range meta {
		set["meta."+k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var req models.ConnectionRequest
	err := m.requests.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&req)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("set request meta", err)
	}
	return &req, nil
}

func (m *Mongo) ListPendingFor(ctx context.Context, userID string) ([]*models.ConnectionRequest, error) {
	filter := bson.M{"to": userID, "status": models.RequestStatusPending}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := m.requests.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("list pending", err)
	}
	defer cur.Close(ctx)

	var out []*models.ConnectionRequest
	for cur.Next(ctx) {
		var req models.ConnectionRequest
		if err := cur.Decode(&req); err != nil {
			return nil, storeErr("decode request", err)
		}
		out = append(out, &req)
	}
	if err := cur.Err(); err != nil {
		return nil, storeErr("list pending", err)
	}
	return out, nil
}

func (m *Mongo) CountPendingFor(ctx context.Context, userID string) (int64, error) {
	n, err := m.requests.CountDocuments(ctx, bson.M{"to": userID, "status": models.RequestStatusPending})
	if err != nil {
		return 0, storeErr("count pending", err)
	}
	return n, nil
}

func (m *Mongo) HasAccepted(ctx context.Context, a, b string) (bool, error) {
	filter := bson.M{"pair_key": models.PairKey(a, b), "status": models.RequestStatusAccepted}
	n, err := m.requests.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, storeErr("find accepted", err)
	}
	return n > 0, nil
}

func (m *Mongo) InsertConversation(ctx context.Context, conv *models.Conversation) error {
	now := time.Now().UTC()
	conv.ID = uuid.NewString()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	if _, err := m.conversations.InsertOne(ctx, conv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return storeErr("insert conversation", err)
	}
	return nil
}

func (m *Mongo) FindDirect(ctx context.Context, a, b string) (*models.Conversation, error) {
	var conv models.Conversation
	filter := bson.M{"direct_key": models.PairKey(a, b), "is_group": false}
	err := m.conversations.FindOne(ctx, filter).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("find direct", err)
	}
	return &conv, nil
}

func (m *Mongo) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := m.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get conversation", err)
	}
	return &conv, nil
}

func (m *Mongo) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	filter := bson.M{"participants": userID}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := m.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("list conversations", err)
	}
	defer cur.Close(ctx)

	var out []*models.Conversation
	for cur.Next(ctx) {
		var conv models.Conversation
		if err := cur.Decode(&conv); err != nil {
			return nil, storeErr("decode conversation", err)
		}
		out = append(out, &conv)
	}
	if err := cur.Err(); err != nil {
		return nil, storeErr("list conversations", err)
	}
	return out, nil
}

func (m *Mongo) AddParticipant(ctx context.Context, id, userID string) (*models.Conversation, error) {
	filter := bson.M{"_id": id, "is_group": true, "participants": bson.M{"$ne": userID}}
	update := bson.M{
		"$push": bson.M{"participants": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv models.Conversation
	err := m.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		// classify: missing, not a group, or already a member
		cur, gerr := m.GetConversation(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if !cur.IsGroup {
			return nil, apperrors.ErrInvalidTransition
		}
		return nil, apperrors.ErrAlreadyMember
	}
	if err != nil {
		return nil, storeErr("add participant", err)
	}
	return &conv, nil
}

func (m *Mongo) Touch(ctx context.Context, id string) error {
	res, err := m.conversations.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return storeErr("touch conversation", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (m *Mongo) InsertMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	if msg.Type == "" {
		msg.Type = "text"
	}
	if _, err := m.messages.InsertOne(ctx, msg); err != nil {
		return storeErr("insert message", err)
	}
	return nil
}

func (m *Mongo) ListMessages(ctx context.Context, conversationID string, limit int64, before time.Time) ([]*models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	cur, err := m.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var msg models.Message
		if err := cur.Decode(&msg); err != nil {
			return nil, storeErr("decode message", err)
		}
		out = append(out, &msg)
	}
	if err := cur.Err(); err != nil {
		return nil, storeErr("list messages", err)
	}
	// newest-first query for the index, chronological for callers
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
