package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBStore implements RecordStore, TransactionLog and PlayerRepository
// using three collections: records, transactions and players.
type MongoDBStore struct {
	client       *mongo.Client
	db           *mongo.Database
	records      *mongo.Collection
	transactions *mongo.Collection
	players      *mongo.Collection
	log          *slog.Logger
}

type recordDocument struct {
	Concern string    `bson:"_id"`
	Data    string    `bson:"data"`
	SavedAt time.Time `bson:"saved_at"`
}

type transactionDocument struct {
	ID           string    `bson:"_id"`
	Kind         string    `bson:"kind"`
	Player       string    `bson:"player"`
	Counterparty string    `bson:"counterparty"`
	Amount       int64     `bson:"amount"`
	Tax          int64     `bson:"tax"`
	Reference    string    `bson:"reference,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

type playerDocument struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	NameLower string    `bson:"name_lower"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoDBStore connects to MongoDB and prepares the collections.
func NewMongoDBStore(uri, database string, logger *slog.Logger) (*MongoDBStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoDBStore{
		client:       client,
		db:           db,
		records:      db.Collection("economy_records"),
		transactions: db.Collection("economy_transactions"),
		players:      db.Collection("economy_players"),
		log:          logger,
	}

	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.transactions, mongo.IndexModel{Keys: bson.D{{Key: "player", Value: 1}, {Key: "created_at", Value: -1}}}},
		{s.transactions, mongo.IndexModel{Keys: bson.D{{Key: "counterparty", Value: 1}, {Key: "created_at", Value: -1}}}},
		{s.players, mongo.IndexModel{Keys: bson.D{{Key: "name_lower", Value: 1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			logger.Warn("failed to create index", "collection", idx.coll.Name(), "error", err)
		}
	}

	logger.Info("mongodb store connected", "database", database)
	return s, nil
}

// LoadRecord returns the stored document for concern.
func (s *MongoDBStore) LoadRecord(ctx context.Context, concern string) ([]byte, error) {
	var doc recordDocument
	err := s.records.FindOne(ctx, bson.M{"_id": concern}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", concern, err)
	}
	return []byte(doc.Data), nil
}

// SaveRecord upserts the document for concern.
func (s *MongoDBStore) SaveRecord(ctx context.Context, concern string, data []byte) error {
	update := bson.M{"$set": bson.M{"data": string(data), "saved_at": time.Now()}}
	_, err := s.records.UpdateOne(ctx, bson.M{"_id": concern}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", concern, err)
	}
	return nil
}

// BatchSaveRecords upserts several documents with one bulk write.
func (s *MongoDBStore) BatchSaveRecords(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		savedAt := rec.SavedAt
		if savedAt.IsZero() {
			savedAt = time.Now()
		}
		update := bson.M{"$set": bson.M{"data": string(rec.Data), "saved_at": savedAt}}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": rec.Concern}).
			SetUpdate(update).
			SetUpsert(true))
	}

	if _, err := s.records.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to batch save: %w", err)
	}
	return nil
}

// AppendTransaction inserts an audit document.
func (s *MongoDBStore) AppendTransaction(ctx context.Context, t model.Transaction) error {
	doc := transactionDocument{
		ID:           t.ID,
		Kind:         string(t.Kind),
		Player:       t.Player.String(),
		Counterparty: t.Counterparty.String(),
		Amount:       t.Amount,
		Tax:          t.Tax,
		Reference:    t.Reference,
		CreatedAt:    t.CreatedAt,
	}
	if _, err := s.transactions.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the newest documents involving player.
func (s *MongoDBStore) ListTransactions(ctx context.Context, player uuid.UUID, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	id := player.String()
	filter := bson.M{"$or": bson.A{bson.M{"player": id}, bson.M{"counterparty": id}}}

	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}})
	findOptions.SetLimit(int64(limit))

	cursor, err := s.transactions.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []transactionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	result := make([]model.Transaction, 0, len(docs))
	for _, d := range docs {
		t := model.Transaction{
			ID:        d.ID,
			Kind:      model.TransactionKind(d.Kind),
			Amount:    d.Amount,
			Tax:       d.Tax,
			Reference: d.Reference,
			CreatedAt: d.CreatedAt,
		}
		t.Player, _ = uuid.Parse(d.Player)
		t.Counterparty, _ = uuid.Parse(d.Counterparty)
		result = append(result, t)
	}
	return result, nil
}

// UpsertPlayer records the latest known name for id.
func (s *MongoDBStore) UpsertPlayer(ctx context.Context, id uuid.UUID, name string) error {
	update := bson.M{"$set": bson.M{"name": name, "name_lower": strings.ToLower(name), "updated_at": time.Now()}}
	_, err := s.players.UpdateOne(ctx, bson.M{"_id": id.String()}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}
	return nil
}

// GetPlayerName returns the stored name for id.
func (s *MongoDBStore) GetPlayerName(ctx context.Context, id uuid.UUID) (string, error) {
	var doc playerDocument
	err := s.players.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get player name: %w", err)
	}
	return doc.Name, nil
}

// GetPlayerID resolves name case-insensitively.
func (s *MongoDBStore) GetPlayerID(ctx context.Context, name string) (uuid.UUID, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	filter := bson.M{"name_lower": strings.ToLower(name)}

	var doc playerDocument
	err := s.players.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get player id: %w", err)
	}
	return uuid.Parse(doc.ID)
}

// GetStats returns document counts and collection sizes.
func (s *MongoDBStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["status"] = "connected"

	for name, coll := range map[string]*mongo.Collection{
		"records":      s.records,
		"transactions": s.transactions,
		"players":      s.players,
	} {
		count, err := coll.CountDocuments(ctx, bson.M{})
		if err != nil {
			return stats, err
		}
		stats["total_"+name] = count
	}

	var last recordDocument
	opts := options.FindOne().SetSort(bson.D{{Key: "saved_at", Value: -1}})
	if err := s.records.FindOne(ctx, bson.M{}, opts).Decode(&last); err == nil {
		stats["last_save"] = last.SavedAt
	}

	result := s.db.RunCommand(ctx, bson.D{{Key: "collStats", Value: s.records.Name()}})
	var collStats bson.M
	if err := result.Decode(&collStats); err == nil {
		switch size := collStats["size"].(type) {
		case int64:
			stats["db_size_bytes"] = size
		case int32:
			stats["db_size_bytes"] = int64(size)
		}
	}

	return stats, nil
}

// Close closes the MongoDB connection.
func (s *MongoDBStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var (
	_ RecordStore      = (*MongoDBStore)(nil)
	_ TransactionLog   = (*MongoDBStore)(nil)
	_ PlayerRepository = (*MongoDBStore)(nil)
)
