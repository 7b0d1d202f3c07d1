package mongo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-bi/internal/config"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/platform/logger"
	"github.com/phrazzld/scry-bi/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// collection is the subset of *mongo.Collection used by the store.
type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// datasetDocument is the stored form of a dataset.
type datasetDocument struct {
	Name      string     `bson:"_id"`
	Fields    []string   `bson:"fields"`
	Rows      [][]string `bson:"rows"`
	CreatedAt time.Time  `bson:"created_at"`
}

// MongoDatasetStore implements store.DatasetStore on a MongoDB collection.
type MongoDatasetStore struct {
	coll   collection
	logger *slog.Logger
}

var _ store.DatasetStore = (*MongoDatasetStore)(nil)

// Connect opens a client for cfg.MongoURI and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatasetConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// NewMongoDatasetStore creates a store backed by the configured collection.
func NewMongoDatasetStore(client *mongo.Client, cfg config.DatasetConfig, logger *slog.Logger) *MongoDatasetStore {
	if client == nil {
		panic("client cannot be nil")
	}
	return newDatasetStore(client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection), logger)
}

func newDatasetStore(coll collection, logger *slog.Logger) *MongoDatasetStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoDatasetStore{
		coll:   coll,
		logger: logger.With(slog.String("component", "mongo_dataset_store")),
	}
}

// CreateTable implements store.DatasetStore.CreateTable
func (s *MongoDatasetStore) CreateTable(ctx context.Context, name string, fields []string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(fields) == 0 {
		return fmt.Errorf("%w: dataset %s has no fields", store.ErrInvalidEntity, name)
	}

	doc := datasetDocument{
		Name:      name,
		Fields:    fields,
		Rows:      [][]string{},
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: dataset %s", store.ErrDuplicate, name)
		}
		log.Error("failed to create dataset document",
			slog.String("error", err.Error()),
			slog.String("dataset", name))
		return fmt.Errorf("failed to create dataset %s: %w", name, err)
	}

	log.Debug("dataset document created",
		slog.String("dataset", name),
		slog.Int("fields", len(fields)))
	return nil
}

// InsertRows implements store.DatasetStore.InsertRows. Rows are appended
// to the document's row array in the order given.
func (s *MongoDatasetStore) InsertRows(ctx context.Context, name string, rows [][]string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d cells, want %d", store.ErrInvalidEntity, i, len(row), width)
		}
	}

	filter := bson.M{"_id": name, "fields": bson.M{"$size": width}}
	update := bson.M{"$push": bson.M{"rows": bson.M{"$each": rows}}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		log.Error("failed to insert dataset rows",
			slog.String("error", err.Error()),
			slog.String("dataset", name))
		return fmt.Errorf("failed to insert rows into dataset %s: %w", name, err)
	}

	if res.MatchedCount == 0 {
		// Either the document is missing or its width differs.
		if _, err := s.find(ctx, name); err != nil {
			return err
		}
		return fmt.Errorf("%w: rows of dataset %s must have %d cells", store.ErrInvalidEntity, name, width)
	}

	log.Debug("dataset rows inserted",
		slog.String("dataset", name),
		slog.Int("rows", len(rows)))
	return nil
}

// ReadRows implements store.DatasetStore.ReadRows
func (s *MongoDatasetStore) ReadRows(ctx context.Context, name string) (*domain.Dataset, error) {
	doc, err := s.find(ctx, name)
	if err != nil {
		return nil, err
	}
	return &domain.Dataset{Fields: doc.Fields, Rows: doc.Rows}, nil
}

// DropTable implements store.DatasetStore.DropTable. Dropping a missing
// dataset is not an error.
func (s *MongoDatasetStore) DropTable(ctx context.Context, name string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": name}); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to drop dataset document",
			slog.String("error", err.Error()),
			slog.String("dataset", name))
		return fmt.Errorf("failed to drop dataset %s: %w", name, err)
	}
	return nil
}

// WithTx returns the store itself; MongoDB writes cannot join a SQL transaction.
func (s *MongoDatasetStore) WithTx(_ *sql.Tx) store.DatasetStore {
	return s
}

// Transactional implements store.DatasetStore.Transactional
func (s *MongoDatasetStore) Transactional() bool {
	return false
}

func (s *MongoDatasetStore) find(ctx context.Context, name string) (*datasetDocument, error) {
	var doc datasetDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", store.ErrDatasetNotFound, name)
		}
		return nil, fmt.Errorf("failed to read dataset %s: %w", name, err)
	}
	return &doc, nil
}
