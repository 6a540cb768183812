package feed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/radeeyate/comicplate/internal/compose"
	"github.com/radeeyate/comicplate/internal/store"
)

// comicDocument is one comic as stored by the ingest side.
type comicDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Images    [][]byte           `bson:"images"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	// Limit caps how many of the newest comics are loaded; zero loads all.
	Limit int64
}

// MongoSource loads the newest comics from a MongoDB collection.
type MongoSource struct {
	client *mongo.Client
	coll   *mongo.Collection
	limit  int64
	store  *store.Store
	log    *logrus.Entry
}

func NewMongoSource(ctx context.Context, cfg MongoConfig, st *store.Store, log *logrus.Entry) (*MongoSource, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoSource{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		limit:  cfg.Limit,
		store:  st,
		log:    log.WithField("source", "mongo:"+cfg.Database+"."+cfg.Collection),
	}, nil
}

func (s *MongoSource) Name() string {
	return "mongo:" + s.coll.Database().Name() + "." + s.coll.Name()
}

func (s *MongoSource) Load(ctx context.Context) ([]compose.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if s.limit > 0 {
		opts.SetLimit(s.limit)
	}

	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find comics: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []comicDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read comics: %w", err)
	}

	entries := make([]compose.Entry, 0, len(docs))
	for _, doc := range docs {
		entry := compose.Entry{ID: doc.ID.Hex(), Title: doc.Title}
		for i, data := range doc.Images {
			img, err := s.decode(data)
			if err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{"id": entry.ID, "image": i}).Warn("skipping undecodable image")
				continue
			}
			entry.Images = append(entry.Images, img)
		}
		if len(entry.Images) > 0 {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *MongoSource) decode(data []byte) (*store.Image, error) {
	raster, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return s.store.Put(raster)
}

func (s *MongoSource) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
