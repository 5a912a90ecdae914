// Package mongostore persists tasks in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskpilot/pkg/model"
	"github.com/harrisonrobin/taskpilot/pkg/store"
)

const (
	DefaultDatabase   = "taskpilot"
	DefaultCollection = "tasks"
)

type Config struct {
	URI        string
	Database   string
	Collection string
	Logger     *zap.Logger
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

// Open connects, pings and ensures the query indexes exist.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongodb uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "due_date", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	logger.Info("connected to mongodb",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))
	return &Store{client: client, coll: coll, logger: logger}, nil
}

func (s *Store) Insert(ctx context.Context, t *model.Task) (string, error) {
	c := t.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Dependencies == nil {
		c.Dependencies = []string{}
	}
	if c.TimeEntries == nil {
		c.TimeEntries = []model.TimeEntry{}
	}
	if _, err := s.coll.InsertOne(ctx, c); err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return c.ID, nil
}

func (s *Store) Get(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

// Update runs as a single findOneAndUpdate with an aggregation pipeline.
// Every expression in one $set stage sees the document as it was before the
// update, so the completion check reads the previous status.
func (s *Store) Update(ctx context.Context, id string, u store.Update) (*model.Task, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var t model.Task
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, updatePipeline(u), opts).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	return &t, nil
}

func updatePipeline(u store.Update) mongo.Pipeline {
	set := bson.D{{Key: "last_updated", Value: u.At}}

	if u.Status != nil {
		status := string(*u.Status)
		set = append(set, bson.E{Key: "status", Value: bson.M{"$literal": status}})
		if *u.Status == model.StatusCompleted {
			set = append(set, bson.E{Key: "completion_date", Value: bson.M{
				"$cond": bson.A{
					bson.M{"$and": bson.A{
						bson.M{"$ne": bson.A{"$status", string(model.StatusCompleted)}},
						bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$completion_date", nil}}, nil}},
					}},
					u.At,
					"$completion_date",
				},
			}})
		}
	}
	if u.Progress != nil {
		set = append(set, bson.E{Key: "progress", Value: *u.Progress})
	}
	if u.Notes != nil {
		set = append(set, bson.E{Key: "notes", Value: bson.M{"$literal": *u.Notes}})
	}
	if u.AddHours != 0 {
		set = append(set, bson.E{Key: "actual_hours", Value: bson.M{
			"$add": bson.A{bson.M{"$ifNull": bson.A{"$actual_hours", 0}}, u.AddHours},
		}})
	}
	if e := u.AppendEntry; e != nil {
		entry := bson.D{
			{Key: "hours", Value: e.Hours},
			{Key: "description", Value: bson.M{"$literal": e.Description}},
			{Key: "timestamp", Value: e.Timestamp},
		}
		set = append(set, bson.E{Key: "time_entries", Value: bson.M{
			"$concatArrays": bson.A{bson.M{"$ifNull": bson.A{"$time_entries", bson.A{}}}, bson.A{entry}},
		}})
	}
	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}

func filterDoc(f store.Filter) bson.M {
	q := bson.M{}
	if len(f.IDs) > 0 {
		q["_id"] = bson.M{"$in": f.IDs}
	}
	if len(f.Statuses) > 0 {
		q["status"] = bson.M{"$in": f.Statuses}
	}
	if len(f.Categories) > 0 {
		q["category"] = bson.M{"$in": f.Categories}
	}
	if len(f.Priorities) > 0 {
		q["priority"] = bson.M{"$in": f.Priorities}
	}
	if f.Assignee != "" {
		q["assignee"] = f.Assignee
	}
	if f.DueFrom != "" || f.DueTo != "" {
		due := bson.M{"$gt": ""}
		if f.DueFrom != "" {
			due["$gte"] = f.DueFrom
		}
		if f.DueTo != "" {
			due["$lte"] = f.DueTo
		}
		q["due_date"] = due
	}
	return q
}

func (s *Store) Find(ctx context.Context, f store.Filter) ([]model.Task, error) {
	cur, err := s.coll.Find(ctx, filterDoc(f))
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	result := []model.Task{}
	if err := cur.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	model.SortTasks(result)
	return result, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
