// Package userstore is the MongoDB user repository. Every database call runs
// through the instrument package, so its timings and failures end up in the
// application log and the metrics backend.
package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/olegiv/logwatch-alerts-go/internal/instrument"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection        = "users"
	serverSelectionTimeout = 5 * time.Second
	ageDistributionLimit   = 5
)

// User is a document in the users collection.
type User struct {
	ID    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name  string             `json:"name" bson:"name"`
	Age   int                `json:"age" bson:"age"`
	Email string             `json:"email" bson:"email"`
}

// AgeBucket is one row of the age distribution.
type AgeBucket struct {
	Age   int `json:"age" bson:"_id"`
	Count int `json:"count" bson:"count"`
}

// collection is the part of *mongo.Collection the repository uses.
type collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
}

// Repository runs instrumented operations on the users collection.
type Repository struct {
	users collection
	timer *instrument.Timer
}

// Connect opens a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(serverSelectionTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// NewRepository creates a repository on db's users collection.
func NewRepository(db *mongo.Database, timer *instrument.Timer) *Repository {
	return newRepository(db.Collection(usersCollection), timer)
}

func newRepository(users collection, timer *instrument.Timer) *Repository {
	return &Repository{users: users, timer: timer}
}

// FindUsers returns users aged minAge or older.
func (r *Repository) FindUsers(ctx context.Context, minAge int) ([]User, error) {
	return instrument.Query(ctx, r.timer, "find_users", func(ctx context.Context) ([]User, error) {
		cur, err := r.users.Find(ctx, bson.M{"age": bson.M{"$gte": minAge}})
		if err != nil {
			return nil, err
		}
		users := make([]User, 0)
		if err := cur.All(ctx, &users); err != nil {
			return nil, err
		}
		return users, nil
	})
}

// InsertUser stores u and returns its id.
func (r *Repository) InsertUser(ctx context.Context, u User) (primitive.ObjectID, error) {
	return instrument.Query(ctx, r.timer, "insert_user", func(ctx context.Context) (primitive.ObjectID, error) {
		res, err := r.users.InsertOne(ctx, u)
		if err != nil {
			return primitive.NilObjectID, err
		}
		id, ok := res.InsertedID.(primitive.ObjectID)
		if !ok {
			return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
		}
		return id, nil
	})
}

// UpdateUserAge sets the age of a user and returns the modified count.
func (r *Repository) UpdateUserAge(ctx context.Context, id primitive.ObjectID, age int) (int64, error) {
	return instrument.Query(ctx, r.timer, "update_user_age", func(ctx context.Context) (int64, error) {
		res, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"age": age}})
		if err != nil {
			return 0, err
		}
		return res.ModifiedCount, nil
	})
}

// DeleteUser removes a user and returns the deleted count.
func (r *Repository) DeleteUser(ctx context.Context, id primitive.ObjectID) (int64, error) {
	return instrument.Query(ctx, r.timer, "delete_user", func(ctx context.Context) (int64, error) {
		res, err := r.users.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})
}

// AgeDistributionPipeline groups users by age and keeps the most common ages.
func AgeDistributionPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$age"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
		{{Key: "$limit", Value: ageDistributionLimit}},
	}
}

// AgeDistribution returns the most common ages with their user counts.
func (r *Repository) AgeDistribution(ctx context.Context) ([]AgeBucket, error) {
	return instrument.Query(ctx, r.timer, "complex_aggregation", func(ctx context.Context) ([]AgeBucket, error) {
		cur, err := r.users.Aggregate(ctx, AgeDistributionPipeline())
		if err != nil {
			return nil, err
		}
		buckets := make([]AgeBucket, 0)
		if err := cur.All(ctx, &buckets); err != nil {
			return nil, err
		}
		return buckets, nil
	})
}

// SlowFindOne waits for delay and then returns any one user, or nil when the
// collection is empty. It exercises the slow query path.
func (r *Repository) SlowFindOne(ctx context.Context, delay time.Duration) (*User, error) {
	return instrument.Query(ctx, r.timer, "potentially_slow_query", func(ctx context.Context) (*User, error) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		var u User
		err := r.users.FindOne(ctx, bson.D{}).Decode(&u)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &u, nil
	})
}
