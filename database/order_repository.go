package database

import (
	"context"
	"errors"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoOrderStore struct {
	collection *mongo.Collection
}

func NewMongoOrderStore(db *mongo.Database) *MongoOrderStore {
	return &MongoOrderStore{collection: db.Collection(ordersCollection)}
}

// FindMostRecent returns nil without error when the caller has no orders.
func (s *MongoOrderStore) FindMostRecent(ctx context.Context, owner *models.Identity) (*models.Order, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var order models.Order
	err := s.collection.FindOne(ctx, ownerFilter(owner.UserID, owner.Email), opts).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load latest order", err)
	}
	return &order, nil
}
