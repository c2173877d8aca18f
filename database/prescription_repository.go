package database

import (
	"context"
	"time"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoPrescriptionStore struct {
	collection *mongo.Collection
}

func NewMongoPrescriptionStore(db *mongo.Database) *MongoPrescriptionStore {
	return &MongoPrescriptionStore{collection: db.Collection(prescriptionsCollection)}
}

func (s *MongoPrescriptionStore) Create(ctx context.Context, p *models.Prescription) (*models.Prescription, error) {
	created := *p
	if created.ID == "" {
		created.ID = primitive.NewObjectID().Hex()
	}
	if created.Status == "" {
		created.Status = models.PrescriptionActive
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}

	if _, err := s.collection.InsertOne(ctx, &created); err != nil {
		return nil, apperrors.NewInternalError("failed to create prescription", err)
	}
	return &created, nil
}

func (s *MongoPrescriptionStore) List(ctx context.Context, owner *models.Identity) ([]models.Prescription, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.collection.Find(ctx, ownerFilter(owner.UserID, owner.Email), opts)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list prescriptions", err)
	}
	defer cursor.Close(ctx)

	prescriptions := []models.Prescription{}
	if err := cursor.All(ctx, &prescriptions); err != nil {
		return nil, apperrors.NewInternalError("failed to decode prescriptions", err)
	}
	return prescriptions, nil
}
