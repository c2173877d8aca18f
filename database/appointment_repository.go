package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoAppointmentStore struct {
	collection *mongo.Collection
}

func NewMongoAppointmentStore(db *mongo.Database) *MongoAppointmentStore {
	return &MongoAppointmentStore{collection: db.Collection(appointmentsCollection)}
}

func (s *MongoAppointmentStore) Create(ctx context.Context, owner *models.Identity, in models.NewAppointment) (*models.Appointment, error) {
	now := time.Now()
	appt := &models.Appointment{
		ID:         primitive.NewObjectID().Hex(),
		UserID:     owner.UserID,
		UserEmail:  owner.Email,
		DoctorName: in.DoctorName,
		Datetime:   in.Datetime,
		Reason:     in.Reason,
		Status:     models.AppointmentScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := s.collection.InsertOne(ctx, appt); err != nil {
		return nil, apperrors.NewInternalError("failed to create appointment", err)
	}
	return appt, nil
}

func (s *MongoAppointmentStore) List(ctx context.Context, owner *models.Identity) ([]models.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.collection.Find(ctx, ownerFilter(owner.UserID, owner.Email), opts)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer cursor.Close(ctx)

	appointments := []models.Appointment{}
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, apperrors.NewInternalError("failed to decode appointments", err)
	}
	return appointments, nil
}

func (s *MongoAppointmentStore) Update(ctx context.Context, id string, update models.AppointmentUpdate, caller *models.Identity) (*models.Appointment, error) {
	var existing models.Appointment
	err := s.collection.FindOne(ctx, appointmentIDFilter(id)).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load appointment", err)
	}
	if !caller.Owns(existing.UserID, existing.UserEmail) {
		return nil, apperrors.NewForbiddenError("appointment belongs to another user")
	}

	set := bson.M{"updated_at": time.Now()}
	if update.Datetime != nil {
		set["datetime"] = *update.Datetime
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Appointment
	err = s.collection.FindOneAndUpdate(ctx, appointmentIDFilter(id), bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to update appointment", err)
	}
	return &updated, nil
}

// appointmentIDFilter matches both string ids written here and ObjectID ids
// written by the main app. Listed ObjectIDs decode to their hex form.
func appointmentIDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}
