package database

import (
	"context"
	"time"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoAnalyticsStore struct {
	collection *mongo.Collection
}

func NewMongoAnalyticsStore(db *mongo.Database) *MongoAnalyticsStore {
	return &MongoAnalyticsStore{collection: db.Collection(analyticsCollection)}
}

func (s *MongoAnalyticsStore) Record(ctx context.Context, rec models.ChatAnalyticsRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return apperrors.NewInternalError("failed to save chat analytics", err)
	}
	return nil
}

var countByIntent = bson.D{
	{Key: "$group", Value: bson.M{"_id": "$intent", "count": bson.M{"$sum": 1}}},
}

var sortByCount = bson.D{
	{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
}

// Summary aggregates intent counts, unanswered counts and response times.
func (s *MongoAnalyticsStore) Summary(ctx context.Context) (*models.AnalyticsSummary, error) {
	mostCommon, err := s.intentCounts(ctx, mongo.Pipeline{countByIntent, sortByCount})
	if err != nil {
		return nil, err
	}

	unansweredMatch := bson.D{{Key: "$match", Value: bson.M{
		"$or": bson.A{
			bson.M{"is_unknown_intent": true},
			bson.M{"has_error": true},
		},
	}}}
	unanswered, err := s.intentCounts(ctx, mongo.Pipeline{unansweredMatch, countByIntent, sortByCount})
	if err != nil {
		return nil, err
	}

	perfPipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"response_time_ms": bson.M{"$gt": 0}}}},
		{{Key: "$group", Value: bson.M{
			"_id":                  nil,
			"avg_response_time_ms": bson.M{"$avg": "$response_time_ms"},
			"max_response_time_ms": bson.M{"$max": "$response_time_ms"},
			"count":                bson.M{"$sum": 1},
		}}},
	}
	cursor, err := s.collection.Aggregate(ctx, perfPipeline)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to aggregate response times", err)
	}
	defer cursor.Close(ctx)

	var perf []models.ResponseTimeStats
	if err := cursor.All(ctx, &perf); err != nil {
		return nil, apperrors.NewInternalError("failed to decode response times", err)
	}

	summary := &models.AnalyticsSummary{
		MostCommonIntents: mostCommon,
		UnansweredIntents: unanswered,
	}
	if len(perf) > 0 {
		summary.Performance = &perf[0]
	}
	return summary, nil
}

func (s *MongoAnalyticsStore) intentCounts(ctx context.Context, pipeline mongo.Pipeline) ([]models.IntentCount, error) {
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to aggregate intents", err)
	}
	defer cursor.Close(ctx)

	counts := []models.IntentCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, apperrors.NewInternalError("failed to decode intent counts", err)
	}
	for i := range counts {
		if counts[i].Intent == "" {
			counts[i].Intent = "(none)"
		}
	}
	return counts, nil
}
