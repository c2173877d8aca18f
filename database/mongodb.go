package database

import (
	"context"
	"fmt"
	"time"

	"medicose-chatbot-backend/config"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	appointmentsCollection  = "appointments"
	prescriptionsCollection = "prescriptions"
	ordersCollection        = "orders"
	analyticsCollection     = "chat_messages"
)

var (
	mongoClient *mongo.Client
	mongoDB     *mongo.Database
)

// ConnectMongoDB establishes connection to MongoDB
func ConnectMongoDB(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Set client options
	clientOptions := options.Client().
		ApplyURI(cfg.BuildDatabaseURI()).
		SetMaxPoolSize(uint64(cfg.Database.MaxConnections)).
		SetMinPoolSize(uint64(cfg.Database.MinConnections)).
		SetMaxConnIdleTime(cfg.Database.MaxIdleTime)

	// Connect to MongoDB
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoClient = client
	mongoDB = client.Database(cfg.Database.Name)

	log.Info().Str("database", cfg.Database.Name).Msg("Connected to MongoDB")

	// Create indexes
	if err := createIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// GetMongoDB returns the MongoDB database instance
func GetMongoDB() *mongo.Database {
	if mongoDB == nil {
		log.Fatal().Msg("MongoDB not initialized")
	}
	return mongoDB
}

// GetMongoClient returns the MongoDB client
func GetMongoClient() *mongo.Client {
	if mongoClient == nil {
		log.Fatal().Msg("MongoDB client not initialized")
	}
	return mongoClient
}

func ownerIndexes(sortKey string) []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: sortKey, Value: -1}}},
		{Keys: bson.D{{Key: "user_email", Value: 1}, {Key: sortKey, Value: -1}}},
	}
}

// createIndexes creates necessary indexes
func createIndexes(ctx context.Context) error {
	appointmentIndexes := append(ownerIndexes("created_at"), mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}},
	})
	if _, err := mongoDB.Collection(appointmentsCollection).Indexes().CreateMany(ctx, appointmentIndexes); err != nil {
		return fmt.Errorf("failed to create appointment indexes: %w", err)
	}

	if _, err := mongoDB.Collection(prescriptionsCollection).Indexes().CreateMany(ctx, ownerIndexes("created_at")); err != nil {
		return fmt.Errorf("failed to create prescription indexes: %w", err)
	}

	if _, err := mongoDB.Collection(ordersCollection).Indexes().CreateMany(ctx, ownerIndexes("created_at")); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	analyticsIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "intent", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	}
	if _, err := mongoDB.Collection(analyticsCollection).Indexes().CreateMany(ctx, analyticsIndexes); err != nil {
		return fmt.Errorf("failed to create analytics indexes: %w", err)
	}

	log.Info().Msg("Database indexes created successfully")
	return nil
}

// DisconnectMongoDB closes the MongoDB connection
func DisconnectMongoDB() error {
	if mongoClient == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mongoClient.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	log.Info().Msg("Disconnected from MongoDB")
	return nil
}

// ownerFilter matches documents belonging to the identity by id or email.
func ownerFilter(userID, email string) bson.M {
	var clauses bson.A
	if userID != "" {
		clauses = append(clauses, bson.M{"user_id": userID})
	}
	if email != "" {
		clauses = append(clauses, bson.M{"user_email": email})
	}
	switch len(clauses) {
	case 0:
		return bson.M{"_id": bson.M{"$exists": false}}
	case 1:
		return clauses[0].(bson.M)
	default:
		return bson.M{"$or": clauses}
	}
}
