package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

type SettingsRepository struct {
	col *mongo.Collection
}

func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{col: db.Collection(utils.SettingsCollection)}
}

// GetOrCreate returns the workspace document, inserting defaults in the same
// atomic operation when none exists yet.
func (r *SettingsRepository) GetOrCreate(ctx context.Context, defaults models.ChatbotSettings) (*models.ChatbotSettings, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var settings models.ChatbotSettings
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"workspace": defaults.Workspace},
		bson.M{"$setOnInsert": defaults},
		opts,
	).Decode(&settings)
	if mongo.IsDuplicateKeyError(err) {
		// lost an upsert race; the winner's document is there now
		err = r.col.FindOne(ctx, bson.M{"workspace": defaults.Workspace}).Decode(&settings)
	}
	if err != nil {
		return nil, handleDatabaseError(err, "chatbot settings")
	}
	return &settings, nil
}

// Patch applies a dotted-path $set and returns the merged document.
func (r *SettingsRepository) Patch(ctx context.Context, workspace string, fields map[string]interface{}) (*models.ChatbotSettings, error) {
	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		set[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var settings models.ChatbotSettings
	err := r.col.FindOneAndUpdate(ctx, bson.M{"workspace": workspace}, bson.M{"$set": set}, opts).Decode(&settings)
	if err != nil {
		return nil, handleDatabaseError(err, "chatbot settings")
	}
	return &settings, nil
}
