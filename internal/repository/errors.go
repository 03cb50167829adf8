package repository

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"hubly/helpdesk-service/internal/models"
)

// handleDatabaseError translates driver errors into the model error kinds.
func handleDatabaseError(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.NotFound("%s not found", entity)
	case mongo.IsDuplicateKeyError(err):
		if entity == "user" {
			return models.Conflict("email already in use")
		}
		return models.Conflict("%s already exists", entity)
	default:
		return fmt.Errorf("%s store: %w", entity, err)
	}
}
