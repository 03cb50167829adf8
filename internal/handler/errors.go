package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
)

func respondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// handleServiceError picks the status from the error kind. Unclassified
// errors are logged and answered with a generic 500.
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		respondWithError(c, http.StatusBadRequest, models.ErrorMessage(err))
	case errors.Is(err, models.ErrAuth):
		respondWithError(c, http.StatusUnauthorized, models.ErrorMessage(err))
	case errors.Is(err, models.ErrForbidden):
		respondWithError(c, http.StatusForbidden, models.ErrorMessage(err))
	case errors.Is(err, models.ErrNotFound):
		respondWithError(c, http.StatusNotFound, models.ErrorMessage(err))
	case errors.Is(err, models.ErrConflict):
		respondWithError(c, http.StatusConflict, models.ErrorMessage(err))
	case errors.Is(err, models.ErrUnavailable):
		respondWithError(c, http.StatusServiceUnavailable, models.ErrorMessage(err))
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		respondWithError(c, http.StatusInternalServerError, "internal server error")
	}
}

// bindJSON decodes the body. Field rules are checked by the services.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// ticketID treats a malformed id like an unknown one: the id is the
// visitor's only capability.
func ticketID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusNotFound, "ticket not found")
		return primitive.NilObjectID, false
	}
	return id, true
}

func accountID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "invalid user ID")
		return primitive.NilObjectID, false
	}
	return id, true
}
