package repository

import (
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"hubly/helpdesk-service/internal/models"
)

func TestTicketQuery(t *testing.T) {
	member := primitive.NewObjectID()
	pinned := primitive.NewObjectID()

	tests := []struct {
		name   string
		filter models.TicketFilter
		want   bson.M
	}{
		{
			name:   "workspace only",
			filter: models.TicketFilter{Workspace: "acme"},
			want:   bson.M{"workspace": "acme"},
		},
		{
			name: "member view with pin excluded",
			filter: models.TicketFilter{
				Workspace:  "acme",
				Status:     models.StatusResolved,
				AssignedTo: &member,
				ExcludeID:  &pinned,
			},
			want: bson.M{
				"workspace":   "acme",
				"status":      models.StatusResolved,
				"assigned_to": member,
				"_id":         bson.M{"$ne": pinned},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ticketQuery(tt.filter); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ticketQuery() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleDatabaseError(t *testing.T) {
	if err := handleDatabaseError(nil, "ticket"); err != nil {
		t.Fatalf("nil error mapped to %v", err)
	}

	err := handleDatabaseError(mongo.ErrNoDocuments, "ticket")
	if !errors.Is(err, models.ErrNotFound) || models.ErrorMessage(err) != "ticket not found" {
		t.Errorf("no documents mapped to %v", err)
	}

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	err = handleDatabaseError(dup, "user")
	if !errors.Is(err, models.ErrConflict) || models.ErrorMessage(err) != "email already in use" {
		t.Errorf("duplicate key mapped to %v", err)
	}

	other := errors.New("connection reset")
	err = handleDatabaseError(other, "ticket")
	if !errors.Is(err, other) || models.ErrorMessage(err) != "internal server error" {
		t.Errorf("driver error mapped to %v", err)
	}
}
