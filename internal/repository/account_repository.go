package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

type AccountRepository struct {
	col *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{col: db.Collection(utils.AccountsCollection)}
}

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, a)
	return handleDatabaseError(err, "user")
}

func (r *AccountRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var account models.Account
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&account); err != nil {
		return nil, handleDatabaseError(err, "user")
	}
	return &account, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&account); err != nil {
		return nil, handleDatabaseError(err, "user")
	}
	return &account, nil
}

func (r *AccountRepository) ListByWorkspace(ctx context.Context, workspace string) ([]models.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"workspace": workspace}, opts)
	if err != nil {
		return nil, handleDatabaseError(err, "user")
	}

	accounts := make([]models.Account, 0)
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, handleDatabaseError(err, "user")
	}
	return accounts, nil
}

func (r *AccountRepository) CountByWorkspace(ctx context.Context, workspace string) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"workspace": workspace})
	return n, handleDatabaseError(err, "user")
}

// Update writes the mutable fields of a. The unique email index still applies.
func (r *AccountRepository) Update(ctx context.Context, a *models.Account) error {
	a.UpdatedAt = time.Now()
	res, err := r.col.UpdateByID(ctx, a.ID, bson.M{
		"$set": bson.M{
			"first_name":    a.FirstName,
			"last_name":     a.LastName,
			"email":         a.Email,
			"phone":         a.Phone,
			"profile_image": a.ProfileImage,
			"role":          a.Role,
			"password":      a.Password,
			"is_active":     a.IsActive,
			"updated_at":    a.UpdatedAt,
		},
	})
	if err != nil {
		return handleDatabaseError(err, "user")
	}
	if res.MatchedCount == 0 {
		return models.NotFound("user not found")
	}
	return nil
}

func (r *AccountRepository) SetLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"last_login": at}})
	return handleDatabaseError(err, "user")
}

func (r *AccountRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return handleDatabaseError(err, "user")
	}
	if res.DeletedCount == 0 {
		return models.NotFound("user not found")
	}
	return nil
}
