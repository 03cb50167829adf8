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

type TicketRepository struct {
	col *mongo.Collection
}

func NewTicketRepository(db *mongo.Database) *TicketRepository {
	return &TicketRepository{col: db.Collection(utils.TicketsCollection)}
}

func (r *TicketRepository) Create(ctx context.Context, t *models.Ticket) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, t)
	return handleDatabaseError(err, "ticket")
}

func (r *TicketRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&ticket); err != nil {
		return nil, handleDatabaseError(err, "ticket")
	}
	return &ticket, nil
}

// PushMessage appends atomically, so concurrent appends are all kept. A staff
// reply also clears the missed flag.
func (r *TicketRepository) PushMessage(ctx context.Context, id primitive.ObjectID, msg models.Message) (*models.Ticket, error) {
	set := bson.M{"updated_at": msg.Timestamp}
	if msg.Sender.IsStaff() {
		set["missed_at"] = nil
	}
	return r.findAndUpdate(ctx, id, bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  set,
	})
}

func (r *TicketRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status models.TicketStatus) (*models.Ticket, error) {
	return r.findAndUpdate(ctx, id, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now()},
	})
}

func (r *TicketRepository) SetAssignee(ctx context.Context, id, assignee primitive.ObjectID) (*models.Ticket, error) {
	return r.findAndUpdate(ctx, id, bson.M{
		"$set": bson.M{"assigned_to": assignee, "updated_at": time.Now()},
	})
}

// SetContactInfo stores the visitor's details and reopens the ticket.
func (r *TicketRepository) SetContactInfo(ctx context.Context, id primitive.ObjectID, info models.ContactInfo) (*models.Ticket, error) {
	return r.findAndUpdate(ctx, id, bson.M{
		"$set": bson.M{
			"user_info":  info,
			"status":     models.StatusUnresolved,
			"updated_at": time.Now(),
		},
	})
}

// MarkMissed flags the ticket unless another run already did.
func (r *TicketRepository) MarkMissed(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Ticket, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var ticket models.Ticket
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "missed_at": nil},
		bson.M{"$set": bson.M{"missed_at": at}},
		opts,
	).Decode(&ticket)
	if err != nil {
		return nil, handleDatabaseError(err, "ticket")
	}
	return &ticket, nil
}

func (r *TicketRepository) List(ctx context.Context, filter models.TicketFilter, skip, limit int64) ([]models.Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if skip > 0 {
		opts.SetSkip(skip)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.col.Find(ctx, ticketQuery(filter), opts)
	if err != nil {
		return nil, handleDatabaseError(err, "ticket")
	}

	tickets := make([]models.Ticket, 0)
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, handleDatabaseError(err, "ticket")
	}
	return tickets, nil
}

func (r *TicketRepository) Count(ctx context.Context, filter models.TicketFilter) (int64, error) {
	n, err := r.col.CountDocuments(ctx, ticketQuery(filter))
	return n, handleDatabaseError(err, "ticket")
}

// ListMissCandidates returns open tickets not yet flagged as missed.
func (r *TicketRepository) ListMissCandidates(ctx context.Context) ([]models.Ticket, error) {
	cursor, err := r.col.Find(ctx, bson.M{
		"status":    models.StatusUnresolved,
		"missed_at": nil,
	})
	if err != nil {
		return nil, handleDatabaseError(err, "ticket")
	}

	tickets := make([]models.Ticket, 0)
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, handleDatabaseError(err, "ticket")
	}
	return tickets, nil
}

// ReassignAll moves every ticket assigned to from over to to. Running it again
// matches nothing, so a retried member deletion is safe.
func (r *TicketRepository) ReassignAll(ctx context.Context, from, to primitive.ObjectID) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"assigned_to": from},
		bson.M{"$set": bson.M{"assigned_to": to, "updated_at": time.Now()}},
	)
	if err != nil {
		return 0, handleDatabaseError(err, "ticket")
	}
	return res.ModifiedCount, nil
}

func (r *TicketRepository) findAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Ticket, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var ticket models.Ticket
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&ticket); err != nil {
		return nil, handleDatabaseError(err, "ticket")
	}
	return &ticket, nil
}

func ticketQuery(f models.TicketFilter) bson.M {
	query := bson.M{}
	if f.Workspace != "" {
		query["workspace"] = f.Workspace
	}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.AssignedTo != nil {
		query["assigned_to"] = *f.AssignedTo
	}
	if f.ExcludeID != nil {
		query["_id"] = bson.M{"$ne": *f.ExcludeID}
	}
	return query
}
