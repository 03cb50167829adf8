package services

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

type TicketRepository interface {
	Create(ctx context.Context, t *models.Ticket) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Ticket, error)
	PushMessage(ctx context.Context, id primitive.ObjectID, msg models.Message) (*models.Ticket, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.TicketStatus) (*models.Ticket, error)
	SetAssignee(ctx context.Context, id, assignee primitive.ObjectID) (*models.Ticket, error)
	SetContactInfo(ctx context.Context, id primitive.ObjectID, info models.ContactInfo) (*models.Ticket, error)
	MarkMissed(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Ticket, error)
	List(ctx context.Context, filter models.TicketFilter, skip, limit int64) ([]models.Ticket, error)
	Count(ctx context.Context, filter models.TicketFilter) (int64, error)
	ListMissCandidates(ctx context.Context) ([]models.Ticket, error)
	ReassignAll(ctx context.Context, from, to primitive.ObjectID) (int64, error)
}

// AccountLookup is the read side of the account store.
type AccountLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	CountByWorkspace(ctx context.Context, workspace string) (int64, error)
	ListByWorkspace(ctx context.Context, workspace string) ([]models.Account, error)
}

type EventPublisher interface {
	PublishTicketEvent(ctx context.Context, event models.TicketEvent)
}

type contactInput struct {
	Name  string `json:"name"  validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

type TicketService struct {
	tickets   TicketRepository
	accounts  AccountLookup
	publisher EventPublisher
	now       func() time.Time
}

func NewTicketService(tickets TicketRepository, accounts AccountLookup, publisher EventPublisher) *TicketService {
	return &TicketService{tickets: tickets, accounts: accounts, publisher: publisher, now: time.Now}
}

// CreateTicket opens a conversation from the widget. With BindWorkspace the
// named workspace has to exist; otherwise the ticket lands in the default one.
func (s *TicketService) CreateTicket(ctx context.Context, input models.NewTicket) (*models.Ticket, error) {
	text := strings.TrimSpace(input.FirstMessage)
	if text == "" {
		return nil, models.Validation("firstMessage field is required")
	}

	workspace := models.DefaultWorkspace
	if input.BindWorkspace {
		workspace = strings.TrimSpace(input.Workspace)
		if workspace == "" {
			return nil, models.Validation("workspaceId field is required")
		}
		n, err := s.accounts.CountByWorkspace(ctx, workspace)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, models.NotFound("workspace not found")
		}
	}

	now := s.now()
	ticket := &models.Ticket{
		Workspace:    workspace,
		Status:       models.StatusUnresolved,
		FirstMessage: text,
		Messages: []models.Message{{
			ID:        primitive.NewObjectID(),
			Sender:    models.SenderUser,
			Text:      text,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.UserInfo != nil {
		ticket.UserInfo = *input.UserInfo
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventTicketCreated, ticket)
	return ticket, nil
}

// GetTicket never mutates. Anonymous viewers hold the id as a capability;
// staff viewers go through CanView.
func (s *TicketService) GetTicket(ctx context.Context, id primitive.ObjectID, viewer *models.Account) (*models.Ticket, error) {
	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer != nil && !CanView(viewer, ticket) {
		return nil, models.Forbidden("access to this ticket was lost")
	}
	return ticket, nil
}

func (s *TicketService) GetMessages(ctx context.Context, id primitive.ObjectID, viewer *models.Account) ([]models.Message, error) {
	ticket, err := s.GetTicket(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if ticket.Messages == nil {
		return []models.Message{}, nil
	}
	return ticket.Messages, nil
}

// AppendMessage adds one turn to the conversation. Visitors may only speak as
// user; staff speak as their own role and need CanMutate.
func (s *TicketService) AppendMessage(ctx context.Context, id primitive.ObjectID, input models.MessageInput, author *models.Account) (*models.Ticket, error) {
	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !input.Sender.IsValid() {
		return nil, models.Validation("sender must be user, admin or member")
	}
	text := strings.TrimSpace(input.Message)
	if text == "" {
		return nil, models.Validation("message field is required")
	}

	if author == nil {
		if input.Sender != models.SenderUser {
			return nil, models.Unauthorized("missing token")
		}
	} else {
		if !CanMutate(author, ticket) {
			return nil, models.Forbidden("access to this ticket was lost")
		}
		if input.Sender != models.Sender(author.Role) {
			return nil, models.Forbidden("staff must send as their own role")
		}
	}

	msg := models.Message{
		ID:        primitive.NewObjectID(),
		Sender:    input.Sender,
		Text:      text,
		Timestamp: s.now(),
	}
	updated, err := s.tickets.PushMessage(ctx, id, msg)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventMessageAdded, updated)
	return updated, nil
}

// UpdateContactInfo is the widget's intro form. It reopens the ticket.
func (s *TicketService) UpdateContactInfo(ctx context.Context, id primitive.ObjectID, info models.ContactInfo) (*models.Ticket, error) {
	input := contactInput{
		Name:  strings.TrimSpace(info.Name),
		Email: strings.TrimSpace(info.Email),
		Phone: strings.TrimSpace(info.Phone),
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	updated, err := s.tickets.SetContactInfo(ctx, id, models.ContactInfo{
		Name:  input.Name,
		Email: input.Email,
		Phone: input.Phone,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventContactUpdated, updated)
	return updated, nil
}

func (s *TicketService) SetStatus(ctx context.Context, id primitive.ObjectID, status models.TicketStatus, actor *models.Account) (*models.Ticket, error) {
	if !status.IsValid() {
		return nil, models.Validation("status must be unresolved or resolved")
	}
	if _, err := s.mutable(ctx, id, actor); err != nil {
		return nil, err
	}

	updated, err := s.tickets.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventStatusChanged, updated)
	return updated, nil
}

// Assign binds the ticket to a staff account of the same workspace. Assigning
// the current assignee again changes nothing.
func (s *TicketService) Assign(ctx context.Context, id, assignee primitive.ObjectID, actor *models.Account) (*models.Ticket, error) {
	ticket, err := s.mutable(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, assignee)
	if err != nil {
		if isNotFound(err) {
			return nil, models.NotFound("user not found")
		}
		return nil, err
	}
	if account.Workspace != ticket.Workspace {
		return nil, models.NotFound("user not found")
	}
	if ticket.IsAssignedTo(assignee) {
		return ticket, nil
	}

	updated, err := s.tickets.SetAssignee(ctx, id, assignee)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventTicketAssigned, updated)
	return updated, nil
}

// ListTickets pages through what the requester can see, newest first. A
// visible pinned ticket takes the first slot of page one and shifts the rest.
func (s *TicketService) ListTickets(ctx context.Context, requester *models.Account, query models.TicketQuery) (*models.TicketPage, error) {
	if query.Status != "" && !query.Status.IsValid() {
		return nil, models.Validation("status must be unresolved or resolved")
	}
	page := query.Page.Normalize()

	filter := models.TicketFilter{Workspace: requester.Workspace, Status: query.Status}
	if !requester.IsAdmin() {
		filter.AssignedTo = &requester.ID
	}

	pinned, err := s.pinnedTicket(ctx, requester, query)
	if err != nil {
		return nil, err
	}
	if pinned != nil {
		filter.ExcludeID = &pinned.ID
	}

	rest, err := s.tickets.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	size := int64(page.ItemsPerPage)
	skip := int64(page.Page-1) * size
	limit := size
	tickets := make([]models.Ticket, 0, page.ItemsPerPage)
	total := rest

	if pinned != nil {
		total++
		if page.Page == 1 {
			tickets = append(tickets, *pinned)
			limit--
		} else {
			skip--
		}
	}

	if limit > 0 {
		found, err := s.tickets.List(ctx, filter, skip, limit)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, found...)
	}

	return &models.TicketPage{
		Tickets:     tickets,
		TotalCount:  total,
		CurrentPage: page.Page,
		TotalPages:  int((total + size - 1) / size),
	}, nil
}

func (s *TicketService) pinnedTicket(ctx context.Context, requester *models.Account, query models.TicketQuery) (*models.Ticket, error) {
	if query.Pinned == nil {
		return nil, nil
	}
	ticket, err := s.tickets.FindByID(ctx, *query.Pinned)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !CanView(requester, ticket) {
		return nil, nil
	}
	if query.Status != "" && ticket.Status != query.Status {
		return nil, nil
	}
	return ticket, nil
}

func (s *TicketService) mutable(ctx context.Context, id primitive.ObjectID, actor *models.Account) (*models.Ticket, error) {
	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanMutate(actor, ticket) {
		return nil, models.Forbidden("access to this ticket was lost")
	}
	return ticket, nil
}

func (s *TicketService) publish(ctx context.Context, kind models.TicketEventType, ticket *models.Ticket) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishTicketEvent(ctx, models.NewTicketEvent(kind, ticket))
}
