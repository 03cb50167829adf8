package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TicketStatus string

const (
	StatusUnresolved TicketStatus = "unresolved"
	StatusResolved   TicketStatus = "resolved"
)

func (s TicketStatus) IsValid() bool {
	return s == StatusUnresolved || s == StatusResolved
}

type Sender string

const (
	SenderUser   Sender = "user"
	SenderAdmin  Sender = "admin"
	SenderMember Sender = "member"
)

func (s Sender) IsValid() bool {
	switch s {
	case SenderUser, SenderAdmin, SenderMember:
		return true
	}
	return false
}

// IsStaff reports whether the message was written from the dashboard.
func (s Sender) IsStaff() bool {
	return s == SenderAdmin || s == SenderMember
}

type ContactInfo struct {
	Name  string `bson:"name"  json:"name"`
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone" json:"phone"`
}

type Message struct {
	ID        primitive.ObjectID `bson:"_id"       json:"id"`
	Sender    Sender             `bson:"sender"    json:"sender"`
	Text      string             `bson:"message"   json:"message"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

type Ticket struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Workspace    string              `bson:"workspace"     json:"workspace"`
	Status       TicketStatus        `bson:"status"        json:"status"`
	AssignedTo   *primitive.ObjectID `bson:"assigned_to"   json:"assignedTo"`
	UserInfo     ContactInfo         `bson:"user_info"     json:"userInfo"`
	FirstMessage string              `bson:"first_message" json:"firstMessage"`
	Messages     []Message           `bson:"messages"      json:"messages"`
	MissedAt     *time.Time          `bson:"missed_at"     json:"missedAt,omitempty"`
	CreatedAt    time.Time           `bson:"created_at"    json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updated_at"    json:"updatedAt"`
}

func (t *Ticket) IsAssignedTo(id primitive.ObjectID) bool {
	return t.AssignedTo != nil && *t.AssignedTo == id
}

// LastMessage returns nil for a ticket without messages.
func (t *Ticket) LastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// FirstStaffReply returns the first message sent from the dashboard, if any.
func (t *Ticket) FirstStaffReply() *Message {
	for i := range t.Messages {
		if t.Messages[i].Sender.IsStaff() {
			return &t.Messages[i]
		}
	}
	return nil
}

type NewTicket struct {
	FirstMessage string       `json:"firstMessage"`
	UserInfo     *ContactInfo `json:"userInfo"`
	Workspace    string       `json:"workspaceId"`
	// BindWorkspace requires Workspace to name an existing workspace.
	BindWorkspace bool `json:"-"`
}

type TicketFilter struct {
	Workspace  string
	Status     TicketStatus
	AssignedTo *primitive.ObjectID
	ExcludeID  *primitive.ObjectID
}

type Pagination struct {
	Page         int
	ItemsPerPage int
}

const (
	DefaultItemsPerPage = 20
	MaxItemsPerPage     = 100
)

// Normalize clamps the page to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.ItemsPerPage < 1 {
		p.ItemsPerPage = DefaultItemsPerPage
	}
	if p.ItemsPerPage > MaxItemsPerPage {
		p.ItemsPerPage = MaxItemsPerPage
	}
	return p
}

type TicketPage struct {
	Tickets     []Ticket `json:"tickets"`
	TotalCount  int64    `json:"totalCount"`
	CurrentPage int      `json:"currentPage"`
	TotalPages  int      `json:"totalPages"`
}

type MessageInput struct {
	Sender  Sender `json:"sender"`
	Message string `json:"message"`
}

// TicketQuery is a dashboard listing request. Pinned names a ticket that is
// shown first when the requester can see it.
type TicketQuery struct {
	Status TicketStatus
	Page   Pagination
	Pinned *primitive.ObjectID
}
