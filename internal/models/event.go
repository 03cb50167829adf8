package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TicketEventType string

const (
	EventTicketCreated  TicketEventType = "ticket.created"
	EventMessageAdded   TicketEventType = "ticket.message"
	EventStatusChanged  TicketEventType = "ticket.status"
	EventTicketAssigned TicketEventType = "ticket.assigned"
	EventContactUpdated TicketEventType = "ticket.contact"
	EventTicketMissed   TicketEventType = "ticket.missed"
)

// TicketEvent is a change notification. It never carries message bodies:
// subscribers re-read the ticket and reconcile.
type TicketEvent struct {
	Type         TicketEventType     `json:"type"`
	TicketID     primitive.ObjectID  `json:"ticketId"`
	Workspace    string              `json:"workspace"`
	AssignedTo   *primitive.ObjectID `json:"assignedTo"`
	Status       TicketStatus        `json:"status"`
	MessageCount int                 `json:"messageCount"`
	At           time.Time           `json:"at"`
}

func NewTicketEvent(kind TicketEventType, t *Ticket) TicketEvent {
	return TicketEvent{
		Type:         kind,
		TicketID:     t.ID,
		Workspace:    t.Workspace,
		AssignedTo:   t.AssignedTo,
		Status:       t.Status,
		MessageCount: len(t.Messages),
		At:           time.Now(),
	}
}

// Ticket returns the visibility-relevant part of the ticket the event describes.
func (e TicketEvent) Ticket() *Ticket {
	return &Ticket{ID: e.TicketID, Workspace: e.Workspace, AssignedTo: e.AssignedTo, Status: e.Status}
}
