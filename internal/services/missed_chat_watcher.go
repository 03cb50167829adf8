package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
)

type Mailer interface {
	Send(to []string, subject, body string) error
}

type MissedChatStore interface {
	ListMissCandidates(ctx context.Context) ([]models.Ticket, error)
	MarkMissed(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Ticket, error)
}

// MissedChatWatcher flags conversations whose visitor has waited longer than
// the workspace's missed-chat timer, and tells the responsible staff.
type MissedChatWatcher struct {
	tickets   MissedChatStore
	accounts  AccountLookup
	settings  SettingsProvider
	publisher EventPublisher
	mailer    Mailer
	interval  time.Duration
	now       func() time.Time
}

// NewMissedChatWatcher builds the watcher. mailer may be nil when SMTP is not
// configured.
func NewMissedChatWatcher(tickets MissedChatStore, accounts AccountLookup, settings SettingsProvider, publisher EventPublisher, mailer Mailer, interval time.Duration) *MissedChatWatcher {
	return &MissedChatWatcher{
		tickets:   tickets,
		accounts:  accounts,
		settings:  settings,
		publisher: publisher,
		mailer:    mailer,
		interval:  interval,
		now:       time.Now,
	}
}

func (w *MissedChatWatcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *MissedChatWatcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := w.Scan(ctx); err != nil {
				log.Printf("[CRON] Missed chat scan failed: %v", err)
			} else if n > 0 {
				log.Printf("[CRON] Flagged %d missed chats", n)
			}
		case <-ctx.Done():
			log.Println("[CRON] Stopping missed chat watcher")
			return
		}
	}
}

// Scan runs one pass and returns how many tickets it flagged.
func (w *MissedChatWatcher) Scan(ctx context.Context) (int, error) {
	candidates, err := w.tickets.ListMissCandidates(ctx)
	if err != nil {
		return 0, err
	}

	now := w.now()
	timeouts := map[string]time.Duration{}
	flagged := 0

	for i := range candidates {
		t := &candidates[i]
		last := t.LastMessage()
		if last == nil || last.Sender != models.SenderUser {
			continue
		}

		timeout, ok := timeouts[t.Workspace]
		if !ok {
			settings, err := w.settings.GetSettings(ctx, t.Workspace)
			if err != nil {
				log.Printf("[CRON] Settings for workspace %s: %v", t.Workspace, err)
				continue
			}
			timeout = settings.MissedChatTimeout()
			timeouts[t.Workspace] = timeout
		}
		if now.Sub(last.Timestamp) <= timeout {
			continue
		}

		marked, err := w.tickets.MarkMissed(ctx, t.ID, now)
		if err != nil {
			if isNotFound(err) {
				// replied to or flagged since the candidate list was read
				continue
			}
			return flagged, err
		}
		flagged++

		if w.publisher != nil {
			w.publisher.PublishTicketEvent(ctx, models.NewTicketEvent(models.EventTicketMissed, marked))
		}
		w.notify(ctx, marked)
	}

	return flagged, nil
}

func (w *MissedChatWatcher) notify(ctx context.Context, t *models.Ticket) {
	if w.mailer == nil {
		return
	}

	recipients, err := w.recipients(ctx, t)
	if err != nil {
		log.Printf("[CRON] Recipients for ticket %s: %v", t.ID.Hex(), err)
		return
	}
	if len(recipients) == 0 {
		return
	}

	visitor := t.UserInfo.Name
	if visitor == "" {
		visitor = "A visitor"
	}
	subject := "Missed chat waiting for a reply"
	body := fmt.Sprintf("%s is still waiting for an answer on ticket %s.\n\nFirst message: %s\n",
		visitor, t.ID.Hex(), t.FirstMessage)

	if err := w.mailer.Send(recipients, subject, body); err != nil {
		log.Printf("[CRON] Failed to email missed chat %s: %v", t.ID.Hex(), err)
	}
}

// recipients is the assignee, or every active admin of the workspace while
// the ticket is unassigned.
func (w *MissedChatWatcher) recipients(ctx context.Context, t *models.Ticket) ([]string, error) {
	if t.AssignedTo != nil {
		account, err := w.accounts.FindByID(ctx, *t.AssignedTo)
		if err != nil {
			return nil, err
		}
		if !account.IsActive {
			return nil, nil
		}
		return []string{account.Email}, nil
	}

	accounts, err := w.accounts.ListByWorkspace(ctx, t.Workspace)
	if err != nil {
		return nil, err
	}
	var emails []string
	for _, a := range accounts {
		if a.IsAdmin() && a.IsActive && strings.TrimSpace(a.Email) != "" {
			emails = append(emails, a.Email)
		}
	}
	return emails, nil
}
