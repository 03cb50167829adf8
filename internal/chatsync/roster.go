package chatsync

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jpillora/backoff"

	"hubly/helpdesk-service/internal/models"
)

const (
	RosterRetries    = 3
	RosterRetryDelay = 5 * time.Second
)

type RosterSource interface {
	ListMembers(ctx context.Context) ([]models.Account, error)
}

// FetchRoster loads the team list, retrying up to RosterRetries times with a
// fixed delay. The last error is returned once the retries are spent.
func FetchRoster(ctx context.Context, src RosterSource, delay time.Duration) ([]models.Account, error) {
	b := &backoff.Backoff{Min: delay, Max: delay, Factor: 1}

	for {
		members, err := src.ListMembers(ctx)
		if err == nil {
			return members, nil
		}
		if isStatus(err, http.StatusUnauthorized) || isStatus(err, http.StatusForbidden) || int(b.Attempt()) >= RosterRetries {
			return nil, err
		}

		wait := b.Duration()
		log.Printf("[SYNC] Roster fetch failed, retrying in %s (attempt %d/%d): %v", wait, int(b.Attempt()), RosterRetries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}
