package services

import "hubly/helpdesk-service/internal/models"

// CanView is the one visibility rule for tickets: admins see their whole
// workspace, members only what is assigned to them.
func CanView(account *models.Account, ticket *models.Ticket) bool {
	if account == nil || ticket == nil {
		return false
	}
	if ticket.Workspace != account.Workspace {
		return false
	}
	if account.IsAdmin() {
		return true
	}
	return ticket.IsAssignedTo(account.ID)
}

// CanMutate additionally requires the account to be active.
func CanMutate(account *models.Account, ticket *models.Ticket) bool {
	return CanView(account, ticket) && account.IsActive
}
