package services

import (
	"context"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

// TicketReassigner moves tickets off an account that is going away.
type TicketReassigner interface {
	ReassignAll(ctx context.Context, from, to primitive.ObjectID) (int64, error)
}

type MemberService struct {
	accounts AccountRepository
	tickets  TicketReassigner
	cache    Cache
	now      func() time.Time
}

func NewMemberService(accounts AccountRepository, tickets TicketReassigner, cache Cache) *MemberService {
	return &MemberService{accounts: accounts, tickets: tickets, cache: cache, now: time.Now}
}

// ListMembers returns the requester's team, oldest first.
func (s *MemberService) ListMembers(ctx context.Context, requester *models.Account) ([]models.Account, error) {
	accounts, err := s.accounts.ListByWorkspace(ctx, requester.Workspace)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i].Password = ""
	}
	return accounts, nil
}

// CreateMember provisions a teammate in the admin's workspace. The new account
// starts with the admin's current password.
func (s *MemberService) CreateMember(ctx context.Context, admin *models.Account, input models.MemberInput) (*models.Account, error) {
	if !admin.IsAdmin() {
		return nil, models.Forbidden("admin privileges required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(input.Email)
	if err := ensureEmailFree(ctx, s.accounts, email, primitive.NilObjectID); err != nil {
		return nil, err
	}

	// the gate hands out cached profiles without the hash
	creator, err := s.accounts.FindByID(ctx, admin.ID)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = models.RoleMember
	}

	now := s.now()
	account := &models.Account{
		FirstName: strings.TrimSpace(input.Name),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     email,
		Password:  creator.Password,
		Role:      role,
		Workspace: creator.Workspace,
		IsActive:  true,
		CreatedBy: &creator.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	account.Password = ""
	return account, nil
}

func (s *MemberService) UpdateMember(ctx context.Context, admin *models.Account, id primitive.ObjectID, patch models.MemberUpdate) (*models.Account, error) {
	if err := utils.ValidateStruct(patch); err != nil {
		return nil, err
	}

	account, err := s.ownedMember(ctx, admin, id, "update")
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, models.Validation("name field is required")
		}
		account.FirstName = name
	}
	if patch.Email != nil {
		email := models.NormalizeEmail(*patch.Email)
		if err := ensureEmailFree(ctx, s.accounts, email, id); err != nil {
			return nil, err
		}
		account.Email = email
	}
	if patch.Role != nil {
		account.Role = *patch.Role
	}
	if patch.Password != nil {
		if err := account.HashPassword(*patch.Password); err != nil {
			return nil, err
		}
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	account.Password = ""
	return account, nil
}

// DeleteMember hands the member's tickets to the admin before removing the
// account, and reports how many tickets moved.
func (s *MemberService) DeleteMember(ctx context.Context, admin *models.Account, id primitive.ObjectID) (int64, error) {
	if _, err := s.ownedMember(ctx, admin, id, "delete"); err != nil {
		return 0, err
	}

	moved, err := s.tickets.ReassignAll(ctx, id, admin.ID)
	if err != nil {
		return 0, err
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		return moved, err
	}
	s.invalidate(ctx, id)

	log.Printf("Deleted member %s, %d tickets reassigned to %s", id.Hex(), moved, admin.ID.Hex())
	return moved, nil
}

func (s *MemberService) ownedMember(ctx context.Context, admin *models.Account, id primitive.ObjectID, action string) (*models.Account, error) {
	if !admin.IsAdmin() {
		return nil, models.Forbidden("admin privileges required")
	}
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.CreatedByAccount(admin.ID) {
		return nil, models.Forbidden("you don't have permission to %s this user", action)
	}
	return account, nil
}

func (s *MemberService) invalidate(ctx context.Context, id primitive.ObjectID) {
	if err := s.cache.Delete(ctx, profileCacheKey(id)); err != nil {
		log.Printf("Failed to drop cached profile %s: %v", id.Hex(), err)
	}
}
