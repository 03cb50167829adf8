package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

const (
	profileCacheTTL = 5 * time.Minute
	minPasswordLen  = 6
	maxAvatarSize   = 2 << 20
)

var ErrStorageUnavailable = &models.Error{Kind: models.ErrUnavailable, Message: "avatar storage is not configured"}

var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type AccountRepository interface {
	Create(ctx context.Context, a *models.Account) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	ListByWorkspace(ctx context.Context, workspace string) ([]models.Account, error)
	CountByWorkspace(ctx context.Context, workspace string) (int64, error)
	Update(ctx context.Context, a *models.Account) error
	SetLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type TokenIssuer interface {
	GenerateToken(account *models.Account) (string, error)
}

// Cache is a JSON key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type ObjectStore interface {
	PutObject(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

type AuthService struct {
	accounts AccountRepository
	tokens   TokenIssuer
	cache    Cache
	avatars  ObjectStore
	now      func() time.Time
}

// NewAuthService builds the identity service. avatars may be nil when object
// storage is not configured.
func NewAuthService(accounts AccountRepository, tokens TokenIssuer, cache Cache, avatars ObjectStore) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		cache:    cache,
		avatars:  avatars,
		now:      time.Now,
	}
}

func profileCacheKey(id primitive.ObjectID) string {
	return fmt.Sprintf("account:%s", id.Hex())
}

func (s *AuthService) Register(ctx context.Context, input models.RegisterInput) (*models.Session, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Role == models.RoleMember {
		return nil, models.Validation("members are created by an admin of the workspace")
	}

	email := models.NormalizeEmail(input.Email)
	if err := ensureEmailFree(ctx, s.accounts, email, primitive.NilObjectID); err != nil {
		return nil, err
	}

	workspace := strings.TrimSpace(input.Workspace)
	if workspace == "" {
		workspace = models.DefaultWorkspace
	}

	now := s.now()
	account := &models.Account{
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     email,
		Role:      models.RoleAdmin,
		Workspace: workspace,
		IsActive:  true,
		LastLogin: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := account.HashPassword(input.Password); err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	return s.session(account)
}

// Login checks the password before the active flag, so a deactivated account
// looks like any other bad login to someone without the password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	account, err := s.accounts.FindByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return nil, models.Unauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := account.ComparePassword(password); err != nil {
		log.Printf("Password comparison failed for user %s", account.ID.Hex())
		return nil, models.Unauthorized("invalid credentials")
	}
	if !account.IsActive {
		return nil, models.Unauthorized("account deactivated")
	}

	now := s.now()
	if err := s.accounts.SetLastLogin(ctx, account.ID, now); err != nil {
		return nil, err
	}
	account.LastLogin = &now
	s.invalidate(ctx, account.ID)

	return s.session(account)
}

func (s *AuthService) ChangePassword(ctx context.Context, id primitive.ObjectID, change models.PasswordChange) error {
	if err := utils.ValidateStruct(change); err != nil {
		return err
	}
	if change.NewPassword == change.CurrentPassword {
		return models.Validation("new password must differ from the current one")
	}
	if len(change.NewPassword) < minPasswordLen {
		return models.Validation("password must be at least %d characters", minPasswordLen)
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := account.ComparePassword(change.CurrentPassword); err != nil {
		return models.Unauthorized("current password is incorrect")
	}
	if err := account.HashPassword(change.NewPassword); err != nil {
		return err
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// GetProfile serves from the cache when possible. Cached copies never hold
// the password hash.
func (s *AuthService) GetProfile(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	key := profileCacheKey(id)

	var cached models.Account
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, account, profileCacheTTL); err != nil {
		log.Printf("Failed to cache profile %s: %v", id.Hex(), err)
	}

	account.Password = ""
	return account, nil
}

// ResolveAccount is the lookup used by the access-control gate.
func (s *AuthService) ResolveAccount(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return s.GetProfile(ctx, id)
}

func (s *AuthService) UpdateProfile(ctx context.Context, id primitive.ObjectID, patch models.ProfileUpdate) (*models.Account, error) {
	if err := utils.ValidateStruct(patch); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.FirstName != nil {
		account.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		account.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.Phone != nil {
		account.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Email != nil {
		email := models.NormalizeEmail(*patch.Email)
		if err := ensureEmailFree(ctx, s.accounts, email, id); err != nil {
			return nil, err
		}
		account.Email = email
	}
	if account.FirstName == "" {
		return nil, models.Validation("firstName field is required")
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	account.Password = ""
	return account, nil
}

func (s *AuthService) UploadAvatar(ctx context.Context, id primitive.ObjectID, upload models.AvatarUpload) (*models.Account, error) {
	if s.avatars == nil {
		return nil, ErrStorageUnavailable
	}

	ext, ok := avatarTypes[upload.ContentType]
	if !ok {
		return nil, models.Validation("avatar must be a png, jpeg, gif or webp image")
	}
	if upload.Size <= 0 || upload.Size > maxAvatarSize {
		return nil, models.Validation("avatar must be at most 2 MiB")
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("avatars/%s/%s%s", id.Hex(), uuid.NewString(), ext)
	url, err := s.avatars.PutObject(ctx, name, upload.Reader, upload.Size, upload.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store avatar: %w", err)
	}

	account.ProfileImage = url
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	account.Password = ""
	return account, nil
}

// ensureEmailFree fails with a conflict when email belongs to anyone but owner.
func ensureEmailFree(ctx context.Context, accounts AccountRepository, email string, owner primitive.ObjectID) error {
	existing, err := accounts.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != owner {
		return models.Conflict("email already in use")
	}
	return nil
}

func (s *AuthService) invalidate(ctx context.Context, id primitive.ObjectID) {
	if err := s.cache.Delete(ctx, profileCacheKey(id)); err != nil {
		log.Printf("Failed to drop cached profile %s: %v", id.Hex(), err)
	}
}

func (s *AuthService) session(account *models.Account) (*models.Session, error) {
	token, err := s.tokens.GenerateToken(account)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	account.Password = ""
	return &models.Session{Token: token, Account: account}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
