package models

import (
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const DefaultWorkspace = "default"

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleMember:
		return true
	}
	return false
}

type Account struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty"  json:"id"`
	FirstName    string              `bson:"first_name"     json:"firstName"`
	LastName     string              `bson:"last_name"      json:"lastName"`
	Email        string              `bson:"email"          json:"email"`
	Password     string              `bson:"password"       json:"-"`
	Phone        string              `bson:"phone"          json:"phone"`
	ProfileImage string              `bson:"profile_image"  json:"profileImage"`
	Role         Role                `bson:"role"           json:"role"`
	Workspace    string              `bson:"workspace"      json:"workspace"`
	IsActive     bool                `bson:"is_active"      json:"isActive"`
	CreatedBy    *primitive.ObjectID `bson:"created_by"     json:"createdBy"`
	LastLogin    *time.Time          `bson:"last_login"     json:"lastLogin,omitempty"`
	CreatedAt    time.Time           `bson:"created_at"     json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updated_at"     json:"updatedAt"`
}

func (a *Account) HashPassword(plain string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.Password = string(hashed)
	return nil
}

func (a *Account) ComparePassword(plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(plain))
}

func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }

// CreatedByAccount reports whether other provisioned this account.
func (a *Account) CreatedByAccount(other primitive.ObjectID) bool {
	return a.CreatedBy != nil && *a.CreatedBy == other
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type ProfileUpdate struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone"`
}

type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"  validate:"required"`
	Email     string `json:"email"     validate:"required,email"`
	Password  string `json:"password"  validate:"required,min=6"`
	Role      Role   `json:"role"      validate:"omitempty,oneof=admin member"`
	Workspace string `json:"workspace"`
}

type MemberInput struct {
	Name     string `json:"name"     validate:"required"`
	LastName string `json:"lastName"`
	Email    string `json:"email"    validate:"required,email"`
	Role     Role   `json:"role"     validate:"omitempty,oneof=admin member"`
}

type MemberUpdate struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"    validate:"omitempty,email"`
	Role     *Role   `json:"role"     validate:"omitempty,oneof=admin member"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

// Session is what register and login hand back to the client.
type Session struct {
	Token   string   `json:"token"`
	Account *Account `json:"user"`
}

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"     validate:"required"`
}

// AvatarUpload is an image file received for an account's profile picture.
type AvatarUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
	Filename    string
}
