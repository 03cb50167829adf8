package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"hubly/helpdesk-service/internal/models"
)

func TestRegister_NeverExposesPassword(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, err := f.auth.Register(ctx, models.RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "  Ada@Example.com ",
		Password:  "secret1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if session.Token == "" {
		t.Error("expected a token")
	}
	if session.Account.Password != "" {
		t.Error("returned account carries the password hash")
	}
	raw, _ := json.Marshal(session)
	if bytes.Contains(raw, []byte("password")) {
		t.Errorf("serialized session mentions password: %s", raw)
	}

	stored, _ := f.accounts.FindByEmail(ctx, "ada@example.com")
	if stored == nil {
		t.Fatal("email was not normalized on storage")
	}
	if stored.Role != models.RoleAdmin || stored.Workspace != models.DefaultWorkspace || !stored.IsActive {
		t.Errorf("unexpected defaults: role=%s workspace=%s active=%v", stored.Role, stored.Workspace, stored.IsActive)
	}
	if stored.ComparePassword("secret1") != nil {
		t.Error("stored hash does not match the password")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.auth.Register(ctx, models.RegisterInput{FirstName: "A", LastName: "One", Email: "dup@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}

	_, err = f.auth.Register(ctx, models.RegisterInput{FirstName: "B", LastName: "Two", Email: "DUP@example.com", Password: "other12"})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("second Register error = %v, want conflict", err)
	}

	stored, err := f.accounts.FindByID(ctx, first.Account.ID)
	if err != nil {
		t.Fatalf("first account vanished: %v", err)
	}
	if stored.FirstName != "A" || stored.ComparePassword("secret1") != nil {
		t.Error("first account was modified by the failed registration")
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name  string
		input models.RegisterInput
	}{
		{"missing first name", models.RegisterInput{LastName: "B", Email: "a@b.co", Password: "secret1"}},
		{"missing last name", models.RegisterInput{FirstName: "A", Email: "a@b.co", Password: "secret1"}},
		{"malformed email", models.RegisterInput{FirstName: "A", Email: "nope", Password: "secret1"}},
		{"short password", models.RegisterInput{FirstName: "A", Email: "a@b.co", Password: "12345"}},
		{"member self sign-up", models.RegisterInput{FirstName: "A", Email: "a@b.co", Password: "secret1", Role: models.RoleMember}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.auth.Register(context.Background(), tt.input); !errors.Is(err, models.ErrValidation) {
				t.Errorf("Register() error = %v, want validation", err)
			}
		})
	}
}

func TestLogin_WrongThenRightPassword(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	admin := f.registerAdmin("login@example.com", "")

	before, _ := f.accounts.FindByID(ctx, admin.ID)
	f.auth.now = func() time.Time { return before.LastLogin.Add(time.Minute) }

	if _, err := f.auth.Login(ctx, "login@example.com", "wrong-pass"); !errors.Is(err, models.ErrAuth) {
		t.Fatalf("wrong password error = %v, want auth", err)
	}
	_, err := f.auth.Login(ctx, "ghost@example.com", "whatever")
	if models.ErrorMessage(err) != "invalid credentials" {
		t.Error("unknown email must look like a wrong password")
	}

	session, err := f.auth.Login(ctx, "LOGIN@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	after, _ := f.accounts.FindByID(ctx, admin.ID)
	if !after.LastLogin.After(*before.LastLogin) {
		t.Errorf("lastLogin not advanced: before %v after %v", before.LastLogin, after.LastLogin)
	}
	if session.Account.Password != "" {
		t.Error("login response carries the password hash")
	}
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	admin := f.registerAdmin("off@example.com", "")

	stored, _ := f.accounts.FindByID(ctx, admin.ID)
	stored.IsActive = false
	_ = f.accounts.Update(ctx, stored)

	_, err := f.auth.Login(ctx, "off@example.com", "bad-password")
	if models.ErrorMessage(err) != "invalid credentials" {
		t.Errorf("bad password on inactive account = %q, want invalid credentials", models.ErrorMessage(err))
	}

	_, err = f.auth.Login(ctx, "off@example.com", "secret1")
	if !errors.Is(err, models.ErrAuth) || models.ErrorMessage(err) != "account deactivated" {
		t.Errorf("inactive login error = %v, want account deactivated", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	admin := f.registerAdmin("pw@example.com", "")

	tests := []struct {
		name   string
		change models.PasswordChange
		kind   error
	}{
		{"same as current", models.PasswordChange{CurrentPassword: "secret1", NewPassword: "secret1"}, models.ErrValidation},
		{"too short", models.PasswordChange{CurrentPassword: "secret1", NewPassword: "abc"}, models.ErrValidation},
		{"wrong current", models.PasswordChange{CurrentPassword: "nope123", NewPassword: "brandnew"}, models.ErrAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.auth.ChangePassword(ctx, admin.ID, tt.change); !errors.Is(err, tt.kind) {
				t.Errorf("ChangePassword() error = %v, want %v", err, tt.kind)
			}
		})
	}

	if err := f.auth.ChangePassword(ctx, admin.ID, models.PasswordChange{CurrentPassword: "secret1", NewPassword: "brandnew"}); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := f.auth.Login(ctx, "pw@example.com", "brandnew"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestGetProfile_CachesAndInvalidates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	admin := f.registerAdmin("cache@example.com", "")
	key := profileCacheKey(admin.ID)

	profile, err := f.auth.GetProfile(ctx, admin.ID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.Password != "" {
		t.Error("profile carries the password hash")
	}
	if !f.cache.has(key) {
		t.Fatal("profile was not cached")
	}

	name := "Grace"
	if _, err := f.auth.UpdateProfile(ctx, admin.ID, models.ProfileUpdate{FirstName: &name}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if f.cache.has(key) {
		t.Error("cache entry survived an account mutation")
	}

	profile, _ = f.auth.GetProfile(ctx, admin.ID)
	if profile.FirstName != "Grace" {
		t.Errorf("FirstName = %q, want Grace", profile.FirstName)
	}
}

func TestUpdateProfile_EmailConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.registerAdmin("taken@example.com", "")
	admin := f.registerAdmin("me@example.com", "")

	email := "Taken@example.com"
	if _, err := f.auth.UpdateProfile(ctx, admin.ID, models.ProfileUpdate{Email: &email}); !errors.Is(err, models.ErrConflict) {
		t.Errorf("UpdateProfile() error = %v, want conflict", err)
	}

	own := "ME@example.com"
	if _, err := f.auth.UpdateProfile(ctx, admin.ID, models.ProfileUpdate{Email: &own}); err != nil {
		t.Errorf("keeping own email: %v", err)
	}
}

func TestUploadAvatar(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	admin := f.registerAdmin("avatar@example.com", "")

	upload := models.AvatarUpload{Reader: strings.NewReader("png"), Size: 3, ContentType: "image/png", Filename: "me.png"}
	if _, err := f.auth.UploadAvatar(ctx, admin.ID, upload); !errors.Is(err, models.ErrUnavailable) {
		t.Fatalf("without storage error = %v, want unavailable", err)
	}

	store := &fakeObjectStore{}
	f.auth.avatars = store

	bad := upload
	bad.ContentType = "application/pdf"
	if _, err := f.auth.UploadAvatar(ctx, admin.ID, bad); !errors.Is(err, models.ErrValidation) {
		t.Errorf("pdf upload error = %v, want validation", err)
	}
	big := upload
	big.Size = maxAvatarSize + 1
	if _, err := f.auth.UploadAvatar(ctx, admin.ID, big); !errors.Is(err, models.ErrValidation) {
		t.Errorf("oversized upload error = %v, want validation", err)
	}

	account, err := f.auth.UploadAvatar(ctx, admin.ID, upload)
	if err != nil {
		t.Fatalf("UploadAvatar: %v", err)
	}
	if len(store.names) != 1 || !strings.HasPrefix(store.names[0], "avatars/"+admin.ID.Hex()+"/") || !strings.HasSuffix(store.names[0], ".png") {
		t.Errorf("object names = %v", store.names)
	}
	if account.ProfileImage == "" {
		t.Error("profileImage not set")
	}
}
