package services

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"hubly/helpdesk-service/internal/models"
)

func TestGetSettings_DefaultsAreStable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.settingsS.GetSettings(ctx, "acme")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	second, err := f.settingsS.GetSettings(ctx, "acme")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("two reads differ:\n%+v\n%+v", first, second)
	}
	if first.HeaderColor != "#33475B" || first.MissedChatTimeout().Hours() != 12 {
		t.Errorf("unexpected defaults: %+v", first)
	}

	blank, _ := f.settingsS.GetSettings(ctx, "  ")
	if blank.Workspace != models.DefaultWorkspace {
		t.Errorf("blank workspace resolved to %q", blank.Workspace)
	}
}

func TestUpdateSettings_PatchesOnlyGivenFields(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	admin := f.registerAdmin("admin@acme.io", "acme")

	before, _ := f.settingsS.GetSettings(ctx, "acme")

	color := "#112233"
	minutes := "30"
	after, err := f.settingsS.UpdateSettings(ctx, admin, "", models.SettingsPatch{
		HeaderColor:     &color,
		MissedChatTimer: &models.MissedChatTimerPatch{Minutes: &minutes},
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	want := *before
	want.HeaderColor = color
	want.MissedChatTimer.Minutes = minutes
	want.UpdatedAt = after.UpdatedAt
	if !reflect.DeepEqual(*after, want) {
		t.Errorf("settings after patch:\n got %+v\nwant %+v", *after, want)
	}

	reread, _ := f.settingsS.GetSettings(ctx, "acme")
	if !reflect.DeepEqual(reread, after) {
		t.Error("patch was not persisted")
	}
}

func TestUpdateSettings_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	admin := f.registerAdmin("admin@acme.io", "acme")
	member := f.createMember(admin, "Moe")

	color := "blue"
	fraction, negative := "1.5", "-3"
	tests := []struct {
		name      string
		account   *models.Account
		workspace string
		patch     models.SettingsPatch
		kind      error
	}{
		{"foreign workspace", admin, "other", models.SettingsPatch{}, models.ErrForbidden},
		{"member", member, "", models.SettingsPatch{}, models.ErrForbidden},
		{"bad color", admin, "acme", models.SettingsPatch{HeaderColor: &color}, models.ErrValidation},
		{"bad timer", admin, "acme", models.SettingsPatch{MissedChatTimer: &models.MissedChatTimerPatch{Hours: &color}}, models.ErrValidation},
		{"fractional timer", admin, "acme", models.SettingsPatch{MissedChatTimer: &models.MissedChatTimerPatch{Minutes: &fraction}}, models.ErrValidation},
		{"negative timer", admin, "acme", models.SettingsPatch{MissedChatTimer: &models.MissedChatTimerPatch{Seconds: &negative}}, models.ErrValidation},
		{"half custom response", admin, "acme", models.SettingsPatch{CustomResponses: []models.CustomResponse{{Trigger: "hi"}}}, models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.settingsS.UpdateSettings(ctx, tt.account, tt.workspace, tt.patch); !errors.Is(err, tt.kind) {
				t.Errorf("UpdateSettings() error = %v, want %v", err, tt.kind)
			}
		})
	}
}

func TestWidgetQRCode(t *testing.T) {
	f := newFixture()

	if got := f.settingsS.WidgetURL("acme co"); got != "http://widget.local/chat?workspace=acme+co" {
		t.Errorf("WidgetURL() = %q", got)
	}

	png, err := f.settingsS.WidgetQRCode("acme")
	if err != nil {
		t.Fatalf("WidgetQRCode: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("QR code is not a PNG: % x", png[:8])
	}
}
