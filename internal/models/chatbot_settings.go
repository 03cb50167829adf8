package models

import (
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IntroForm struct {
	Name  string `bson:"name"  json:"name"`
	Phone string `bson:"phone" json:"phone"`
	Email string `bson:"email" json:"email"`
}

type MissedChatTimer struct {
	Hours   string `bson:"hours"   json:"hours"`
	Minutes string `bson:"minutes" json:"minutes"`
	Seconds string `bson:"seconds" json:"seconds"`
}

// Duration converts the timer parts. Unparseable parts count as zero.
func (t MissedChatTimer) Duration() time.Duration {
	part := func(s string) time.Duration {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0
		}
		return time.Duration(n)
	}
	return part(t.Hours)*time.Hour + part(t.Minutes)*time.Minute + part(t.Seconds)*time.Second
}

type CustomResponse struct {
	Trigger  string `bson:"trigger"  json:"trigger"  validate:"required"`
	Response string `bson:"response" json:"response" validate:"required"`
}

type ChatbotSettings struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"     json:"id"`
	Workspace       string             `bson:"workspace"         json:"workspace"`
	HeaderColor     string             `bson:"header_color"      json:"headerColor"`
	BackgroundColor string             `bson:"background_color"  json:"backgroundColor"`
	WelcomeMessage  string             `bson:"welcome_message"   json:"welcomeMessage"`
	CustomMessages  []string           `bson:"custom_messages"   json:"customMessages"`
	IntroForm       IntroForm          `bson:"intro_form"        json:"introForm"`
	MissedChatTimer MissedChatTimer    `bson:"missed_chat_timer" json:"missedChatTimer"`
	IsEnabled       bool               `bson:"is_enabled"        json:"isEnabled"`
	AutoReply       bool               `bson:"auto_reply"        json:"autoReply"`
	AutoReplyDelay  int                `bson:"auto_reply_delay"  json:"autoReplyDelay"`
	CustomResponses []CustomResponse   `bson:"custom_responses"  json:"customResponses"`
	CreatedAt       time.Time          `bson:"created_at"        json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at"        json:"updatedAt"`
}

// MissedChatTimeout is how long a visitor may wait for a reply before the
// chat counts as missed.
func (s *ChatbotSettings) MissedChatTimeout() time.Duration {
	return s.MissedChatTimer.Duration()
}

// DefaultChatbotSettings is the document materialized on the first read of a workspace.
func DefaultChatbotSettings(workspace string, now time.Time) ChatbotSettings {
	return ChatbotSettings{
		Workspace:       workspace,
		HeaderColor:     "#33475B",
		BackgroundColor: "#FFFFFF",
		WelcomeMessage:  "👋 Want to chat about Hubly? I'm a chatbot here to help you find your way.",
		CustomMessages:  []string{"How can I help you?", "Ask me anything!"},
		IntroForm: IntroForm{
			Name:  "Your name",
			Phone: "+1 (000) 000-0000",
			Email: "example@gmail.com",
		},
		MissedChatTimer: MissedChatTimer{Hours: "12", Minutes: "00", Seconds: "00"},
		IsEnabled:       true,
		AutoReply:       true,
		AutoReplyDelay:  1000,
		CustomResponses: []CustomResponse{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

type IntroFormPatch struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

type MissedChatTimerPatch struct {
	Hours   *string `json:"hours"   validate:"omitempty,number"`
	Minutes *string `json:"minutes" validate:"omitempty,number"`
	Seconds *string `json:"seconds" validate:"omitempty,number"`
}

// SettingsPatch holds the fields an admin may change; nil means untouched.
type SettingsPatch struct {
	HeaderColor     *string               `json:"headerColor"     validate:"omitempty,hexcolor"`
	BackgroundColor *string               `json:"backgroundColor" validate:"omitempty,hexcolor"`
	WelcomeMessage  *string               `json:"welcomeMessage"`
	CustomMessages  []string              `json:"customMessages"`
	IntroForm       *IntroFormPatch       `json:"introForm"`
	MissedChatTimer *MissedChatTimerPatch `json:"missedChatTimer"`
	IsEnabled       *bool                 `json:"isEnabled"`
	AutoReply       *bool                 `json:"autoReply"`
	AutoReplyDelay  *int                  `json:"autoReplyDelay"  validate:"omitempty,min=0"`
	CustomResponses []CustomResponse      `json:"customResponses" validate:"omitempty,dive"`
}

// Fields flattens the patch into dotted document paths for a partial $set.
func (p SettingsPatch) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if p.HeaderColor != nil {
		fields["header_color"] = *p.HeaderColor
	}
	if p.BackgroundColor != nil {
		fields["background_color"] = *p.BackgroundColor
	}
	if p.WelcomeMessage != nil {
		fields["welcome_message"] = *p.WelcomeMessage
	}
	if p.CustomMessages != nil {
		fields["custom_messages"] = p.CustomMessages
	}
	if f := p.IntroForm; f != nil {
		if f.Name != nil {
			fields["intro_form.name"] = *f.Name
		}
		if f.Phone != nil {
			fields["intro_form.phone"] = *f.Phone
		}
		if f.Email != nil {
			fields["intro_form.email"] = *f.Email
		}
	}
	if t := p.MissedChatTimer; t != nil {
		if t.Hours != nil {
			fields["missed_chat_timer.hours"] = *t.Hours
		}
		if t.Minutes != nil {
			fields["missed_chat_timer.minutes"] = *t.Minutes
		}
		if t.Seconds != nil {
			fields["missed_chat_timer.seconds"] = *t.Seconds
		}
	}
	if p.IsEnabled != nil {
		fields["is_enabled"] = *p.IsEnabled
	}
	if p.AutoReply != nil {
		fields["auto_reply"] = *p.AutoReply
	}
	if p.AutoReplyDelay != nil {
		fields["auto_reply_delay"] = *p.AutoReplyDelay
	}
	if p.CustomResponses != nil {
		fields["custom_responses"] = p.CustomResponses
	}
	return fields
}
