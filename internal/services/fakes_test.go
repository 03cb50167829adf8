package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
	"hubly/helpdesk-service/internal/utils"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[primitive.ObjectID]models.Account{}}
}

func (m *memAccounts) Create(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == a.Email {
			return models.Conflict("email already in use")
		}
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	m.byID[a.ID] = *a
	return nil
}

func (m *memAccounts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, models.NotFound("user not found")
	}
	return &a, nil
}

func (m *memAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			a := a
			return &a, nil
		}
	}
	return nil, models.NotFound("user not found")
}

func (m *memAccounts) ListByWorkspace(_ context.Context, workspace string) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Account, 0)
	for _, a := range m.byID {
		if a.Workspace == workspace {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memAccounts) CountByWorkspace(ctx context.Context, workspace string) (int64, error) {
	list, _ := m.ListByWorkspace(ctx, workspace)
	return int64(len(list)), nil
}

func (m *memAccounts) Update(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[a.ID]; !ok {
		return models.NotFound("user not found")
	}
	for id, existing := range m.byID {
		if id != a.ID && existing.Email == a.Email {
			return models.Conflict("email already in use")
		}
	}
	m.byID[a.ID] = *a
	return nil
}

func (m *memAccounts) SetLastLogin(_ context.Context, id primitive.ObjectID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return models.NotFound("user not found")
	}
	a.LastLogin = &at
	m.byID[id] = a
	return nil
}

func (m *memAccounts) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return models.NotFound("user not found")
	}
	delete(m.byID, id)
	return nil
}

type memTickets struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]*models.Ticket
}

func newMemTickets() *memTickets {
	return &memTickets{byID: map[primitive.ObjectID]*models.Ticket{}}
}

func copyTicket(t *models.Ticket) *models.Ticket {
	c := *t
	c.Messages = append([]models.Message(nil), t.Messages...)
	return &c
}

func (m *memTickets) Create(_ context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	m.byID[t.ID] = copyTicket(t)
	return nil
}

func (m *memTickets) FindByID(_ context.Context, id primitive.ObjectID) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, models.NotFound("ticket not found")
	}
	return copyTicket(t), nil
}

func (m *memTickets) update(id primitive.ObjectID, fn func(t *models.Ticket)) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, models.NotFound("ticket not found")
	}
	fn(t)
	return copyTicket(t), nil
}

func (m *memTickets) PushMessage(_ context.Context, id primitive.ObjectID, msg models.Message) (*models.Ticket, error) {
	return m.update(id, func(t *models.Ticket) {
		t.Messages = append(t.Messages, msg)
		t.UpdatedAt = msg.Timestamp
		if msg.Sender.IsStaff() {
			t.MissedAt = nil
		}
	})
}

func (m *memTickets) SetStatus(_ context.Context, id primitive.ObjectID, status models.TicketStatus) (*models.Ticket, error) {
	return m.update(id, func(t *models.Ticket) { t.Status = status })
}

func (m *memTickets) SetAssignee(_ context.Context, id, assignee primitive.ObjectID) (*models.Ticket, error) {
	return m.update(id, func(t *models.Ticket) { t.AssignedTo = &assignee })
}

func (m *memTickets) SetContactInfo(_ context.Context, id primitive.ObjectID, info models.ContactInfo) (*models.Ticket, error) {
	return m.update(id, func(t *models.Ticket) {
		t.UserInfo = info
		t.Status = models.StatusUnresolved
	})
}

func (m *memTickets) MarkMissed(_ context.Context, id primitive.ObjectID, at time.Time) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.MissedAt != nil {
		return nil, models.NotFound("ticket not found")
	}
	t.MissedAt = &at
	return copyTicket(t), nil
}

func matches(t *models.Ticket, f models.TicketFilter) bool {
	if f.Workspace != "" && t.Workspace != f.Workspace {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.AssignedTo != nil && !t.IsAssignedTo(*f.AssignedTo) {
		return false
	}
	if f.ExcludeID != nil && t.ID == *f.ExcludeID {
		return false
	}
	return true
}

func (m *memTickets) List(_ context.Context, f models.TicketFilter, skip, limit int64) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]models.Ticket, 0)
	for _, t := range m.byID {
		if matches(t, f) {
			all = append(all, *copyTicket(t))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if skip >= int64(len(all)) {
		return []models.Ticket{}, nil
	}
	all = all[skip:]
	if limit > 0 && limit < int64(len(all)) {
		all = all[:limit]
	}
	return all, nil
}

func (m *memTickets) Count(ctx context.Context, f models.TicketFilter) (int64, error) {
	all, _ := m.List(ctx, f, 0, 0)
	return int64(len(all)), nil
}

func (m *memTickets) ListMissCandidates(ctx context.Context) ([]models.Ticket, error) {
	all, _ := m.List(ctx, models.TicketFilter{Status: models.StatusUnresolved}, 0, 0)
	out := make([]models.Ticket, 0)
	for _, t := range all {
		if t.MissedAt == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTickets) ReassignAll(_ context.Context, from, to primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, t := range m.byID {
		if t.IsAssignedTo(from) {
			to := to
			t.AssignedTo = &to
			n++
		}
	}
	return n, nil
}

type memSettings struct {
	mu   sync.Mutex
	docs map[string]models.ChatbotSettings
}

func newMemSettings() *memSettings {
	return &memSettings{docs: map[string]models.ChatbotSettings{}}
}

func (m *memSettings) GetOrCreate(_ context.Context, defaults models.ChatbotSettings) (*models.ChatbotSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[defaults.Workspace]
	if !ok {
		defaults.ID = primitive.NewObjectID()
		m.docs[defaults.Workspace] = defaults
		doc = defaults
	}
	return &doc, nil
}

// Patch applies dotted paths through a JSON round trip keyed by bson names.
func (m *memSettings) Patch(_ context.Context, workspace string, fields map[string]interface{}) (*models.ChatbotSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[workspace]
	if !ok {
		return nil, models.NotFound("chatbot settings not found")
	}
	for path, v := range fields {
		applySettingsField(&doc, path, v)
	}
	m.docs[workspace] = doc
	return &doc, nil
}

func applySettingsField(doc *models.ChatbotSettings, path string, v interface{}) {
	str := func() string { return v.(string) }
	switch path {
	case "header_color":
		doc.HeaderColor = str()
	case "background_color":
		doc.BackgroundColor = str()
	case "welcome_message":
		doc.WelcomeMessage = str()
	case "custom_messages":
		doc.CustomMessages = v.([]string)
	case "intro_form.name":
		doc.IntroForm.Name = str()
	case "intro_form.phone":
		doc.IntroForm.Phone = str()
	case "intro_form.email":
		doc.IntroForm.Email = str()
	case "missed_chat_timer.hours":
		doc.MissedChatTimer.Hours = str()
	case "missed_chat_timer.minutes":
		doc.MissedChatTimer.Minutes = str()
	case "missed_chat_timer.seconds":
		doc.MissedChatTimer.Seconds = str()
	case "is_enabled":
		doc.IsEnabled = v.(bool)
	case "auto_reply":
		doc.AutoReply = v.(bool)
	case "auto_reply_delay":
		doc.AutoReplyDelay = v.(int)
	case "custom_responses":
		doc.CustomResponses = v.([]models.CustomResponse)
	}
}

// memCache stores JSON like the redis wrapper does, so hidden fields drop out.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return utils.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.TicketEvent
}

func (p *recordingPublisher) PublishTicketEvent(_ context.Context, e models.TicketEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []models.TicketEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.TicketEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeTokens struct{}

func (fakeTokens) GenerateToken(a *models.Account) (string, error) {
	return "token-" + a.ID.Hex(), nil
}

type fakeObjectStore struct {
	names []string
	fail  bool
}

func (s *fakeObjectStore) PutObject(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if s.fail {
		return "", errors.New("bucket unreachable")
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.names = append(s.names, name)
	return "http://files.local/avatars/" + name, nil
}

type sentMail struct {
	to      []string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentMail
}

func (m *fakeMailer) Send(to []string, subject, body string) error {
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

// fixture wires every service over the same in-memory stores.
type fixture struct {
	accounts  *memAccounts
	tickets   *memTickets
	settings  *memSettings
	cache     *memCache
	publisher *recordingPublisher

	auth      *AuthService
	members   *MemberService
	ticketSvc *TicketService
	settingsS *SettingsService
}

func newFixture() *fixture {
	f := &fixture{
		accounts:  newMemAccounts(),
		tickets:   newMemTickets(),
		settings:  newMemSettings(),
		cache:     newMemCache(),
		publisher: &recordingPublisher{},
	}
	f.auth = NewAuthService(f.accounts, fakeTokens{}, f.cache, nil)
	f.members = NewMemberService(f.accounts, f.tickets, f.cache)
	f.ticketSvc = NewTicketService(f.tickets, f.accounts, f.publisher)
	f.settingsS = NewSettingsService(f.settings, "http://widget.local/chat")
	return f
}

func (f *fixture) registerAdmin(email, workspace string) *models.Account {
	session, err := f.auth.Register(context.Background(), models.RegisterInput{
		FirstName: "Admin",
		LastName:  "Owner",
		Email:     email,
		Password:  "secret1",
		Workspace: workspace,
	})
	if err != nil {
		panic(err)
	}
	return session.Account
}

func (f *fixture) createMember(admin *models.Account, name string) *models.Account {
	member, err := f.members.CreateMember(context.Background(), admin, models.MemberInput{
		Name:  name,
		Email: strings.ToLower(name) + "@example.com",
	})
	if err != nil {
		panic(err)
	}
	return member
}

func (f *fixture) newTicket(workspace, text string) *models.Ticket {
	ticket, err := f.ticketSvc.CreateTicket(context.Background(), models.NewTicket{
		FirstMessage:  text,
		Workspace:     workspace,
		BindWorkspace: workspace != "",
	})
	if err != nil {
		panic(err)
	}
	return ticket
}
