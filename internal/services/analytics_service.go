package services

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
)

const week = 7 * 24 * time.Hour

// SettingsProvider yields a workspace's chat settings.
type SettingsProvider interface {
	GetSettings(ctx context.Context, workspace string) (*models.ChatbotSettings, error)
}

type TicketLister interface {
	List(ctx context.Context, filter models.TicketFilter, skip, limit int64) ([]models.Ticket, error)
}

type AnalyticsService struct {
	tickets  TicketLister
	accounts AccountLookup
	settings SettingsProvider
	now      func() time.Time
}

func NewAnalyticsService(tickets TicketLister, accounts AccountLookup, settings SettingsProvider) *AnalyticsService {
	return &AnalyticsService{tickets: tickets, accounts: accounts, settings: settings, now: time.Now}
}

func (s *AnalyticsService) Dashboard(ctx context.Context, workspace string) (*models.DashboardStats, error) {
	tickets, err := s.tickets.List(ctx, models.TicketFilter{Workspace: workspace}, 0, 0)
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListByWorkspace(ctx, workspace)
	if err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{TotalTickets: len(tickets)}
	for _, a := range accounts {
		if a.Role == models.RoleMember {
			stats.TotalMembers++
		}
	}

	visitors := map[string]struct{}{}
	var resolution time.Duration
	for _, t := range tickets {
		if t.UserInfo.Email != "" {
			visitors[t.UserInfo.Email] = struct{}{}
		}
		if t.Status == models.StatusResolved {
			stats.ResolvedTickets++
			resolution += t.UpdatedAt.Sub(t.CreatedAt)
		}
	}
	stats.OpenTickets = stats.TotalTickets - stats.ResolvedTickets
	stats.ResolvedPercentage = percentage(stats.ResolvedTickets, stats.TotalTickets)
	stats.UniqueVisitors = len(visitors)
	if stats.ResolvedTickets > 0 {
		stats.AvgResolutionTime = int(math.Round(resolution.Minutes() / float64(stats.ResolvedTickets)))
	}
	return stats, nil
}

// Detailed buckets missed chats per week over the last ten weeks, oldest
// first. A chat is missed when the first staff reply came after the workspace
// timer, or no reply came and the timer has run out.
func (s *AnalyticsService) Detailed(ctx context.Context, workspace string) (*models.DetailedAnalytics, error) {
	tickets, err := s.tickets.List(ctx, models.TicketFilter{Workspace: workspace}, 0, 0)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.GetSettings(ctx, workspace)
	if err != nil {
		return nil, err
	}

	now := s.now()
	timeout := settings.MissedChatTimeout()
	weekly := emptyWeeks()

	result := &models.DetailedAnalytics{TotalChats: len(tickets)}
	for i := range tickets {
		t := &tickets[i]
		if t.Status == models.StatusResolved {
			result.ResolvedTickets++
		}
		if isMissed(t, timeout, now) {
			addToWeek(weekly, t.CreatedAt, now)
		}
	}

	result.MissedChats = weekly
	result.ResolvedPercentage = percentage(result.ResolvedTickets, result.TotalChats)
	result.AvgReplyTime = averageReplySeconds(tickets)
	return result, nil
}

func (s *AnalyticsService) Member(ctx context.Context, workspace string, memberID primitive.ObjectID) (*models.MemberAnalytics, error) {
	member, err := s.accounts.FindByID(ctx, memberID)
	if err != nil {
		if isNotFound(err) {
			return nil, models.NotFound("member not found")
		}
		return nil, err
	}
	if member.Workspace != workspace {
		return nil, models.NotFound("member not found")
	}

	tickets, err := s.tickets.List(ctx, models.TicketFilter{Workspace: workspace, AssignedTo: &memberID}, 0, 0)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &models.MemberAnalytics{
		MemberID:     memberID,
		TotalTickets: len(tickets),
		WeeklyData:   emptyWeeks(),
	}
	for _, t := range tickets {
		if t.Status == models.StatusResolved {
			result.ResolvedTickets++
		}
		addToWeek(result.WeeklyData, t.CreatedAt, now)
	}
	result.ResolvedPercentage = percentage(result.ResolvedTickets, result.TotalTickets)
	return result, nil
}

// ExportXLSX writes every ticket of the workspace plus the detailed summary
// into a spreadsheet.
func (s *AnalyticsService) ExportXLSX(ctx context.Context, workspace string) (*bytes.Buffer, error) {
	tickets, err := s.tickets.List(ctx, models.TicketFilter{Workspace: workspace}, 0, 0)
	if err != nil {
		return nil, err
	}
	summary, err := s.Detailed(ctx, workspace)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const ticketsSheet = "Tickets"
	if err := f.SetSheetName("Sheet1", ticketsSheet); err != nil {
		return nil, err
	}

	headers := []string{"Ticket ID", "Created", "Status", "Assigned To", "Visitor", "Email", "Phone", "Messages", "First Message"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(ticketsSheet, cell, header)
	}

	for i, t := range tickets {
		row := i + 2
		assigned := ""
		if t.AssignedTo != nil {
			assigned = t.AssignedTo.Hex()
		}
		f.SetCellValue(ticketsSheet, fmt.Sprintf("A%d", row), t.ID.Hex())
		f.SetCellValue(ticketsSheet, fmt.Sprintf("B%d", row), t.CreatedAt.Format("02.01.2006 15:04"))
		f.SetCellValue(ticketsSheet, fmt.Sprintf("C%d", row), string(t.Status))
		f.SetCellValue(ticketsSheet, fmt.Sprintf("D%d", row), assigned)
		f.SetCellValue(ticketsSheet, fmt.Sprintf("E%d", row), t.UserInfo.Name)
		f.SetCellValue(ticketsSheet, fmt.Sprintf("F%d", row), t.UserInfo.Email)
		f.SetCellValue(ticketsSheet, fmt.Sprintf("G%d", row), t.UserInfo.Phone)
		f.SetCellValue(ticketsSheet, fmt.Sprintf("H%d", row), len(t.Messages))
		f.SetCellValue(ticketsSheet, fmt.Sprintf("I%d", row), t.FirstMessage)
	}

	const summarySheet = "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	rows := [][]interface{}{
		{"Total chats", summary.TotalChats},
		{"Resolved tickets", summary.ResolvedTickets},
		{"Resolved %", summary.ResolvedPercentage},
		{"Average reply time (s)", summary.AvgReplyTime},
	}
	for _, p := range summary.MissedChats {
		rows = append(rows, []interface{}{fmt.Sprintf("Missed chats, week %d", p.Week), p.Value})
	}
	for i, r := range rows {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), r[0])
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), r[1])
	}

	return f.WriteToBuffer()
}

func isMissed(t *models.Ticket, timeout time.Duration, now time.Time) bool {
	if reply := t.FirstStaffReply(); reply != nil {
		return reply.Timestamp.Sub(t.CreatedAt) > timeout
	}
	return now.Sub(t.CreatedAt) > timeout
}

// averageReplySeconds averages the gap between a visitor message and the
// staff message right after it.
func averageReplySeconds(tickets []models.Ticket) int {
	var total time.Duration
	var n int
	for _, t := range tickets {
		for i := 1; i < len(t.Messages); i++ {
			prev, cur := t.Messages[i-1], t.Messages[i]
			if prev.Sender == models.SenderUser && cur.Sender.IsStaff() {
				total += cur.Timestamp.Sub(prev.Timestamp)
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(total.Seconds() / float64(n)))
}

func emptyWeeks() []models.WeeklyPoint {
	weeks := make([]models.WeeklyPoint, models.AnalyticsWeeks)
	for i := range weeks {
		weeks[i].Week = i + 1
	}
	return weeks
}

// addToWeek counts at into its bucket; the last bucket is the current week.
func addToWeek(weeks []models.WeeklyPoint, at, now time.Time) {
	age := now.Sub(at)
	if age < 0 {
		age = 0
	}
	ago := int(age / week)
	if ago >= len(weeks) {
		return
	}
	weeks[len(weeks)-1-ago].Value++
}

func percentage(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(whole)))
}
