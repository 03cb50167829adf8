package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const AnalyticsWeeks = 10

type WeeklyPoint struct {
	Week  int `json:"week"`
	Value int `json:"value"`
}

type DetailedAnalytics struct {
	MissedChats        []WeeklyPoint `json:"missedChats"`
	TotalChats         int           `json:"totalChats"`
	ResolvedTickets    int           `json:"resolvedTickets"`
	ResolvedPercentage int           `json:"resolvedPercentage"`
	// AvgReplyTime is in seconds.
	AvgReplyTime int `json:"avgReplyTime"`
}

type MemberAnalytics struct {
	MemberID           primitive.ObjectID `json:"memberId"`
	TotalTickets       int                `json:"totalTickets"`
	ResolvedTickets    int                `json:"resolvedTickets"`
	ResolvedPercentage int                `json:"resolvedPercentage"`
	WeeklyData         []WeeklyPoint      `json:"weeklyData"`
}

// DashboardStats is the summary strip on top of the dashboard.
type DashboardStats struct {
	TotalTickets       int `json:"totalTickets"`
	ResolvedTickets    int `json:"resolvedTickets"`
	OpenTickets        int `json:"openTickets"`
	ResolvedPercentage int `json:"resolvedPercentage"`
	TotalMembers       int `json:"totalMembers"`
	UniqueVisitors     int `json:"uniqueVisitors"`
	// AvgResolutionTime is in minutes.
	AvgResolutionTime int `json:"avgResolutionTime"`
}
