package models

import "time"

// KPICard is a single labelled counter on a role dashboard. Metric is the drill-down key.
type KPICard struct {
	Label  string `json:"label"`
	Value  int    `json:"value"`
	Metric string `json:"metric"`
	Style  string `json:"style"`
}

// DashboardSummary is the cached per-user dashboard payload.
type DashboardSummary struct {
	Role        UserRole       `json:"role"`
	Total       int            `json:"total"`
	Cards       []KPICard      `json:"cards"`
	Stages      map[string]int `json:"stages"`
	SLA         SLACounts      `json:"sla"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// PendingCount is the number of open petitions currently waiting on a user.
type PendingCount struct {
	UserID  string `json:"user_id"`
	Pending int    `json:"pending"`
}
