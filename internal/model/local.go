// Package model defines the persisted entities of the inventory audit.
package model

import "time"

// Local is a store whose inventory reports are audited.
type Local struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RankingEntry is one row of the cross-store ranking.
type RankingEntry struct {
	Local        Local    `json:"local"`
	ReportsCount int      `json:"reports_count"`
	AvgScore     float64  `json:"avg_score"`
	LastScore    *float64 `json:"last_score"`
}

// EvolutionPoint is one score in a local's history.
type EvolutionPoint struct {
	Date     time.Time `json:"date"`
	ReportID int64     `json:"report_id"`
	Score    float64   `json:"score"`
}

// LocalDetail groups a local with its reports and score history.
type LocalDetail struct {
	Local     Local             `json:"local"`
	Reports   []ReportWithScore `json:"reports"`
	Evolution []EvolutionPoint  `json:"evolution"`
}
