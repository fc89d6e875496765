package models

import "time"

// Match records a single reported result. Rows are immutable once created;
// WinnerRank and LoserRank are a best-effort snapshot of each player's standing
// rank at the moment the match was reported, nil when no prior ranking existed.
type Match struct {
	ID         string    `json:"id"`
	LeagueID   string    `json:"league_id"`
	WinnerID   string    `json:"winner_id"`
	LoserID    string    `json:"loser_id"`
	WinnerRank *int      `json:"winner_rank,omitempty"`
	LoserRank  *int      `json:"loser_rank,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	// Optional linked data, populated by list queries that join users.
	WinnerNickname string `json:"winner_nickname,omitempty"`
	LoserNickname  string `json:"loser_nickname,omitempty"`
}
