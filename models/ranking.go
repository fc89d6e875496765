package models

// Ranking is one row of a league's standings table. The rebuild engine owns
// this table outright: rows are deleted and regenerated wholesale on every
// rebuild and have no identity across rebuilds.
type Ranking struct {
	LeagueID   string  `json:"league_id"`
	UserID     string  `json:"user_id"`
	Rank       int     `json:"rank"`
	Mu         float64 `json:"mu"`
	Sigma      float64 `json:"sigma"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	WinStreak  int     `json:"win_streak"`
	LossStreak int     `json:"loss_streak"`
	Games      int     `json:"games"`

	// Optional linked data, populated by list queries that join users.
	Nickname string `json:"nickname,omitempty"`
}
