package models

import "time"

type UserRank string

const (
	RankMember UserRank = "member"
	RankAdmin  UserRank = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	Rank         UserRank  `json:"rank"`
	CreatedAt    time.Time `json:"created_at"`
}
