package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faceoff-league/faceoff/models"
	"github.com/faceoff-league/faceoff/repositories"
)

// fakeTx mimics *sql.Tx for the owned-transaction paths: it records the lock
// statement and the commit/rollback outcome, and undoes any fake-repo writes
// registered against it when rolled back.
type fakeTx struct {
	locked        bool
	done          bool
	committed     bool
	rollbackCalls int
	commitErr     error
	undo          []func()
}

func (t *fakeTx) ExecContext(_ context.Context, query string, _ ...interface{}) (sql.Result, error) {
	if strings.HasPrefix(query, "LOCK TABLE") {
		t.locked = true
	}
	return nil, nil
}

func (t *fakeTx) QueryContext(_ context.Context, _ string, _ ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("unexpected raw query")
}

func (t *fakeTx) QueryRowContext(_ context.Context, _ string, _ ...interface{}) *sql.Row {
	return nil
}

func (t *fakeTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	t.rollbackCalls++
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	return nil
}

// fakeDB hands out fakeTx transactions and keeps them for inspection.
type fakeDB struct {
	beginErr  error
	commitErr error
	txs       []*fakeTx
}

func (d *fakeDB) BeginTx(_ context.Context) (Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	tx := &fakeTx{commitErr: d.commitErr}
	d.txs = append(d.txs, tx)
	return tx, nil
}

// recordUndo registers a restore step when the write runs on a fakeTx, so the
// fake repositories mirror real rollback behavior.
func recordUndo(exec repositories.SQLExecutor, undo func()) {
	if tx, ok := exec.(*fakeTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

// fakeMatchRepo serves matches from memory in creation order, mirroring the
// ordering contract of the Postgres implementation.
type fakeMatchRepo struct {
	matches []*models.Match
}

func (f *fakeMatchRepo) Create(_ context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if match.ID == "" {
		match.ID = fmt.Sprintf("m%d", len(f.matches)+1)
	}
	prev := append([]*models.Match(nil), f.matches...)
	recordUndo(exec, func() { f.matches = prev })
	f.matches = append(f.matches, match)
	return nil
}

func (f *fakeMatchRepo) GetByID(_ context.Context, id string) (*models.Match, error) {
	for _, m := range f.matches {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) ListByLeague(_ context.Context, _ repositories.SQLExecutor, leagueID string) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range f.matches {
		if m.LeagueID == leagueID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeMatchRepo) History(_ context.Context, leagueID string, limit, offset int) ([]*models.Match, error) {
	all, _ := f.ListByLeague(context.Background(), nil, leagueID)
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if offset >= len(all) {
		return []*models.Match{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// fakeRankingRepo keeps one standings table in memory and can fail on demand.
type fakeRankingRepo struct {
	rows      []*models.Ranking
	insertErr error
}

func (f *fakeRankingRepo) DeleteByLeagueID(_ context.Context, exec repositories.SQLExecutor, leagueID string) error {
	prev := append([]*models.Ranking(nil), f.rows...)
	recordUndo(exec, func() { f.rows = prev })
	kept := make([]*models.Ranking, 0, len(f.rows))
	for _, r := range f.rows {
		if r.LeagueID != leagueID {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeRankingRepo) BatchCreate(_ context.Context, exec repositories.SQLExecutor, rankings []*models.Ranking) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	prev := append([]*models.Ranking(nil), f.rows...)
	recordUndo(exec, func() { f.rows = prev })
	f.rows = append(f.rows, rankings...)
	return nil
}

func (f *fakeRankingRepo) ListByLeague(_ context.Context, _ repositories.SQLExecutor, leagueID string) ([]*models.Ranking, error) {
	out := make([]*models.Ranking, 0)
	for _, r := range f.rows {
		if r.LeagueID == leagueID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (f *fakeRankingRepo) GetByLeagueAndUser(_ context.Context, _ repositories.SQLExecutor, leagueID, userID string) (*models.Ranking, error) {
	for _, r := range f.rows {
		if r.LeagueID == leagueID && r.UserID == userID {
			return r, nil
		}
	}
	return nil, repositories.ErrRankingNotFound
}

func newTestStandings(matchRepo repositories.MatchRepository, rankingRepo repositories.RankingRepository) StandingsService {
	return NewStandingsService(nil, matchRepo, rankingRepo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func addMatch(repo *fakeMatchRepo, leagueID, winnerID, loserID string, at time.Time) {
	_ = repo.Create(context.Background(), nil, &models.Match{
		LeagueID:  leagueID,
		WinnerID:  winnerID,
		LoserID:   loserID,
		CreatedAt: at,
	})
}

func TestRebuildEmptyLeague(t *testing.T) {
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := newTestStandings(matchRepo, rankingRepo)

	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l1"))

	ranking, err := svc.LeagueRanking(context.Background(), "l1")
	require.NoError(t, err)
	assert.Empty(t, ranking)
}

func TestRebuildSingleMatch(t *testing.T) {
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := newTestStandings(matchRepo, rankingRepo)

	addMatch(matchRepo, "l1", "a", "b", time.Now())
	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l1"))

	ranking, err := svc.LeagueRanking(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, ranking, 2)

	first, second := ranking[0], ranking[1]
	assert.Equal(t, "a", first.UserID)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, 2, second.Rank)
	assert.Greater(t, first.Mu-3*first.Sigma, second.Mu-3*second.Sigma,
		"winner's exposure must strictly exceed loser's after one match")
}

func TestRebuildStreaksAndAggregates(t *testing.T) {
	// A beats B, B beats A, A beats B.
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := newTestStandings(matchRepo, rankingRepo)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	addMatch(matchRepo, "l1", "a", "b", base)
	addMatch(matchRepo, "l1", "b", "a", base.Add(time.Hour))
	addMatch(matchRepo, "l1", "a", "b", base.Add(2*time.Hour))

	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l1"))

	ranking, err := svc.LeagueRanking(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, ranking, 2)

	byUser := map[string]*models.Ranking{}
	for _, r := range ranking {
		byUser[r.UserID] = r
	}

	a, b := byUser["a"], byUser["b"]
	require.NotNil(t, a)
	require.NotNil(t, b)

	assert.Equal(t, 2, a.Wins)
	assert.Equal(t, 1, a.Losses)
	assert.Equal(t, 3, a.Games)
	assert.Equal(t, 1, a.WinStreak)
	assert.Equal(t, 0, a.LossStreak)

	assert.Equal(t, 1, b.Wins)
	assert.Equal(t, 2, b.Losses)
	assert.Equal(t, 3, b.Games)
	assert.Equal(t, 0, b.WinStreak)
	assert.Equal(t, 1, b.LossStreak)
}

func TestRebuildFoldsInCreationOrder(t *testing.T) {
	// Insertion order deliberately scrambled: streaks must follow creation
	// time, not arrival order.
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := newTestStandings(matchRepo, rankingRepo)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	addMatch(matchRepo, "l1", "a", "b", base.Add(2*time.Hour)) // chronologically last
	addMatch(matchRepo, "l1", "a", "b", base)
	addMatch(matchRepo, "l1", "b", "a", base.Add(time.Hour))

	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l1"))

	standing, err := svc.UserStanding(context.Background(), "l1", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, standing.WinStreak, "a's final result is a win")
	assert.Equal(t, 0, standing.LossStreak)
}

func TestRebuildCompletenessAndContiguity(t *testing.T) {
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := newTestStandings(matchRepo, rankingRepo)

	players := []string{"a", "b", "c", "d", "e"}
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	for i, w := range players {
		for j, l := range players {
			if i == j || (i+j)%2 == 0 {
				continue
			}
			addMatch(matchRepo, "l1", w, l, base.Add(time.Duration(n)*time.Minute))
			n++
		}
	}

	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l1"))

	ranking, err := svc.LeagueRanking(context.Background(), "l1")
	require.NoError(t, err)

	seen := map[string]bool{}
	for i, r := range ranking {
		assert.Equal(t, i+1, r.Rank, "ranks must be the contiguous sequence 1..N")
		assert.Equal(t, r.Games, r.Wins+r.Losses)
		seen[r.UserID] = true
	}
	for _, p := range players {
		assert.True(t, seen[p], "player %s missing from standings", p)
	}
	assert.Len(t, ranking, len(players))

	for i := 1; i < len(ranking); i++ {
		prev := ranking[i-1].Mu - 3*ranking[i-1].Sigma
		cur := ranking[i].Mu - 3*ranking[i].Sigma
		assert.GreaterOrEqual(t, prev, cur, "exposure must be non-increasing down the table")
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := newTestStandings(matchRepo, rankingRepo)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	addMatch(matchRepo, "l1", "a", "b", base)
	addMatch(matchRepo, "l1", "c", "a", base.Add(time.Minute))
	addMatch(matchRepo, "l1", "b", "c", base.Add(2*time.Minute))

	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l1"))
	first, err := svc.LeagueRanking(context.Background(), "l1")
	require.NoError(t, err)

	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l1"))
	second, err := svc.LeagueRanking(context.Background(), "l1")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, *first[i], *second[i])
	}
}

func TestRebuildTieBreakIsDeterministic(t *testing.T) {
	// Two disjoint pairs with identical histories produce identical
	// exposures; order must still be total, by user id.
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := newTestStandings(matchRepo, rankingRepo)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	addMatch(matchRepo, "l1", "d", "c", base)
	addMatch(matchRepo, "l1", "b", "a", base.Add(time.Minute))

	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l1"))
	ranking, err := svc.LeagueRanking(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, ranking, 4)

	assert.Equal(t, []string{"b", "d", "a", "c"},
		[]string{ranking[0].UserID, ranking[1].UserID, ranking[2].UserID, ranking[3].UserID})
}

func TestRebuildScopedToOneLeague(t *testing.T) {
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := newTestStandings(matchRepo, rankingRepo)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	addMatch(matchRepo, "l1", "a", "b", base)
	addMatch(matchRepo, "l2", "c", "d", base)

	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l1"))
	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l2"))

	// Rebuilding l1 again must leave l2's table untouched.
	require.NoError(t, svc.RebuildInTx(context.Background(), nil, "l1"))

	other, err := svc.LeagueRanking(context.Background(), "l2")
	require.NoError(t, err)
	assert.Len(t, other, 2)
}

func TestRebuildCorruptHistory(t *testing.T) {
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := newTestStandings(matchRepo, rankingRepo)

	addMatch(matchRepo, "l1", "a", "a", time.Now())

	err := svc.RebuildInTx(context.Background(), nil, "l1")
	assert.ErrorIs(t, err, ErrCorruptMatchHistory)
}

func TestRebuildPropagatesStoreFailure(t *testing.T) {
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{insertErr: errors.New("write rejected")}
	svc := newTestStandings(matchRepo, rankingRepo)

	addMatch(matchRepo, "l1", "a", "b", time.Now())

	err := svc.RebuildInTx(context.Background(), nil, "l1")
	assert.ErrorContains(t, err, "write rejected")
}

func TestRebuildOwnsExclusiveTransaction(t *testing.T) {
	db := &fakeDB{}
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := NewStandingsService(db, matchRepo, rankingRepo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	addMatch(matchRepo, "l1", "a", "b", time.Now())
	require.NoError(t, svc.Rebuild(context.Background(), "l1"))

	require.Len(t, db.txs, 1)
	tx := db.txs[0]
	assert.True(t, tx.locked, "rebuild must take the exclusive write section")
	assert.True(t, tx.committed)
	assert.Equal(t, 0, tx.rollbackCalls)

	ranking, err := svc.LeagueRanking(context.Background(), "l1")
	require.NoError(t, err)
	assert.Len(t, ranking, 2)
}

func TestRebuildRollsBackOnStoreFailure(t *testing.T) {
	db := &fakeDB{}
	matchRepo := &fakeMatchRepo{}
	rankingRepo := &fakeRankingRepo{}
	svc := NewStandingsService(db, matchRepo, rankingRepo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// An earlier successful rebuild left a standings table behind.
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	addMatch(matchRepo, "l1", "a", "b", base)
	require.NoError(t, svc.Rebuild(context.Background(), "l1"))
	before, err := svc.LeagueRanking(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, before, 2)

	// The next rebuild deletes and fails on reinsert; the rollback must
	// restore the previous table untouched.
	addMatch(matchRepo, "l1", "b", "a", base.Add(time.Hour))
	rankingRepo.insertErr = errors.New("write rejected")

	err = svc.Rebuild(context.Background(), "l1")
	require.ErrorContains(t, err, "write rejected")

	require.Len(t, db.txs, 2)
	tx := db.txs[1]
	assert.False(t, tx.committed)
	assert.Equal(t, 1, tx.rollbackCalls)

	after, err := svc.LeagueRanking(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, *before[i], *after[i])
	}
}

func TestRebuildBeginFailure(t *testing.T) {
	db := &fakeDB{beginErr: errors.New("pool exhausted")}
	svc := NewStandingsService(db, &fakeMatchRepo{}, &fakeRankingRepo{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := svc.Rebuild(context.Background(), "l1")
	assert.ErrorContains(t, err, "pool exhausted")
	assert.Empty(t, db.txs)
}

func TestRebuildCommitFailure(t *testing.T) {
	db := &fakeDB{commitErr: errors.New("connection reset")}
	matchRepo := &fakeMatchRepo{}
	var logBuf bytes.Buffer
	svc := NewStandingsService(db, matchRepo, &fakeRankingRepo{}, slog.New(slog.NewTextHandler(&logBuf, nil)))

	addMatch(matchRepo, "l1", "a", "b", time.Now())

	err := svc.Rebuild(context.Background(), "l1")
	require.ErrorContains(t, err, "connection reset")

	// The failed commit already finished the transaction; the cleanup must
	// not report the follow-up rollback as a failure of its own.
	require.Len(t, db.txs, 1)
	assert.False(t, db.txs[0].committed)
	assert.NotContains(t, logBuf.String(), "rollback failed")
}

func TestUserStandingNotFound(t *testing.T) {
	svc := newTestStandings(&fakeMatchRepo{}, &fakeRankingRepo{})

	_, err := svc.UserStanding(context.Background(), "l1", "ghost")
	assert.ErrorIs(t, err, repositories.ErrRankingNotFound)
}
