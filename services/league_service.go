package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/faceoff-league/faceoff/models"
	"github.com/faceoff-league/faceoff/repositories"
	"github.com/faceoff-league/faceoff/utils"
)

// slugAttempts bounds the integer-suffix probe when a derived slug collides.
const slugAttempts = 100

type LeagueService interface {
	Create(ctx context.Context, name string, active bool) (*models.League, error)
	GetByID(ctx context.Context, id string) (*models.League, error)
	GetBySlug(ctx context.Context, slug string) (*models.League, error)
	ListAll(ctx context.Context) ([]*models.League, error)
	ListActive(ctx context.Context) ([]*models.League, error)
}

type leagueService struct {
	leagueRepo repositories.LeagueRepository
}

func NewLeagueService(leagueRepo repositories.LeagueRepository) LeagueService {
	return &leagueService{leagueRepo: leagueRepo}
}

func (s *leagueService) Create(ctx context.Context, name string, active bool) (*models.League, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrLeagueNameRequired
	}

	slug, err := AvailableSlug(ctx, s.leagueRepo, nil, utils.Slugify(name))
	if err != nil {
		return nil, err
	}

	league := &models.League{
		Name:   name,
		Slug:   slug,
		Active: active,
	}
	if err := s.leagueRepo.Create(ctx, nil, league); err != nil {
		return nil, fmt.Errorf("failed to create league %q: %w", name, err)
	}
	return league, nil
}

// AvailableSlug disambiguates a derived slug by suffixing an integer when the
// base form is taken: "chess", "chess-2", "chess-3", ... Probing runs on exec
// so a transaction sees its own earlier inserts.
func AvailableSlug(ctx context.Context, leagueRepo repositories.LeagueRepository, exec repositories.SQLExecutor, base string) (string, error) {
	if base == "" {
		base = "league"
	}
	for n := 1; n <= slugAttempts; n++ {
		candidate := base
		if n > 1 {
			candidate = base + "-" + strconv.Itoa(n)
		}
		taken, err := leagueRepo.SlugExists(ctx, exec, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no available slug for %q after %d attempts", base, slugAttempts)
}

func (s *leagueService) GetByID(ctx context.Context, id string) (*models.League, error) {
	league, err := s.leagueRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to load league %s: %w", id, err)
	}
	return league, nil
}

func (s *leagueService) GetBySlug(ctx context.Context, slug string) (*models.League, error) {
	league, err := s.leagueRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to load league by slug %s: %w", slug, err)
	}
	return league, nil
}

func (s *leagueService) ListAll(ctx context.Context) ([]*models.League, error) {
	return s.leagueRepo.ListAll(ctx, nil)
}

func (s *leagueService) ListActive(ctx context.Context) ([]*models.League, error) {
	return s.leagueRepo.ListActive(ctx, nil)
}
