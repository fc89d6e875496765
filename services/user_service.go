package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/faceoff-league/faceoff/models"
	"github.com/faceoff-league/faceoff/repositories"
	"github.com/faceoff-league/faceoff/utils"
)

const minPasswordLength = 6

type UserService interface {
	Create(ctx context.Context, nickname, password string, rank models.UserRank) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByNickname(ctx context.Context, nickname string) (*models.User, error)
	// Authenticate checks a nickname/password pair against the stored hash.
	// Session and token handling live above this layer.
	Authenticate(ctx context.Context, nickname, password string) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) Create(ctx context.Context, nickname, password string, rank models.UserRank) (*models.User, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, fmt.Errorf("%w: nickname is required", ErrValidationFailed)
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if rank != models.RankMember && rank != models.RankAdmin {
		return nil, fmt.Errorf("%w: unknown rank %q", ErrValidationFailed, rank)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Nickname:     nickname,
		PasswordHash: hash,
		Rank:         rank,
	}
	if err := s.userRepo.Create(ctx, nil, user); err != nil {
		if errors.Is(err, repositories.ErrUserNicknameConflict) {
			return nil, ErrUserNicknameConflict
		}
		return nil, fmt.Errorf("failed to create user %q: %w", nickname, err)
	}
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return user, nil
}

func (s *userService) GetByNickname(ctx context.Context, nickname string) (*models.User, error) {
	user, err := s.userRepo.GetByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user by nickname %s: %w", nickname, err)
	}
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, nickname, password string) (*models.User, error) {
	user, err := s.userRepo.GetByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user by nickname %s: %w", nickname, err)
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
