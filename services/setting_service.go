package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/faceoff-league/faceoff/repositories"
)

// AccessCodeSetting gates signup in the full product: new members must quote
// the code stored under this key.
const AccessCodeSetting = "access_code"

type SettingService interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string) error
	CheckAccessCode(ctx context.Context, code string) error
}

type settingService struct {
	settingRepo repositories.SettingRepository
}

func NewSettingService(settingRepo repositories.SettingRepository) SettingService {
	return &settingService{settingRepo: settingRepo}
}

func (s *settingService) Get(ctx context.Context, name string) (string, error) {
	setting, err := s.settingRepo.Get(ctx, nil, name)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *settingService) Set(ctx context.Context, name, value string) error {
	return s.settingRepo.Set(ctx, nil, name, value)
}

func (s *settingService) CheckAccessCode(ctx context.Context, code string) error {
	setting, err := s.settingRepo.Get(ctx, nil, AccessCodeSetting)
	if err != nil {
		if errors.Is(err, repositories.ErrSettingNotFound) {
			// No code configured means the door is open.
			return nil
		}
		return fmt.Errorf("failed to load access code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(setting.Value), []byte(code)) != 1 {
		return ErrAccessCodeInvalid
	}
	return nil
}
