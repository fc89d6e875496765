package services

import "errors"

// Errors shared across services.
var (
	// Validation and business rules
	ErrValidationFailed   = errors.New("validation failed")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrInvalidCredentials = errors.New("invalid nickname or password")
	ErrLeagueNameRequired = errors.New("league name is required")
	ErrLeagueInactive     = errors.New("league is not active")
	ErrSelfPlayForbidden  = errors.New("a player cannot report a match against themselves")
	ErrAccessCodeInvalid  = errors.New("access code does not match")

	// Conflicts
	ErrUserNicknameConflict = errors.New("nickname is already in use")

	// Entity lookups
	ErrLeagueNotFound = errors.New("league not found")
	ErrUserNotFound   = errors.New("user not found")

	// Invariant violations surfaced by the rebuild engine. A match row that
	// references a blank or self-referential player id means the store has
	// been corrupted; the rebuild aborts rather than guessing.
	ErrCorruptMatchHistory = errors.New("match history violates player invariants")
)
