package service

import (
	"context"
	"errors"
	"time"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/repository"
)

// ProfileFilter selects a single profile row by id or email.
type ProfileFilter struct {
	ID    string
	Email string
}

// ProfileService serves the profiles table. Any client may read a row;
// only the signed-in owner may update it.
type ProfileService struct {
	repo repository.ProfileRepository
}

func NewProfileService(repo repository.ProfileRepository) *ProfileService {
	return &ProfileService{repo: repo}
}

func (s *ProfileService) Get(ctx context.Context, filter ProfileFilter) (*domain.Profile, error) {
	var (
		p   *domain.Profile
		err error
	)
	switch {
	case filter.ID != "":
		p, err = s.repo.FindByID(ctx, filter.ID)
	case filter.Email != "":
		p, err = s.repo.FindByEmail(ctx, domain.NormalizeEmail(filter.Email))
	default:
		return nil, ErrMissingRowFilter
	}
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	if filter.ID != "" && filter.Email != "" && p.Email != domain.NormalizeEmail(filter.Email) {
		return nil, ErrNoRows
	}
	return p, nil
}

// Update applies columns to the row id on behalf of callerID. Rows owned by
// someone else are reported as missing.
func (s *ProfileService) Update(ctx context.Context, callerID, id string, columns map[string]any) (*domain.Profile, error) {
	if id == "" {
		return nil, ErrMissingRowFilter
	}
	if callerID == "" || callerID != id {
		return nil, ErrNoRows
	}
	updates, err := normalizeProfileColumns(columns)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Update(ctx, id, updates)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, ErrNoRows
	}
	return p, err
}

func normalizeProfileColumns(columns map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(columns)+1)
	for k, v := range columns {
		if !repository.WritableProfileColumn(k) {
			return nil, ErrUnknownColumn
		}
		if !validProfileValue(k, v) {
			return nil, ErrInvalidColumnValue
		}
		out[k] = v
	}
	switch v := out["updated_at"].(type) {
	case nil:
		out["updated_at"] = time.Now().UTC()
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, ErrInvalidTimestamp
		}
		out["updated_at"] = t.UTC()
	}
	return out, nil
}

// validProfileValue keeps decoded JSON numbers, booleans, objects and arrays
// out of the text columns. Only phone_number and updated_at take null.
func validProfileValue(column string, v any) bool {
	switch v.(type) {
	case string:
		return true
	case nil:
		return repository.NullableProfileColumn(column)
	case time.Time:
		return column == "updated_at"
	default:
		return false
	}
}
