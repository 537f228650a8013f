package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-scheduling/internal/identity"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "availability").Logger(),
	}
}

// SetSchedule validates t and replaces the provider's template. Nothing is
// written unless the whole template is valid.
func (s *Service) SetSchedule(ctx context.Context, actor identity.Actor, providerID uuid.UUID, t WeeklyTemplate) (WeeklyTemplate, error) {
	if !actor.IsAdmin() && !actor.IsProvider(providerID) {
		return nil, ErrForbidden
	}

	valid, err := Validate(t)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Put(ctx, providerID, valid); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}

	s.log.Info().
		Str("provider_id", providerID.String()).
		Str("actor", actor.String()).
		Int("enabled_days", len(valid.EnabledDays())).
		Msg("schedule replaced")

	return valid.Clone(), nil
}

// GetSchedule returns the stored template or ErrNotFound. Callers should
// read ErrNotFound as "no availability".
func (s *Service) GetSchedule(ctx context.Context, providerID uuid.UUID) (WeeklyTemplate, error) {
	t, err := s.repo.Get(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return t, nil
}
