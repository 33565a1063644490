package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/scheduling-engine/internal/clock"
	"github.com/clinova/scheduling-engine/pkg/logging"
)

var ErrInvalidTimezone = errors.New("invalid timezone")

// Request bounds. Out-of-range values are clamped rather than rejected so a
// sloppy client still gets a usable answer.
const (
	MinDurationMinutes = 10
	MaxDurationMinutes = 240
	MinLeadTimeMinutes = 0
	MaxLeadTimeMinutes = 1440
	DefaultLimit       = 40
	MaxLimit           = 200
)

type SuggestionRequest struct {
	OrgID           uuid.UUID
	ProviderID      uuid.UUID
	Date            time.Time // calendar date; time component ignored
	Timezone        string
	DurationMinutes int
	LeadTimeMinutes int
	Limit           int
	PatientID       *uuid.UUID
}

// Service orchestrates availability resolution, collision filtering and
// ranking into one paginated suggestion response.
type Service struct {
	repo   Repository
	scorer RiskScorer
	clock  clock.Clock
	logger *logging.Logger
}

func NewService(repo Repository, scorer RiskScorer, clk clock.Clock, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:   repo,
		scorer: scorer,
		clock:  clk,
		logger: logger,
	}
}

// SuggestSlots returns ranked bookable slots for a provider and date.
// Suggestions are ephemeral; nothing is persisted and the eventual booking
// write carries its own collision guard at the storage layer.
func (s *Service) SuggestSlots(ctx context.Context, req SuggestionRequest) ([]CandidateSlot, error) {
	loc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, req.Timezone)
	}

	duration := time.Duration(clamp(req.DurationMinutes, MinDurationMinutes, MaxDurationMinutes)) * time.Minute
	leadTime := time.Duration(clamp(req.LeadTimeMinutes, MinLeadTimeMinutes, MaxLeadTimeMinutes)) * time.Minute
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if _, err := s.repo.GetProviderByID(ctx, req.OrgID, req.ProviderID); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	y, m, d := req.Date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	rules, err := s.repo.ListRulesForWeekday(ctx, req.OrgID, req.ProviderID, ISOWeekday(dayStart))
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	if len(rules) == 0 {
		return []CandidateSlot{}, nil
	}

	overrides, err := s.repo.ListOverridesForDate(ctx, req.OrgID, req.ProviderID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("list date overrides: %w", err)
	}

	windows, err := ResolveOpenIntervals(rules, overrides, dayStart, loc)
	if err != nil {
		return nil, fmt.Errorf("resolve open intervals: %w", err)
	}
	if len(windows) == 0 {
		return []CandidateSlot{}, nil
	}

	appts, err := s.repo.ListAppointmentsBetween(ctx, req.OrgID, req.ProviderID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	now := s.clock.Now()
	cands := GenerateCandidates(windows, duration, now, leadTime, appts)
	if len(cands) == 0 {
		return []CandidateSlot{}, nil
	}

	risk := DefaultNoShowScore
	if req.PatientID != nil {
		risk, err = s.scorer.ScoreFor(ctx, req.OrgID, *req.PatientID)
		if err != nil {
			// Risk is a soft signal; degrade to neutral rather than fail the request.
			s.logger.Warn("risk score lookup failed, using neutral default",
				"error", err, "patient_id", *req.PatientID)
			risk = DefaultNoShowScore
		}
	}

	ranked := RankCandidates(cands, risk, now, appts, loc)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
