package periods

import (
	"context"
	"errors"
	"time"
)

// Service exposes period registry operations.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FindOpenPeriodByDate resolves the open period for a posting date.
func (s *Service) FindOpenPeriodByDate(ctx context.Context, date time.Time) (Period, error) {
	return s.repo.FindOpenPeriodByDate(ctx, date)
}

// List returns all periods ordered by start date.
func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.List(ctx)
}

// Create registers a new open period.
func (s *Service) Create(ctx context.Context, code string, start, end time.Time) (Period, error) {
	if code == "" {
		return Period{}, errors.New("periods: code required")
	}
	if end.Before(start) {
		return Period{}, errors.New("periods: end date before start date")
	}
	return s.repo.Create(ctx, code, start, end)
}

// Close marks the period closed; postings dated inside it are rejected afterwards.
func (s *Service) Close(ctx context.Context, id int64, actorID int64) error {
	return s.repo.SetStatus(ctx, id, StatusClosed, actorID)
}

// Reopen marks the period open again.
func (s *Service) Reopen(ctx context.Context, id int64, actorID int64) error {
	return s.repo.SetStatus(ctx, id, StatusOpen, actorID)
}
