package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/accounting/shared"
	_ "github.com/ledgerline/ledgerline/testing"
)

type fakePeriodRepo struct {
	periods map[int64]*Period
	nextID  int64
}

func newFakePeriodRepo() *fakePeriodRepo {
	return &fakePeriodRepo{periods: map[int64]*Period{}, nextID: 1}
}

func (f *fakePeriodRepo) FindOpenPeriodByDate(_ context.Context, date time.Time) (Period, error) {
	for _, p := range f.periods {
		if p.Status == StatusOpen && p.Covers(date) {
			return *p, nil
		}
	}
	return Period{}, shared.ErrClosedPeriod
}

func (f *fakePeriodRepo) Get(_ context.Context, id int64) (Period, error) {
	p, ok := f.periods[id]
	if !ok {
		return Period{}, shared.ErrClosedPeriod
	}
	return *p, nil
}

func (f *fakePeriodRepo) List(_ context.Context) ([]Period, error) {
	out := make([]Period, 0, len(f.periods))
	for _, p := range f.periods {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePeriodRepo) Create(_ context.Context, code string, start, end time.Time) (Period, error) {
	p := &Period{ID: f.nextID, Code: code, StartDate: start, EndDate: end, Status: StatusOpen}
	f.periods[p.ID] = p
	f.nextID++
	return *p, nil
}

func (f *fakePeriodRepo) SetStatus(_ context.Context, id int64, status Status, _ int64) error {
	p, ok := f.periods[id]
	if !ok {
		return shared.ErrClosedPeriod
	}
	p.Status = status
	return nil
}

func TestCreateValidatesWindow(t *testing.T) {
	svc := NewService(newFakePeriodRepo())

	_, err := svc.Create(context.Background(), "", day(2025, 1, 1), day(2025, 1, 31))
	require.Error(t, err)

	_, err = svc.Create(context.Background(), "2025-01", day(2025, 1, 31), day(2025, 1, 1))
	require.Error(t, err)

	p, err := svc.Create(context.Background(), "2025-01", day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	require.Equal(t, StatusOpen, p.Status)
}

func TestCloseBlocksDateLookupUntilReopened(t *testing.T) {
	repo := newFakePeriodRepo()
	svc := NewService(repo)

	p, err := svc.Create(context.Background(), "2025-02", day(2025, 2, 1), day(2025, 2, 28))
	require.NoError(t, err)

	found, err := svc.FindOpenPeriodByDate(context.Background(), day(2025, 2, 15))
	require.NoError(t, err)
	require.Equal(t, p.ID, found.ID)

	require.NoError(t, svc.Close(context.Background(), p.ID, 1))
	_, err = svc.FindOpenPeriodByDate(context.Background(), day(2025, 2, 15))
	require.ErrorIs(t, err, shared.ErrClosedPeriod)

	require.NoError(t, svc.Reopen(context.Background(), p.ID, 1))
	_, err = svc.FindOpenPeriodByDate(context.Background(), day(2025, 2, 15))
	require.NoError(t, err)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
