package statussource_test

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/TripWatch/internal/integrations/statussource"
	"github.com/BearBump/TripWatch/internal/integrations/statussource/mocks"
	"github.com/BearBump/TripWatch/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLimited_Allowed_Delegates(t *testing.T) {
	f := &mocks.MockFetcher{}
	rl := &mocks.MockRateLimiter{}
	rl.On("Allow", mock.Anything, mock.MatchedBy(func(k string) bool {
		return len(k) > len("rl:status:src:")
	}), int64(10), mock.Anything).Return(true, int64(1), nil).Once()
	f.On("Fetch", mock.Anything, "R1").Return(models.TripStatus{Reference: "R1", Status: models.StatusAssigned}, nil).Once()

	l := statussource.NewLimited(f, rl, 10, "src")
	st, err := l.Fetch(context.Background(), "R1")
	require.NoError(t, err)
	require.Equal(t, models.StatusAssigned, st.Status)
	f.AssertExpectations(t)
	rl.AssertExpectations(t)
}

func TestLimited_Denied_ReturnsRateLimited(t *testing.T) {
	f := &mocks.MockFetcher{}
	rl := &mocks.MockRateLimiter{}
	rl.On("Allow", mock.Anything, mock.Anything, int64(1), mock.Anything).Return(false, int64(2), nil).Once()

	_, err := statussource.NewLimited(f, rl, 1, "").Fetch(context.Background(), "R1")
	require.Error(t, err)
	require.Equal(t, statussource.KindRateLimited, statussource.Classify(err))
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestLimited_LimiterError_FailsOpen(t *testing.T) {
	f := &mocks.MockFetcher{}
	rl := &mocks.MockRateLimiter{}
	rl.On("Allow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, int64(0), errors.New("redis down")).Once()
	f.On("Fetch", mock.Anything, "R1").Return(models.TripStatus{Reference: "R1"}, nil).Once()

	_, err := statussource.NewLimited(f, rl, 5, "").Fetch(context.Background(), "R1")
	require.NoError(t, err)
	f.AssertExpectations(t)
}

func TestLimited_NoLimiter(t *testing.T) {
	f := &mocks.MockFetcher{}
	f.On("Fetch", mock.Anything, "R1").Return(models.TripStatus{}, nil).Once()
	_, err := statussource.NewLimited(f, nil, 0, "").Fetch(context.Background(), "R1")
	require.NoError(t, err)
}

func TestLimited_BucketFollowsClock(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 9, 5, 59, 0, time.UTC))
	f := &mocks.MockFetcher{}
	rl := &mocks.MockRateLimiter{}
	rl.On("Allow", mock.Anything, "rl:status:src:202603140905", int64(3), mock.Anything).Return(true, int64(1), nil).Once()
	rl.On("Allow", mock.Anything, "rl:status:src:202603140906", int64(3), mock.Anything).Return(true, int64(1), nil).Once()
	f.On("Fetch", mock.Anything, "R1").Return(models.TripStatus{Reference: "R1"}, nil).Twice()

	l := statussource.NewLimited(f, rl, 3, "src").WithClock(clk)
	_, err := l.Fetch(context.Background(), "R1")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = l.Fetch(context.Background(), "R1")
	require.NoError(t, err)
	rl.AssertExpectations(t)
}
