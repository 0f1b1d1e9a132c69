package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reactor-planner/internal/planner"
)

type MockAutoPlanner struct {
	mock.Mock
}

func (m *MockAutoPlanner) AutoPlan(ctx context.Context, ids []string, horizonDays int) (planner.Proposal, error) {
	args := m.Called(ctx, ids, horizonDays)
	return args.Get(0).(planner.Proposal), args.Error(1)
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestPreviewJob_LogsSummaryAndUnplaced(t *testing.T) {
	m := new(MockAutoPlanner)
	m.On("AutoPlan", mock.Anything, []string(nil), 0).Return(planner.Proposal{
		HorizonStart: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		HorizonDays:  14,
		Planned:      3,
		Unplaced:     []planner.UnplacedBlock{{BlockID: "b-9", BatchLabel: "T2", Units: 834}},
	}, nil)

	log, buf := bufferLogger()
	NewPreviewJob(log, m).Run()

	out := buf.String()
	assert.Contains(t, out, "auto-plan preview")
	assert.Contains(t, out, "horizon_start=2026-03-02")
	assert.Contains(t, out, "planned=3")
	assert.Contains(t, out, "block_id=b-9")
	assert.Contains(t, out, "capacity exhausted within horizon")
	assert.Contains(t, out, "job=autoplan_preview")
	m.AssertExpectations(t)
}

func TestPreviewJob_LogsFailure(t *testing.T) {
	m := new(MockAutoPlanner)
	m.On("AutoPlan", mock.Anything, []string(nil), 0).Return(planner.Proposal{}, errors.New("db down"))

	log, buf := bufferLogger()
	NewPreviewJob(log, m).Run()

	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "db down")
}

func TestNewScheduler(t *testing.T) {
	log, _ := bufferLogger()
	job := NewPreviewJob(log, new(MockAutoPlanner))

	s, err := NewScheduler(log, "0 5 * * *", time.UTC, job)
	require.NoError(t, err)

	next := s.Next()
	require.Len(t, next, 1)
	assert.Equal(t, 5, next[0].Hour())
	assert.Equal(t, 0, next[0].Minute())

	_, err = NewScheduler(log, "every night", time.UTC, job)
	assert.Error(t, err)

	// seconds field is not accepted
	_, err = NewScheduler(log, "0 0 5 * * *", time.UTC, job)
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	log, buf := bufferLogger()
	s, err := NewScheduler(log, "0 0 * * *", time.UTC, NewPreviewJob(log, new(MockAutoPlanner)))
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	assert.Contains(t, buf.String(), "starting scheduler")
	assert.Contains(t, buf.String(), "next_run=")
}
