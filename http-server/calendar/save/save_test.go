package save

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reactor-planner/internal/storage"
)

type MockCalendarSaver struct {
	mock.Mock
}

func (m *MockCalendarSaver) SaveReactor(ctx context.Context, r storage.Reactor) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockCalendarSaver) SaveHoliday(ctx context.Context, h storage.Holiday) error {
	return m.Called(ctx, h).Error(0)
}

func (m *MockCalendarSaver) SaveMaintenanceWindow(ctx context.Context, w storage.MaintenanceWindow) (int64, error) {
	args := m.Called(ctx, w)
	return args.Get(0).(int64), args.Error(1)
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSaveReactor(t *testing.T) {
	saver := new(MockCalendarSaver)
	saver.On("SaveReactor", mock.Anything, storage.Reactor{Name: "R3", Capacity: 1500, DailyTarget: 3000, IsActive: true}).Return(nil)

	rr := post(SaveReactor(slog.Default(), saver), `{"name":" R3 ","capacity":1500,"daily_target":3000,"is_active":true}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	saver.AssertExpectations(t)

	for _, body := range []string{`{"name":""}`, `{"name":"R4","capacity":-1}`, `[`} {
		rr := post(SaveReactor(slog.Default(), saver), body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	saver.AssertNumberOfCalls(t, "SaveReactor", 1)
}

func TestSaveHoliday(t *testing.T) {
	saver := new(MockCalendarSaver)
	saver.On("SaveHoliday", mock.Anything, storage.Holiday{Date: time.Date(2026, 12, 8, 0, 0, 0, 0, time.UTC), Name: "Inmaculada"}).Return(nil)

	rr := post(SaveHoliday(slog.Default(), saver), `{"date":"2026-12-08","name":"Inmaculada"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = post(SaveHoliday(slog.Default(), saver), `{"date":"8/12/2026","name":"Inmaculada"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	saver.AssertExpectations(t)
}

func TestSaveMaintenance(t *testing.T) {
	saver := new(MockCalendarSaver)
	saver.On("SaveMaintenanceWindow", mock.Anything, storage.MaintenanceWindow{
		ReactorID: "R1",
		StartDate: time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC),
		Reason:    "agitator",
	}).Return(int64(12), nil)
	saver.On("SaveMaintenanceWindow", mock.Anything, mock.MatchedBy(func(w storage.MaintenanceWindow) bool { return w.ReactorID == "R404" })).
		Return(int64(0), fmt.Errorf("storage.mysql.SaveMaintenanceWindow: R404: %w", storage.ErrReactorNotFound))

	rr := post(SaveMaintenance(slog.Default(), saver), `{"reactor_id":"R1","start_date":"2026-04-06","end_date":"2026-04-08","reason":"agitator"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp CreatedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(12), resp.ID)

	rr = post(SaveMaintenance(slog.Default(), saver), `{"reactor_id":"R404","start_date":"2026-04-06","end_date":"2026-04-06"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	tests := []struct {
		name string
		body string
	}{
		{"no reactor", `{"start_date":"2026-04-06","end_date":"2026-04-08"}`},
		{"bad start", `{"reactor_id":"R1","start_date":"x","end_date":"2026-04-08"}`},
		{"bad end", `{"reactor_id":"R1","start_date":"2026-04-06","end_date":""}`},
		{"reversed", `{"reactor_id":"R1","start_date":"2026-04-08","end_date":"2026-04-06"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(SaveMaintenance(slog.Default(), saver), tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}

	saver.AssertExpectations(t)
}
