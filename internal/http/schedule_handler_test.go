package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/testfixtures"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiHarness struct {
	*testfixtures.Harness
	server http.Handler
	class  string
	other  string
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	h := testfixtures.NewMemoryHarness()
	class := h.Seed(t, testfixtures.NewClass(testfixtures.WithClassLabel("Algebra I"), testfixtures.WithLecturer("lecturer-1")), "student-1")
	other := h.Seed(t, testfixtures.NewClass(testfixtures.WithClassLabel("Physics")), "student-2")

	router := NewRouter(RouterConfig{
		Schedules:  NewScheduleHandler(h.Schedules, quietLogger()),
		Resync:     NewResyncHandler(h.Sessions, quietLogger()),
		Middleware: []func(http.Handler) http.Handler{RequestLogger(quietLogger())},
	})
	return &apiHarness{Harness: h, server: router, class: class.ID, other: other.ID}
}

func (h *apiHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

type scheduleEnvelope struct {
	Schedule struct {
		ID             string   `json:"id"`
		Kind           string   `json:"kind"`
		DayOfWeek      any      `json:"day_of_week"`
		IsActive       bool     `json:"is_active"`
		CancelledDates []string `json:"cancelled_dates"`
		DeletedDates   []string `json:"deleted_dates"`
		EffectiveFrom  string   `json:"effective_from"`
		ParentID       string   `json:"parent_id"`
	} `json:"schedule"`
	Warnings []application.Warning `json:"warnings"`
}

func TestScheduleHandlers_Lifecycle(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodPost, "/schedules", map[string]any{
		"class_id":       h.class,
		"day_of_week":    "monday",
		"start_time":     "08:00:00",
		"end_time":       "10:00:00",
		"effective_from": "2024-01-01",
		"effective_to":   "2024-01-29",
		"room":           "101",
		"building":       "Main",
	})
	expectStatus(t, rec, http.StatusCreated)
	created := decode[scheduleEnvelope](t, rec)
	id := created.Schedule.ID
	if id == "" || created.Schedule.Kind != "recurring" || !created.Schedule.IsActive {
		t.Fatalf("unexpected created schedule: %+v", created.Schedule)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}

	t.Run("toggle occurrence", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/schedules/"+id+"/occurrences/2024-01-15/toggle", nil)
		expectStatus(t, rec, http.StatusOK)
		body := decode[scheduleEnvelope](t, rec)
		if len(body.Schedule.CancelledDates) != 1 || body.Schedule.CancelledDates[0] != "2024-01-15" {
			t.Fatalf("expected 2024-01-15 cancelled, got %v", body.Schedule.CancelledDates)
		}
	})

	t.Run("delete occurrence", func(t *testing.T) {
		rec := h.do(t, http.MethodDelete, "/schedules/"+id+"/occurrences/2024-01-22", nil)
		expectStatus(t, rec, http.StatusNoContent)
	})

	t.Run("edit occurrence", func(t *testing.T) {
		rec := h.do(t, http.MethodPut, "/schedules/"+id+"/occurrences/2024-01-29", map[string]any{"date": "2024-01-30"})
		expectStatus(t, rec, http.StatusCreated)
		body := decode[scheduleEnvelope](t, rec)
		if body.Schedule.Kind != "override" || body.Schedule.ParentID != id || body.Schedule.EffectiveFrom != "2024-01-30" {
			t.Fatalf("unexpected override: %+v", body.Schedule)
		}
	})

	if got := h.TotalSessions(t, h.class); got != 3 {
		t.Fatalf("expected 3 sessions, got %d", got)
	}

	t.Run("list by month", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/schedules?class_id="+h.class+"&month=1&year=2024", nil)
		expectStatus(t, rec, http.StatusOK)
		body := decode[struct {
			Schedules []struct {
				ID          string `json:"id"`
				ClassLabel  string `json:"class_label"`
				Occurrences []struct {
					Date  string `json:"date"`
					State string `json:"state"`
				} `json:"occurrences"`
			} `json:"schedules"`
		}](t, rec)
		if len(body.Schedules) != 2 {
			t.Fatalf("expected series and override, got %d", len(body.Schedules))
		}
		series := body.Schedules[0]
		if series.ID != id || series.ClassLabel != "Algebra I" || len(series.Occurrences) != 5 {
			t.Fatalf("unexpected series view: %+v", series)
		}
		if series.Occurrences[2].State != "cancelled" || series.Occurrences[3].State != "deleted" || series.Occurrences[4].State != "superseded" {
			t.Fatalf("unexpected occurrence states: %+v", series.Occurrences)
		}
	})

	t.Run("toggle series off", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/schedules/"+id+"/toggle", map[string]any{"is_active": false})
		expectStatus(t, rec, http.StatusOK)
		body := decode[scheduleEnvelope](t, rec)
		if body.Schedule.IsActive || len(body.Schedule.CancelledDates) != 0 {
			t.Fatalf("expected inactive series without cancellations, got %+v", body.Schedule)
		}
	})

	t.Run("toggle series without a body flips it", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/schedules/"+id+"/toggle", nil)
		expectStatus(t, rec, http.StatusOK)
		if body := decode[scheduleEnvelope](t, rec); !body.Schedule.IsActive {
			t.Fatalf("expected active series")
		}
	})

	t.Run("delete series", func(t *testing.T) {
		expectStatus(t, h.do(t, http.MethodDelete, "/schedules/"+id, nil), http.StatusNoContent)
		expectStatus(t, h.do(t, http.MethodDelete, "/schedules/"+id, nil), http.StatusNotFound)
	})
}

func TestScheduleHandlers_ErrorMapping(t *testing.T) {
	h := newAPIHarness(t)
	series, _, err := h.Schedules.CreateSchedule(context.Background(), testfixtures.WeeklySeries(h.class, calendar.Monday, "2024-01-01", "2024-01-29"))
	if err != nil {
		t.Fatalf("CreateSchedule returned error: %v", err)
	}

	t.Run("validation errors are 422 with field details", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/schedules", map[string]any{
			"class_id":       h.class,
			"day_of_week":    1,
			"start_time":     "10:00:00",
			"end_time":       "09:00:00",
			"effective_from": "2024-01-01",
		})
		expectStatus(t, rec, http.StatusUnprocessableEntity)
		body := decode[errorResponse](t, rec)
		if _, ok := body.Errors["end_time"]; !ok {
			t.Fatalf("expected end_time error, got %v", body.Errors)
		}
	})

	t.Run("conflicts are 409 naming the class", func(t *testing.T) {
		input := testfixtures.SingleSession(h.other, "2024-01-08")
		rec := h.do(t, http.MethodPost, "/schedules", input)
		expectStatus(t, rec, http.StatusConflict)
		body := decode[errorResponse](t, rec)
		if body.Conflict == nil || body.Conflict.ScheduleID != series.ID || body.Conflict.ClassLabel != "Algebra I" {
			t.Fatalf("unexpected conflict payload: %+v", body)
		}
		if !body.Conflict.Date.Equal(calendar.MustParseDate("2024-01-08")) {
			t.Fatalf("expected conflict on 2024-01-08, got %s", body.Conflict.Date)
		}
	})

	t.Run("unknown schedules are 404", func(t *testing.T) {
		expectStatus(t, h.do(t, http.MethodPost, "/schedules/missing/toggle", nil), http.StatusNotFound)
		expectStatus(t, h.do(t, http.MethodPut, "/schedules/missing", testfixtures.WeeklySeries(h.class, calendar.Monday, "2024-01-01", "")), http.StatusNotFound)
	})

	t.Run("malformed requests are 400", func(t *testing.T) {
		expectStatus(t, h.do(t, http.MethodPost, "/schedules/"+series.ID+"/occurrences/15-01-2024/toggle", nil), http.StatusBadRequest)

		req := httptest.NewRequest(http.MethodPost, "/schedules", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		h.server.ServeHTTP(rec, req)
		expectStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("non numeric month is 422", func(t *testing.T) {
		rec := h.do(t, http.MethodGet, "/schedules?month=jan&year=2024", nil)
		expectStatus(t, rec, http.StatusUnprocessableEntity)
		if body := decode[errorResponse](t, rec); body.Errors["month"] == "" {
			t.Fatalf("expected month error, got %v", body.Errors)
		}
	})

	t.Run("unsupported methods are 405", func(t *testing.T) {
		rec := h.do(t, http.MethodPatch, "/schedules/"+series.ID, nil)
		expectStatus(t, rec, http.StatusMethodNotAllowed)
		if allow := rec.Header().Get("Allow"); allow != "PUT, DELETE" {
			t.Fatalf("unexpected Allow header %q", allow)
		}
	})
}

type failingScheduleService struct {
	scheduleService
	err error
}

func (s failingScheduleService) DeleteSchedule(ctx context.Context, id string) ([]application.Warning, error) {
	return nil, s.err
}

func TestScheduleHandlers_UnexpectedErrorsAre500(t *testing.T) {
	handler := NewScheduleHandler(failingScheduleService{err: errors.New("disk full")}, quietLogger())
	router := NewRouter(RouterConfig{Schedules: handler})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/schedules/schedule-1", nil))
	expectStatus(t, rec, http.StatusInternalServerError)
	if body := decode[errorResponse](t, rec); body.Message == "disk full" {
		t.Fatalf("expected internal error details to stay private")
	}
}

type warningScheduleService struct {
	scheduleService
}

func (warningScheduleService) DeleteSingleOccurrence(ctx context.Context, id string, date calendar.Date) ([]application.Warning, error) {
	return []application.Warning{{Code: application.WarningResyncFailed, Message: "stale"}}, nil
}

func TestScheduleHandlers_WarningsAreReturned(t *testing.T) {
	router := NewRouter(RouterConfig{Schedules: NewScheduleHandler(warningScheduleService{}, quietLogger())})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/schedules/schedule-1/occurrences/2024-01-08", nil))
	expectStatus(t, rec, http.StatusOK)
	body := decode[warningsResponse](t, rec)
	if len(body.Warnings) != 1 || body.Warnings[0].Code != application.WarningResyncFailed {
		t.Fatalf("unexpected warnings: %+v", body.Warnings)
	}
}

func TestResyncHandlers(t *testing.T) {
	h := newAPIHarness(t)
	if _, _, err := h.Schedules.CreateSchedule(context.Background(), testfixtures.WeeklySeries(h.class, calendar.Monday, "2024-01-01", "2024-01-29")); err != nil {
		t.Fatalf("CreateSchedule returned error: %v", err)
	}

	t.Run("one class", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/classes/"+h.class+"/resync", nil)
		expectStatus(t, rec, http.StatusOK)
		result := decode[application.ResyncResult](t, rec)
		if result.TotalSessions != 5 || result.Enrollments != 1 {
			t.Fatalf("unexpected resync result: %+v", result)
		}
	})

	t.Run("unknown class", func(t *testing.T) {
		expectStatus(t, h.do(t, http.MethodPost, "/classes/class-404/resync", nil), http.StatusNotFound)
	})

	t.Run("every class", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/resync", nil)
		expectStatus(t, rec, http.StatusOK)
		if body := decode[resyncAllResponse](t, rec); body.Resynced != 2 {
			t.Fatalf("expected 2 classes resynced, got %d", body.Resynced)
		}
	})
}
