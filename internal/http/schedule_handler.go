package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/scheduler"
)

type scheduleService interface {
	CreateSchedule(ctx context.Context, input application.ScheduleInput) (scheduler.Schedule, []application.Warning, error)
	UpdateSchedule(ctx context.Context, id string, input application.ScheduleInput) (scheduler.Schedule, []application.Warning, error)
	DeleteSchedule(ctx context.Context, id string) ([]application.Warning, error)
	ListSchedules(ctx context.Context, params application.ListSchedulesParams) ([]application.ScheduleView, error)
	ToggleSeries(ctx context.Context, id string, active *bool) (scheduler.Schedule, []application.Warning, error)
	ToggleSingleOccurrence(ctx context.Context, id string, date calendar.Date) (scheduler.Schedule, []application.Warning, error)
	DeleteSingleOccurrence(ctx context.Context, id string, date calendar.Date) ([]application.Warning, error)
	EditSingleOccurrence(ctx context.Context, id string, date calendar.Date, input application.OverrideInput) (scheduler.Schedule, []application.Warning, error)
}

type ScheduleHandler struct {
	service   scheduleService
	responder responder
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger)}
}

func (h *ScheduleHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var input application.ScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	schedule, warnings, err := h.service.CreateSchedule(r.Context(), input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSchedule(r.Context(), w, schedule, warnings, http.StatusCreated)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	scheduleID, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	var input application.ScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	schedule, warnings, err := h.service.UpdateSchedule(r.Context(), scheduleID, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSchedule(r.Context(), w, schedule, warnings, http.StatusOK)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	scheduleID, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	warnings, err := h.service.DeleteSchedule(r.Context(), scheduleID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderWarnings(r.Context(), w, warnings)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	params, err := buildListParams(r.URL.Query())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views, err := h.service.ListSchedules(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if views == nil {
		views = []application.ScheduleView{}
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSchedulesResponse{Schedules: views})
}

func (h *ScheduleHandler) ToggleSeries(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	scheduleID, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	var req toggleSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	schedule, warnings, err := h.service.ToggleSeries(r.Context(), scheduleID, req.IsActive)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSchedule(r.Context(), w, schedule, warnings, http.StatusOK)
}

func (h *ScheduleHandler) ToggleOccurrence(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	scheduleID, date, ok := h.occurrence(w, r)
	if !ok {
		return
	}

	schedule, warnings, err := h.service.ToggleSingleOccurrence(r.Context(), scheduleID, date)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSchedule(r.Context(), w, schedule, warnings, http.StatusOK)
}

func (h *ScheduleHandler) DeleteOccurrence(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	scheduleID, date, ok := h.occurrence(w, r)
	if !ok {
		return
	}

	warnings, err := h.service.DeleteSingleOccurrence(r.Context(), scheduleID, date)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderWarnings(r.Context(), w, warnings)
}

func (h *ScheduleHandler) EditOccurrence(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	scheduleID, date, ok := h.occurrence(w, r)
	if !ok {
		return
	}

	var input application.OverrideInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	override, warnings, err := h.service.EditSingleOccurrence(r.Context(), scheduleID, date, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSchedule(r.Context(), w, override, warnings, http.StatusCreated)
}

func (h *ScheduleHandler) scheduleID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return "", false
	}
	return id, true
}

func (h *ScheduleHandler) occurrence(w http.ResponseWriter, r *http.Request) (string, calendar.Date, bool) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return "", calendar.Date{}, false
	}
	date, err := calendar.ParseDate(strings.TrimSpace(r.PathValue("date")))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return "", calendar.Date{}, false
	}
	return id, date, true
}

func (h *ScheduleHandler) renderSchedule(ctx context.Context, w http.ResponseWriter, schedule scheduler.Schedule, warnings []application.Warning, status int) {
	h.responder.writeJSON(ctx, w, status, scheduleResponse{Schedule: schedule, Warnings: warnings})
}

// renderWarnings answers 204 unless there is something to report.
func (h *ScheduleHandler) renderWarnings(ctx context.Context, w http.ResponseWriter, warnings []application.Warning) {
	if len(warnings) == 0 {
		h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, warningsResponse{Warnings: warnings})
}

type toggleSeriesRequest struct {
	IsActive *bool `json:"is_active"`
}

type scheduleResponse struct {
	Schedule scheduler.Schedule    `json:"schedule"`
	Warnings []application.Warning `json:"warnings,omitempty"`
}

type warningsResponse struct {
	Warnings []application.Warning `json:"warnings"`
}

type listSchedulesResponse struct {
	Schedules []application.ScheduleView `json:"schedules"`
}

func buildListParams(values url.Values) (application.ListSchedulesParams, error) {
	params := application.ListSchedulesParams{
		ClassID:      strings.TrimSpace(values.Get("class_id")),
		LecturerID:   strings.TrimSpace(values.Get("lecturer_id")),
		DepartmentID: strings.TrimSpace(values.Get("department_id")),
		StudentID:    strings.TrimSpace(values.Get("student_id")),
	}

	invalid := make(map[string]string)
	if month := strings.TrimSpace(values.Get("month")); month != "" {
		n, err := strconv.Atoi(month)
		if err != nil {
			invalid["month"] = "must be a number"
		}
		params.Month = n
	}
	if year := strings.TrimSpace(values.Get("year")); year != "" {
		n, err := strconv.Atoi(year)
		if err != nil {
			invalid["year"] = "must be a number"
		}
		params.Year = n
	}
	if len(invalid) > 0 {
		return application.ListSchedulesParams{}, &application.ValidationError{FieldErrors: invalid}
	}

	return params, nil
}
