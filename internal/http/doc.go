// Package http exposes the schedule services over JSON.
//
// The router serves the following endpoints:
//   - GET /schedules: lists schedules. Query parameters class_id,
//     lecturer_id, department_id and student_id filter the result; month
//     and year together scope it to one month and add per-date occurrences.
//   - POST /schedules, PUT /schedules/{id}, DELETE /schedules/{id}: schedule
//     management exchanging application.ScheduleInput. Deleting a series
//     also deletes its overrides.
//   - POST /schedules/{id}/toggle: switches a series on or off. An optional
//     body {"is_active": bool} sets the state explicitly.
//   - POST /schedules/{id}/occurrences/{date}/toggle: cancels or restores one
//     occurrence.
//   - DELETE /schedules/{id}/occurrences/{date}: permanently removes one
//     occurrence.
//   - PUT /schedules/{id}/occurrences/{date}: replaces one occurrence with an
//     override built from application.OverrideInput.
//   - POST /classes/{id}/resync, POST /resync: recompute enrollment session
//     counts for one class or for every class.
//
// Validation failures map to 422, room conflicts to 409 and unknown
// schedules to 404. Non-fatal problems after a committed write are
// returned in a "warnings" array next to the result.
package http
