package application

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/example/class-scheduler/internal/calendar"
	"github.com/example/class-scheduler/internal/scheduler"
)

// inputValidator runs struct tag validation and reports failures keyed by
// JSON field name.
type inputValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newInputValidator() *inputValidator {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")

	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &inputValidator{validate: validate, translator: translator}
}

// check validates the struct tags of input. It never returns nil.
func (v *inputValidator) check(input any) *ValidationError {
	vErr := &ValidationError{}
	err := v.validate.Struct(input)
	if err == nil {
		return vErr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		vErr.add("input", err.Error())
		return vErr
	}
	for _, fe := range fieldErrs {
		vErr.add(fe.Field(), fe.Translate(v.translator))
	}
	return vErr
}

// scheduleFields holds ScheduleInput values after parsing.
type scheduleFields struct {
	kind          scheduler.Kind
	dayOfWeek     calendar.Weekday
	start         calendar.TimeOfDay
	end           calendar.TimeOfDay
	effectiveFrom calendar.Date
	effectiveTo   *calendar.Date
	sessionType   scheduler.SessionType
	isActive      bool
}

// parseScheduleInput checks the cross field rules of input for a schedule
// of the given kind and returns the parsed values.
func parseScheduleInput(input ScheduleInput, kind scheduler.Kind, vErr *ValidationError) scheduleFields {
	fields := scheduleFields{kind: kind, sessionType: input.SessionType, isActive: true}
	if fields.sessionType == "" {
		fields.sessionType = scheduler.SessionLecture
	}
	if input.IsActive != nil {
		fields.isActive = *input.IsActive
	}

	fields.start, fields.end = parseTimeWindow(input.StartTime, input.EndTime, vErr)

	from, fromOK := parseDateField("effective_from", input.EffectiveFrom, vErr)
	fields.effectiveFrom = from

	var to *calendar.Date
	if strings.TrimSpace(input.EffectiveTo) != "" {
		if parsed, ok := parseDateField("effective_to", input.EffectiveTo, vErr); ok {
			to = &parsed
		}
	}

	if kind.IsSingle() {
		if fromOK && to != nil && !to.Equal(from) {
			vErr.add("effective_to", "must equal effective_from for single date schedules")
		}
		if fromOK && input.DayOfWeek != calendar.WeekdayUnspecified && input.DayOfWeek != from.Weekday() {
			vErr.add("day_of_week", "is derived from effective_from for single date schedules")
		}
		if fromOK {
			fields.dayOfWeek = from.Weekday()
			d := from
			fields.effectiveTo = &d
		}
	} else {
		if !input.DayOfWeek.Valid() {
			vErr.add("day_of_week", "is required for recurring schedules")
		}
		fields.dayOfWeek = input.DayOfWeek
		if fromOK && to != nil && to.Before(from) {
			vErr.add("effective_to", "must not be before effective_from")
		}
		fields.effectiveTo = to
	}

	if input.IsOnline && strings.TrimSpace(input.MeetingURL) == "" {
		vErr.add("meeting_url", "is required when is_online is set")
	}
	return fields
}

func parseTimeWindow(rawStart, rawEnd string, vErr *ValidationError) (calendar.TimeOfDay, calendar.TimeOfDay) {
	start, startErr := calendar.ParseTimeOfDay(strings.TrimSpace(rawStart))
	if startErr != nil {
		vErr.add("start_time", "must be a time formatted HH:MM:SS")
	}
	end, endErr := calendar.ParseTimeOfDay(strings.TrimSpace(rawEnd))
	if endErr != nil {
		vErr.add("end_time", "must be a time formatted HH:MM:SS")
	}
	if startErr == nil && endErr == nil && !start.Before(end) {
		vErr.add("end_time", "must be after start_time")
	}
	return start, end
}

func parseDateField(field, raw string, vErr *ValidationError) (calendar.Date, bool) {
	d, err := calendar.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		vErr.add(field, "must be a date formatted YYYY-MM-DD")
		return calendar.Date{}, false
	}
	return d, true
}
