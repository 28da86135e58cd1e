package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday identifies a day of the week. The numeric values follow the
// storage convention: Monday is 1 and Sunday is 7. Zero is reserved for an
// unset value.
type Weekday int

const (
	// WeekdayUnspecified marks an unset weekday.
	WeekdayUnspecified Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// ErrInvalidWeekday is returned when a value cannot be mapped to a weekday.
var ErrInvalidWeekday = errors.New("calendar: invalid weekday")

// Conversion tables between the storage convention and time.Weekday. All
// conversions in the module go through these two tables.
var (
	toStd = [...]time.Weekday{
		Monday:    time.Monday,
		Tuesday:   time.Tuesday,
		Wednesday: time.Wednesday,
		Thursday:  time.Thursday,
		Friday:    time.Friday,
		Saturday:  time.Saturday,
		Sunday:    time.Sunday,
	}
	fromStd = [...]Weekday{
		time.Sunday:    Sunday,
		time.Monday:    Monday,
		time.Tuesday:   Tuesday,
		time.Wednesday: Wednesday,
		time.Thursday:  Thursday,
		time.Friday:    Friday,
		time.Saturday:  Saturday,
	}
	weekdayNames = [...]string{
		Monday:    "monday",
		Tuesday:   "tuesday",
		Wednesday: "wednesday",
		Thursday:  "thursday",
		Friday:    "friday",
		Saturday:  "saturday",
		Sunday:    "sunday",
	}
)

// AllWeekdays lists every valid weekday from Monday to Sunday.
func AllWeekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// WeekdayFromStd maps a time.Weekday onto the storage convention.
func WeekdayFromStd(day time.Weekday) (Weekday, error) {
	if day < time.Sunday || day > time.Saturday {
		return WeekdayUnspecified, fmt.Errorf("%w: %d", ErrInvalidWeekday, int(day))
	}
	return fromStd[day], nil
}

// WeekdayFromNumber maps a stored 1 (Monday) to 7 (Sunday) number onto a Weekday.
func WeekdayFromNumber(n int) (Weekday, error) {
	w := Weekday(n)
	if !w.Valid() {
		return WeekdayUnspecified, fmt.Errorf("%w: %d", ErrInvalidWeekday, n)
	}
	return w, nil
}

// ParseWeekday accepts an English day name, its three letter abbreviation,
// or the storage number.
func ParseWeekday(value string) (Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return WeekdayUnspecified, fmt.Errorf("%w: empty value", ErrInvalidWeekday)
	}
	if n, err := strconv.Atoi(v); err == nil {
		return WeekdayFromNumber(n)
	}
	for _, w := range AllWeekdays() {
		name := weekdayNames[w]
		if v == name || v == name[:3] {
			return w, nil
		}
	}
	return WeekdayUnspecified, fmt.Errorf("%w: %q", ErrInvalidWeekday, value)
}

// Valid reports whether w is one of Monday..Sunday.
func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

// Std converts w to the time package representation. It panics on an invalid weekday.
func (w Weekday) Std() time.Weekday {
	if !w.Valid() {
		panic(fmt.Sprintf("calendar: Std called on invalid weekday %d", int(w)))
	}
	return toStd[w]
}

// Number returns the storage number, 1 (Monday) through 7 (Sunday).
func (w Weekday) Number() int {
	return int(w)
}

// DaysUntil returns how many days forward from w the next target falls, in [0, 6].
func (w Weekday) DaysUntil(target Weekday) int {
	return (int(target) - int(w) + 7) % 7
}

// String returns the lower case English day name.
func (w Weekday) String() string {
	if !w.Valid() {
		return "unspecified"
	}
	return weekdayNames[w]
}

// Title returns the capitalized day name for user facing messages.
func (w Weekday) Title() string {
	s := w.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// MarshalText implements encoding.TextMarshaler. The unset weekday encodes as "".
func (w Weekday) MarshalText() ([]byte, error) {
	if w == WeekdayUnspecified {
		return []byte{}, nil
	}
	if !w.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, int(w))
	}
	return []byte(w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Weekday) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*w = WeekdayUnspecified
		return nil
	}
	parsed, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// UnmarshalJSON accepts either a JSON number (1-7) or a day name string.
func (w *Weekday) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		parsed, err := WeekdayFromNumber(n)
		if err != nil {
			return err
		}
		*w = parsed
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidWeekday, string(data))
	}
	return w.UnmarshalText([]byte(s))
}
