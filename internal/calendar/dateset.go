package calendar

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// DateSet is an ordered set of dates. It is immutable: every mutating
// method returns a new set, so values can be shared between copies of a
// schedule without aliasing.
//
// DateSet is the single encode/decode boundary for exception dates. It is
// stored as a JSON array of YYYY-MM-DD strings, and decoding also accepts a
// JSON string that itself holds such an array, a comma separated list, an
// empty value and NULL.
type DateSet struct {
	dates []Date
}

// NewDateSet builds a set from dates, dropping duplicates.
func NewDateSet(dates ...Date) DateSet {
	if len(dates) == 0 {
		return DateSet{}
	}
	out := slices.Clone(dates)
	slices.SortFunc(out, Date.Compare)
	out = slices.CompactFunc(out, Date.Equal)
	return DateSet{dates: out}
}

// ParseDateSet parses a persisted date set.
func ParseDateSet(raw string) (DateSet, error) {
	var s DateSet
	if err := s.decode([]byte(raw)); err != nil {
		return DateSet{}, err
	}
	return s, nil
}

// Len returns the number of dates in the set.
func (s DateSet) Len() int { return len(s.dates) }

// IsEmpty reports whether the set has no dates.
func (s DateSet) IsEmpty() bool { return len(s.dates) == 0 }

// Dates returns the dates in ascending order.
func (s DateSet) Dates() []Date { return slices.Clone(s.dates) }

// Contains reports whether d is in the set.
func (s DateSet) Contains(d Date) bool {
	_, found := slices.BinarySearchFunc(s.dates, d, Date.Compare)
	return found
}

// Add returns a set that also contains d.
func (s DateSet) Add(d Date) DateSet {
	i, found := slices.BinarySearchFunc(s.dates, d, Date.Compare)
	if found {
		return s
	}
	return DateSet{dates: slices.Insert(slices.Clone(s.dates), i, d)}
}

// Remove returns a set without d.
func (s DateSet) Remove(d Date) DateSet {
	i, found := slices.BinarySearchFunc(s.dates, d, Date.Compare)
	if !found {
		return s
	}
	return DateSet{dates: slices.Delete(slices.Clone(s.dates), i, i+1)}
}

// Union returns the dates present in either set.
func (s DateSet) Union(other DateSet) DateSet {
	if other.IsEmpty() {
		return s
	}
	if s.IsEmpty() {
		return other
	}
	return NewDateSet(append(s.Dates(), other.dates...)...)
}

// Filter returns the dates for which keep reports true.
func (s DateSet) Filter(keep func(Date) bool) DateSet {
	out := make([]Date, 0, len(s.dates))
	for _, d := range s.dates {
		if keep(d) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return DateSet{}
	}
	return DateSet{dates: out}
}

// Equal reports whether both sets hold the same dates.
func (s DateSet) Equal(other DateSet) bool {
	return slices.EqualFunc(s.dates, other.dates, Date.Equal)
}

// String formats the set as a comma separated list.
func (s DateSet) String() string {
	parts := make([]string, len(s.dates))
	for i, d := range s.dates {
		parts[i] = d.String()
	}
	return strings.Join(parts, ",")
}

// MarshalJSON encodes the set as a JSON array, never null.
func (s DateSet) MarshalJSON() ([]byte, error) {
	parts := make([]string, len(s.dates))
	for i, d := range s.dates {
		parts[i] = d.String()
	}
	return json.Marshal(parts)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *DateSet) UnmarshalJSON(data []byte) error {
	return s.decode(data)
}

// Value implements driver.Valuer.
func (s DateSet) Value() (driver.Value, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *DateSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = DateSet{}
		return nil
	case string:
		return s.decode([]byte(v))
	case []byte:
		return s.decode(v)
	default:
		return fmt.Errorf("calendar: cannot scan %T into DateSet", src)
	}
}

func (s *DateSet) decode(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`)) {
		*s = DateSet{}
		return nil
	}

	switch trimmed[0] {
	case '[':
		var raw []string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("calendar: decode date set: %w", err)
		}
		return s.fromStrings(raw)
	case '"':
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return fmt.Errorf("calendar: decode date set: %w", err)
		}
		return s.decode([]byte(inner))
	default:
		return s.fromStrings(strings.Split(string(trimmed), ","))
	}
}

func (s *DateSet) fromStrings(raw []string) error {
	dates := make([]Date, 0, len(raw))
	for _, value := range raw {
		if strings.TrimSpace(value) == "" {
			continue
		}
		d, err := ParseDate(value)
		if err != nil {
			return err
		}
		dates = append(dates, d)
	}
	*s = NewDateSet(dates...)
	return nil
}
