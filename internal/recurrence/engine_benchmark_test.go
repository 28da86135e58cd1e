package recurrence

import (
	"testing"

	"github.com/example/class-scheduler/internal/calendar"
)

func BenchmarkRuleCount(b *testing.B) {
	rule := Rule{
		Weekday:  calendar.Wednesday,
		StartsOn: calendar.MustParseDate("2000-01-01"),
	}
	end := calendar.MustParseDate("2099-12-31")
	opts := GenerateOptions{RangeEnd: &end}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if n, err := rule.Count(opts); err != nil || n == 0 {
			b.Fatalf("unexpected count %d, err %v", n, err)
		}
	}
}

func BenchmarkRuleExpandTerm(b *testing.B) {
	start := calendar.MustParseDate("2024-04-01")
	end := start.AddDays(7 * 20)
	rule := Rule{Weekday: calendar.Monday, StartsOn: start, EndsOn: &end}
	ex := Exceptions{
		Cancelled:  calendar.NewDateSet(start.AddDays(14), start.AddDays(28)),
		Deleted:    calendar.NewDateSet(start.AddDays(35)),
		Superseded: calendar.NewDateSet(start.AddDays(49)),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		occurrences, err := rule.Expand(ex, GenerateOptions{})
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if len(occurrences) != 21 {
			b.Fatalf("expected 21 occurrences, got %d", len(occurrences))
		}
	}
}
