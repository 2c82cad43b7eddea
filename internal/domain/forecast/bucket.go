package forecast

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/okian/rostr/internal/domain/model"
)

// Granularity is the size of a reporting bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity accepts day, week or month in any case.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Day, Week, Month:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
}

// Bucket is one column of a report.
type Bucket struct {
	model.Interval
	Label string
}

// Buckets partitions the range starting at start into periods contiguous
// buckets. Day and week buckets are 1 and 7 days long. The first month bucket
// runs from start to the end of its month; later ones cover whole months.
func Buckets(start model.Date, g Granularity, periods int) ([]Bucket, error) {
	if periods <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPeriods, periods)
	}
	next, err := stepper(g)
	if err != nil {
		return nil, err
	}

	out := make([]Bucket, 0, periods)
	from := start
	for range periods {
		to := next(from)
		out = append(out, Bucket{
			Interval: model.Interval{From: from, To: to - 1},
			Label:    label(g, from),
		})
		from = to
	}
	return out, nil
}

// CheckBuckets verifies that caller-built buckets are non-empty, chronological
// and contiguous.
func CheckBuckets(buckets []Bucket) error {
	for i, b := range buckets {
		if b.Empty() {
			return fmt.Errorf("%w: bucket %d is empty", ErrNonContiguousBucket, i)
		}
		if i > 0 && b.From != buckets[i-1].To+1 {
			return fmt.Errorf("%w: bucket %d starts on %s", ErrNonContiguousBucket, i, b.From)
		}
	}
	return nil
}

// Span returns the interval covered by all buckets.
func Span(buckets []Bucket) model.Interval {
	if len(buckets) == 0 {
		return model.Interval{From: 1, To: 0}
	}
	return model.Interval{From: buckets[0].From, To: lo.LastOrEmpty(buckets).To}
}

func stepper(g Granularity) (func(model.Date) model.Date, error) {
	switch g {
	case Day:
		return func(d model.Date) model.Date { return d.AddDays(1) }, nil
	case Week:
		return func(d model.Date) model.Date { return d.AddDays(7) }, nil
	case Month:
		return func(d model.Date) model.Date { return d.AddMonths(1) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGranularity, g)
	}
}

func label(g Granularity, d model.Date) string {
	switch g {
	case Day:
		return d.Format("Jan 02")
	case Week:
		return "Wk " + d.Format("Jan 02")
	default:
		return d.Format("Jan 2006")
	}
}
