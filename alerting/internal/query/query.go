package query

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"

	"weaponwatch/alerting/internal/models"
)

// All is the sentinel for an unconstrained severity or status filter.
const All = "all"

var ErrUnknownSortKey = errors.New("unknown sort key")

type SortKey string

const (
	SortTimestamp  SortKey = "timestamp"
	SortSeverity   SortKey = "severity"
	SortConfidence SortKey = "confidence"
)

// ParseSortKey maps a request value to a sort key. Empty means timestamp.
func ParseSortKey(raw string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(raw))); key {
	case "":
		return SortTimestamp, nil
	case SortTimestamp, SortSeverity, SortConfidence:
		return key, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, raw)
	}
}

// Filter is a conjunction of criteria. Empty fields or All leave a
// dimension unconstrained.
type Filter struct {
	Search   string
	Severity string
	Status   string
}

func (f Filter) Match(a models.Alert) bool {
	if !unconstrained(f.Severity) && string(a.Severity) != f.Severity {
		return false
	}
	if !unconstrained(f.Status) && string(a.Status) != f.Status {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(a.Camera), term) ||
		strings.Contains(strings.ToLower(a.Weapon), term) ||
		strings.Contains(strings.ToLower(a.Location), term)
}

func unconstrained(v string) bool {
	return v == "" || strings.EqualFold(v, All)
}

// Select collects the alerts matching f, preserving input order.
func Select(alerts iter.Seq[models.Alert], f Filter) []models.Alert {
	var out []models.Alert
	for a := range alerts {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

// Sort orders alerts in place, descending by key. Ties keep input order,
// except severity ties which fall back to newest first.
func Sort(alerts []models.Alert, key SortKey) {
	switch key {
	case SortSeverity:
		slices.SortStableFunc(alerts, func(a, b models.Alert) int {
			if c := cmp.Compare(b.Severity.Rank(), a.Severity.Rank()); c != 0 {
				return c
			}
			return b.Timestamp.Compare(a.Timestamp)
		})
	case SortConfidence:
		slices.SortStableFunc(alerts, func(a, b models.Alert) int {
			return cmp.Compare(b.Confidence, a.Confidence)
		})
	default:
		slices.SortStableFunc(alerts, func(a, b models.Alert) int {
			return b.Timestamp.Compare(a.Timestamp)
		})
	}
}

// Apply filters then sorts a snapshot.
func Apply(alerts iter.Seq[models.Alert], f Filter, key SortKey) []models.Alert {
	out := Select(alerts, f)
	Sort(out, key)
	return out
}

// Stats summarises the whole, unfiltered collection.
type Stats struct {
	Total             int
	CriticalCount     int
	PendingCount      int
	AcknowledgedCount int
	// AverageConfidence is NaN when there are no alerts.
	AverageConfidence float64
}

func Aggregate(alerts iter.Seq[models.Alert]) Stats {
	var s Stats
	var sum float64
	for a := range alerts {
		s.Total++
		sum += a.Confidence
		if a.Severity == models.SeverityCritical {
			s.CriticalCount++
		}
		switch a.Status {
		case models.StatusPending:
			s.PendingCount++
		case models.StatusAcknowledged:
			s.AcknowledgedCount++
		}
	}
	s.AverageConfidence = math.NaN()
	if s.Total > 0 {
		s.AverageConfidence = sum / float64(s.Total)
	}
	return s
}

// Response renders the stats for JSON, where NaN becomes null.
func (s Stats) Response() models.StatsResponse {
	resp := models.StatsResponse{
		Total:             s.Total,
		CriticalCount:     s.CriticalCount,
		PendingCount:      s.PendingCount,
		AcknowledgedCount: s.AcknowledgedCount,
	}
	if !math.IsNaN(s.AverageConfidence) {
		avg := s.AverageConfidence
		resp.AverageConfidence = &avg
	}
	return resp
}
