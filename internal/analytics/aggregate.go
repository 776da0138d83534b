// Package analytics folds the registration set into dashboard statistics.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bis-events/gatepass/internal/models"
)

const (
	// DefaultDays is used when lastDays is missing or not positive.
	DefaultDays = 30
	// MaxDays caps the time series.
	MaxDays = 366
	// RecentLimit and RecentCheckedInLimit cap the recent lists.
	RecentLimit          = 50
	RecentCheckedInLimit = 20

	dateLayout = "2006-01-02"
)

// Meta holds the headline counts.
type Meta struct {
	Total         int     `json:"total"`
	Approved      int     `json:"approved"`
	Pending       int     `json:"pending"`
	CheckedIn     int     `json:"checkedIn"`
	D1            int     `json:"d1"`
	D2            int     `json:"d2"`
	D3            int     `json:"d3"`
	ConversionPct float64 `json:"conversionPct"`
	CheckedInPct  float64 `json:"checkedInPct"`
}

// Bucket is one calendar day of the time series, keyed by submission date.
type Bucket struct {
	Date          string `json:"date"`
	Registrations int    `json:"registrations"`
	Approved      int    `json:"approved"`
	CheckedIn     int    `json:"checkedIn"`
}

// Breakdown splits registrations by payment review outcome.
type Breakdown struct {
	Paid    int `json:"paid"`
	Pending int `json:"pending"`
	Unpaid  int `json:"unpaid"`
}

// Report is the full statistics payload.
type Report struct {
	LastDays        int                   `json:"lastDays"`
	UnknownDates    int                   `json:"unknownDates"`
	Meta            Meta                  `json:"meta"`
	Timeseries      []Bucket              `json:"timeseries"`
	Breakdown       Breakdown             `json:"breakdown"`
	Recent          []models.Registration `json:"recent"`
	RecentCheckedIn []models.Registration `json:"recentCheckedIn"`
}

var timestampLayouts = []string{
	models.TimestampLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	dateLayout,
}

// ParseTimestamp parses a created-at value in loc. The second result is
// false for values that do not parse.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// NormalizeDays applies the default and the cap.
func NormalizeDays(lastDays int) int {
	if lastDays <= 0 {
		return DefaultDays
	}
	if lastDays > MaxDays {
		return MaxDays
	}
	return lastDays
}

func percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(float64(num)*1000/float64(den)) / 10
}

type dated struct {
	reg   models.Registration
	at    time.Time
	known bool
}

// Aggregate computes the report for regs as of now, bucketing by calendar
// date in loc.
func Aggregate(regs []models.Registration, lastDays int, now time.Time, loc *time.Location) *Report {
	if loc == nil {
		loc = time.UTC
	}
	lastDays = NormalizeDays(lastDays)
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	rep := &Report{
		LastDays:        lastDays,
		Timeseries:      make([]Bucket, lastDays),
		Recent:          []models.Registration{},
		RecentCheckedIn: []models.Registration{},
	}
	index := make(map[string]int, lastDays)
	for i := 0; i < lastDays; i++ {
		key := today.AddDate(0, 0, i-lastDays+1).Format(dateLayout)
		rep.Timeseries[i] = Bucket{Date: key}
		index[key] = i
	}

	rows := make([]dated, 0, len(regs))
	for _, reg := range regs {
		m := &rep.Meta
		m.Total++
		approved := reg.Status == models.StatusApproved
		if approved {
			m.Approved++
		}
		if reg.Status == models.StatusPending {
			m.Pending++
		}
		if reg.CheckedIn {
			m.CheckedIn++
		}
		if reg.AttendanceMarked(1) {
			m.D1++
		}
		if reg.AttendanceMarked(2) {
			m.D2++
		}
		if reg.AttendanceMarked(3) {
			m.D3++
		}

		at, ok := ParseTimestamp(reg.CreatedAt, loc)
		if !ok {
			rep.UnknownDates++
		} else if i, in := index[at.Format(dateLayout)]; in {
			b := &rep.Timeseries[i]
			b.Registrations++
			if approved {
				b.Approved++
			}
			if reg.CheckedIn {
				b.CheckedIn++
			}
		}
		rows = append(rows, dated{reg: reg, at: at, known: ok})
	}

	rep.Meta.ConversionPct = percent(rep.Meta.Approved, rep.Meta.Total)
	rep.Meta.CheckedInPct = percent(rep.Meta.CheckedIn, rep.Meta.Approved)
	rep.Breakdown = Breakdown{
		Paid:    rep.Meta.Approved,
		Pending: rep.Meta.Pending,
		Unpaid:  rep.Meta.Total - rep.Meta.Approved - rep.Meta.Pending,
	}

	// newest first; unknown dates sort as oldest; ties by insertion order, newest first
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.known != b.known {
			return a.known
		}
		if a.known && !a.at.Equal(b.at) {
			return a.at.After(b.at)
		}
		return a.reg.Seq > b.reg.Seq
	})
	for _, r := range rows {
		if len(rep.Recent) < RecentLimit {
			rep.Recent = append(rep.Recent, r.reg)
		}
		if r.reg.CheckedIn && len(rep.RecentCheckedIn) < RecentCheckedInLimit {
			rep.RecentCheckedIn = append(rep.RecentCheckedIn, r.reg)
		}
	}
	return rep
}
