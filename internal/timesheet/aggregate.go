package timesheet

import (
	"fmt"
	"sort"
	"time"
)

// SupplementalData holds statistics derived from a set of entries relative to
// today.
type SupplementalData struct {
	Today        int64      `json:"today"`
	Future       FutureData `json:"future"`
	NonBillables []string   `json:"nonBillables"`
	// LeaveMappings maps leave codes to names (Unanet).
	LeaveMappings map[string]string `json:"leaveMappings,omitempty"`
	// PlanableKeys names the leave codes usable for planning (Unanet).
	PlanableKeys map[string]string `json:"planableKeys,omitempty"`
}

// FutureData summarizes entries dated after today.
type FutureData struct {
	Days     int   `json:"days"`
	Duration int64 `json:"duration"`
}

// Options configures an aggregation pass.
type Options struct {
	Catalog    Catalog
	Classifier Classifier
	Today      time.Time
}

// Aggregate buckets entries into periods by category display name and
// derives supplemental data over every entry, including those outside all
// periods. The input periods are not modified; every period appears in the
// output with a non-nil Timesheets map.
func Aggregate(entries []TimeEntry, periods []Period, opts Options) ([]Period, SupplementalData, error) {
	for _, p := range periods {
		if err := p.Validate(); err != nil {
			return nil, SupplementalData{}, err
		}
	}

	names := make(map[string]string)
	displayName := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		n := DisplayName(id, opts.Catalog)
		names[id] = n
		return n
	}

	out := make([]Period, len(periods))
	for i, p := range periods {
		p.StartDate, p.EndDate = Day(p.StartDate), Day(p.EndDate)
		p.Timesheets = make(map[string]int64)
		for _, e := range entries {
			if p.Range().Contains(Day(e.Date)) {
				p.Timesheets[displayName(e.CategoryID)] += e.DurationSeconds
			}
		}
		out[i] = p
	}

	supp, err := supplemental(entries, opts, displayName)
	if err != nil {
		return nil, SupplementalData{}, err
	}
	return out, supp, nil
}

func supplemental(entries []TimeEntry, opts Options, displayName func(string) string) (SupplementalData, error) {
	today := Day(opts.Today)
	futureDays := make(map[time.Time]bool)
	nonBillables := make(map[string]bool)
	classified := make(map[string]bool)

	var supp SupplementalData
	for _, e := range entries {
		day := Day(e.Date)
		switch {
		case day.Equal(today):
			supp.Today += e.DurationSeconds
		case day.After(today):
			futureDays[day] = true
			supp.Future.Duration += e.DurationSeconds
		}

		if opts.Classifier == nil || classified[e.CategoryID] {
			continue
		}
		classified[e.CategoryID] = true
		nb, err := opts.Classifier.IsNonBillable(e.CategoryID)
		if err != nil {
			return SupplementalData{}, fmt.Errorf("classifying category %s: %w", e.CategoryID, err)
		}
		if nb {
			nonBillables[displayName(e.CategoryID)] = true
		}
	}
	supp.Future.Days = len(futureDays)
	supp.NonBillables = sortedKeys(nonBillables)
	return supp, nil
}

// MergeSupplementalData combines data from independent fetches: today and
// future durations and future day counts are summed, non-billable names are
// unioned, and leave maps are merged with later values winning.
func MergeSupplementalData(data ...SupplementalData) SupplementalData {
	merged := SupplementalData{NonBillables: []string{}}
	names := make(map[string]bool)
	for _, d := range data {
		merged.Today += d.Today
		merged.Future.Days += d.Future.Days
		merged.Future.Duration += d.Future.Duration
		for _, n := range d.NonBillables {
			names[n] = true
		}
		merged.LeaveMappings = mergeMaps(merged.LeaveMappings, d.LeaveMappings)
		merged.PlanableKeys = mergeMaps(merged.PlanableKeys, d.PlanableKeys)
	}
	merged.NonBillables = sortedKeys(names)
	return merged
}

func mergeMaps(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
