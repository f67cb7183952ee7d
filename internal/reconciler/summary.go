package reconciler

import (
	"github.com/montanaflynn/stats"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
)

// Summary describes a canonical series at a glance
type Summary struct {
	Repository  string  `json:"repository"`
	Metric      string  `json:"metric"`
	Days        int     `json:"days"`
	FirstDate   string  `json:"firstDate,omitempty"`
	LastDate    string  `json:"lastDate,omitempty"`
	Total       int     `json:"total"`
	TotalUnique int     `json:"totalUnique"`
	Mean        float64 `json:"mean"`
	Median      float64 `json:"median"`
	Peak        int     `json:"peak"`
	PeakDate    string  `json:"peakDate,omitempty"`
}

// Summarize computes totals and central tendencies over the days present in the series.
// Absent dates are not treated as zero.
func Summarize(series *domain.Series) Summary {
	sum := Summary{
		Repository: series.Repository.String(),
		Metric:     string(series.Metric),
		Days:       len(series.Entries),
	}
	if len(series.Entries) == 0 {
		return sum
	}

	counts := make(stats.Float64Data, 0, len(series.Entries))
	for _, e := range series.Entries {
		counts = append(counts, float64(e.Count))
		sum.Total += e.Count
		sum.TotalUnique += e.UniqueCount
		if e.Count > sum.Peak || sum.PeakDate == "" {
			sum.Peak = e.Count
			sum.PeakDate = e.Date
		}
	}
	sum.FirstDate = series.Entries[0].Date
	sum.LastDate = series.Entries[len(series.Entries)-1].Date

	// stats only errors on empty input, handled above
	mean, _ := counts.Mean()
	median, _ := counts.Median()
	sum.Mean, _ = stats.Round(mean, 2)
	sum.Median, _ = stats.Round(median, 2)
	return sum
}
