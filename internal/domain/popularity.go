package domain

import (
	"errors"
	"time"
)

// PopularityRecord is one point-in-time sample of repository popularity
type PopularityRecord struct {
	ID         string     `json:"id,omitempty"`
	Repository Repository `json:"repository"`
	FetchedAt  time.Time  `json:"fetchedAt"`
	Stars      int        `json:"stars"`
	Forks      int        `json:"forks"`
	Watchers   int        `json:"watchers"`
}

// Validate checks required fields
func (r PopularityRecord) Validate() error {
	if r.Repository.IsZero() {
		return errors.New("missing repository")
	}
	if r.FetchedAt.IsZero() {
		return errors.New("missing fetchedAt")
	}
	if r.Stars < 0 || r.Forks < 0 || r.Watchers < 0 {
		return errors.New("negative popularity count")
	}
	return nil
}

// PopularityPoint is one sample in a popularity series
type PopularityPoint struct {
	FetchedAt time.Time `json:"fetchedAt"`
	Stars     int       `json:"stars"`
	Forks     int       `json:"forks"`
	Watchers  int       `json:"watchers"`
}

// PopularitySeries holds the samples of one repository sorted by fetch time
type PopularitySeries struct {
	Repository Repository        `json:"repository"`
	Points     []PopularityPoint `json:"points"`
}
