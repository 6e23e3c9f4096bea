package reclassify

import (
	"sort"
	"time"

	"github.com/BearBump/TripWatch/internal/models"
)

// Grace is how long after pickup an unfinished trip still counts as upcoming.
const Grace = 2 * time.Hour

func statusOf(statuses map[string]models.TripStatus, ref string) models.StatusCode {
	if st, ok := statuses[ref]; ok {
		return st.Status
	}
	return models.StatusUnrecognized
}

// BucketFor derives the bucket of a single trip. ok is false for a trip without a pickup time,
// which keeps whatever bucket it is already in.
func BucketFor(trip models.Trip, now time.Time, status models.StatusCode) (models.Bucket, bool) {
	if !trip.HasPickup() {
		return "", false
	}
	elapsed := now.Sub(trip.PickupAt)
	if elapsed < 0 {
		return models.BucketUpcoming, true
	}
	if !status.IsTerminal() && elapsed <= Grace {
		return models.BucketUpcoming, true
	}
	return models.BucketPast, true
}

// ClassifyOnLoad adjusts the backend's placement of a freshly fetched trip list: a past trip
// whose pickup was within the last two hours and whose cached status is not final goes back
// to upcoming. Everything else stays where the backend put it.
func ClassifyOnLoad(upcoming, past []models.Trip, now time.Time, statuses map[string]models.TripStatus) ([]models.Trip, []models.Trip) {
	up := make([]models.Trip, 0, len(upcoming)+len(past))
	up = append(up, upcoming...)
	out := make([]models.Trip, 0, len(past))

	for _, tr := range past {
		if tr.HasPickup() {
			elapsed := now.Sub(tr.PickupAt)
			if elapsed >= 0 && elapsed <= Grace && !statusOf(statuses, tr.Reference).IsTerminal() {
				up = append(up, tr)
				continue
			}
		}
		out = append(out, tr)
	}

	SortUpcoming(up)
	SortPast(out)
	return up, out
}

// ReclassifyOnStatusChange moves trips whose pickup has passed and that are either final or
// more than two hours old out of upcoming. Trips not yet picked up are never moved.
func ReclassifyOnStatusChange(upcoming []models.Trip, now time.Time, statuses map[string]models.TripStatus) ([]models.Trip, []models.Trip) {
	keep := make([]models.Trip, 0, len(upcoming))
	var moved []models.Trip
	for _, tr := range upcoming {
		if !tr.HasPickup() || !now.After(tr.PickupAt) {
			keep = append(keep, tr)
			continue
		}
		if statusOf(statuses, tr.Reference).IsTerminal() || now.Sub(tr.PickupAt) > Grace {
			moved = append(moved, tr)
			continue
		}
		keep = append(keep, tr)
	}
	return keep, moved
}

// MergePast prepends moved trips to past and re-sorts newest first.
func MergePast(past, moved []models.Trip) []models.Trip {
	out := make([]models.Trip, 0, len(past)+len(moved))
	out = append(out, moved...)
	out = append(out, past...)
	SortPast(out)
	return out
}

// SortUpcoming orders by pickup ascending. Trips without a pickup time go last.
func SortUpcoming(trips []models.Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		a, b := trips[i], trips[j]
		if a.HasPickup() != b.HasPickup() {
			return a.HasPickup()
		}
		return a.PickupAt.Before(b.PickupAt)
	})
}

// SortPast orders by pickup descending. Trips without a pickup time go last.
func SortPast(trips []models.Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		a, b := trips[i], trips[j]
		if a.HasPickup() != b.HasPickup() {
			return a.HasPickup()
		}
		return a.PickupAt.After(b.PickupAt)
	})
}
