package pricing

import (
	"math"
	"time"
)

// Quote is the billed outcome of a parking session.
type Quote struct {
	BilledHours int
	Cost        float64
}

// Compute bills a session from start to end at the given hourly rate.
// Elapsed time is rounded up to whole hours with a minimum of one hour,
// so a 90 minute session bills 2 hours and an instant (or clock-skewed)
// session still bills 1.
func Compute(start, end time.Time, hourlyRate float64) Quote {
	hours := 1
	if elapsed := end.Sub(start); elapsed > 0 {
		hours = int(math.Ceil(elapsed.Hours()))
		if hours < 1 {
			hours = 1
		}
	}
	return Quote{
		BilledHours: hours,
		Cost:        float64(hours) * hourlyRate,
	}
}
