package scheduler

import (
	"github.com/i474232898/greensync-weather/internal/weather"
)

// Change is one field that differs between consecutive readings.
type Change struct {
	Field  string
	Before any
	After  any
}

// Diff lists the measured fields that changed from prev to next.
func Diff(prev, next weather.CanonicalReading) []Change {
	var changes []Change
	add := func(field string, before, after any) {
		if before != after {
			changes = append(changes, Change{Field: field, Before: before, After: after})
		}
	}

	add("observationTime", prev.ObservationTime, next.ObservationTime)
	add("windDirection", prev.WindDirection, next.WindDirection)
	add("windSpeed", prev.WindSpeed, next.WindSpeed)
	add("outsideTemp", prev.OutsideTemp, next.OutsideTemp)
	add("dewPoint", prev.DewPoint, next.DewPoint)
	add("insolation", prev.Insolation, next.Insolation)
	add("isDay", prev.IsDay, next.IsDay)
	add("isRain", prev.IsRain, next.IsRain)
	return changes
}
