package weather

// SummarizeReadings computes period statistics over readings. Temperature,
// wind and dew point are averaged; insolation is summed.
func SummarizeReadings(readings []CanonicalReading) ReadingStats {
	if len(readings) == 0 {
		return ReadingStats{}
	}

	var (
		sumTemp       float64
		sumWind       float64
		sumDew        float64
		sumInsolation float64
		rainCount     int
	)

	minTemp := readings[0].OutsideTemp
	maxTemp := readings[0].OutsideTemp

	for _, r := range readings {
		sumTemp += r.OutsideTemp
		sumWind += r.WindSpeed
		sumDew += r.DewPoint
		sumInsolation += r.Insolation

		if r.OutsideTemp < minTemp {
			minTemp = r.OutsideTemp
		}
		if r.OutsideTemp > maxTemp {
			maxTemp = r.OutsideTemp
		}
		if r.IsRain {
			rainCount++
		}
	}

	n := float64(len(readings))

	return ReadingStats{
		AvgTemp:         sumTemp / n,
		MinTemp:         minTemp,
		MaxTemp:         maxTemp,
		AvgWindSpeed:    sumWind / n,
		TotalInsolation: sumInsolation,
		AvgDewPoint:     sumDew / n,
		RainCount:       rainCount,
		RecordCount:     len(readings),
	}
}
