// Package archive exports stored readings to Parquet files.
package archive

import (
	"errors"
	"io"
	"os"
	"time"

	parquet "github.com/parquet-go/parquet-go"

	"github.com/i474232898/greensync-weather/internal/weather"
)

// Row is the Parquet schema for one archived reading.
type Row struct {
	FarmID          int64   `parquet:"farm_id"`
	Locality        string  `parquet:"locality"`
	ObservationTime string  `parquet:"observation_time"`
	WindDirection   float64 `parquet:"wind_direction"`
	WindSpeed       float64 `parquet:"wind_speed"`
	OutsideTemp     float64 `parquet:"outside_temp"`
	DewPoint        float64 `parquet:"dew_point"`
	Insolation      float64 `parquet:"insolation"`
	IsDay           bool    `parquet:"is_day"`
	IsRain          bool    `parquet:"is_rain"`
	Freshness       string  `parquet:"freshness"`
	// CollectedAt is epoch milliseconds.
	CollectedAt int64 `parquet:"collected_at"`
}

// FromReading converts a reading to its archived form.
func FromReading(r weather.CanonicalReading) Row {
	return Row{
		FarmID:          r.LocalityID,
		Locality:        r.Locality,
		ObservationTime: r.ObservationTime,
		WindDirection:   r.WindDirection,
		WindSpeed:       r.WindSpeed,
		OutsideTemp:     r.OutsideTemp,
		DewPoint:        r.DewPoint,
		Insolation:      r.Insolation,
		IsDay:           r.IsDay,
		IsRain:          r.IsRain,
		Freshness:       string(r.Freshness),
		CollectedAt:     r.CollectedAt.UnixMilli(),
	}
}

// Reading converts an archived row back to a reading.
func (row Row) Reading() weather.CanonicalReading {
	return weather.CanonicalReading{
		ObservationTime: row.ObservationTime,
		WindDirection:   row.WindDirection,
		WindSpeed:       row.WindSpeed,
		OutsideTemp:     row.OutsideTemp,
		DewPoint:        row.DewPoint,
		Insolation:      row.Insolation,
		IsDay:           row.IsDay,
		IsRain:          row.IsRain,
		LocalityID:      row.FarmID,
		Locality:        row.Locality,
		Freshness:       weather.FreshnessStatus(row.Freshness),
		CollectedAt:     time.UnixMilli(row.CollectedAt).UTC(),
	}
}

// WriteReadings atomically writes readings to path via a .tmp intermediate
// file.
func WriteReadings(path string, readings []weather.CanonicalReading) error {
	rows := make([]Row, 0, len(readings))
	for _, r := range readings {
		rows = append(rows, FromReading(r))
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := parquet.NewGenericWriter[Row](f)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadReadings reads every reading archived in path.
func ReadReadings(path string) ([]weather.CanonicalReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := parquet.NewGenericReader[Row](f)
	defer r.Close()

	var all []weather.CanonicalReading
	buf := make([]Row, 256)
	for {
		n, err := r.Read(buf)
		for _, row := range buf[:n] {
			all = append(all, row.Reading())
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return all, err
		}
		if n == 0 {
			break
		}
	}
	return all, nil
}
