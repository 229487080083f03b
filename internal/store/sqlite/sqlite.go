package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/i474232898/greensync-weather/internal/store"
	"github.com/i474232898/greensync-weather/internal/weather"
)

type Store struct {
	db *sql.DB
}

var _ weather.Store = (*Store)(nil)

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) SaveReading(ctx context.Context, farmID int64, r weather.CanonicalReading) error {
	if err := weather.ValidateReading(r); err != nil {
		return err
	}
	if r.CollectedAt.IsZero() {
		r.CollectedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weather_readings (
			id, farm_id, observation_time, wind_direction, wind_speed, outside_temp,
			dew_point, insolation, is_day, is_rain, locality, freshness, collected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.NewString(),
		farmID,
		r.ObservationTime,
		r.WindDirection,
		r.WindSpeed,
		r.OutsideTemp,
		r.DewPoint,
		r.Insolation,
		r.IsDay,
		r.IsRain,
		r.Locality,
		string(r.Freshness),
		r.CollectedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert reading for farm %d: %w", farmID, err)
	}
	return nil
}

const selectColumns = `
	farm_id, observation_time, wind_direction, wind_speed, outside_temp,
	dew_point, insolation, is_day, is_rain, locality, freshness, collected_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (weather.CanonicalReading, error) {
	var (
		r         weather.CanonicalReading
		freshness string
		collected int64
	)
	err := row.Scan(
		&r.LocalityID,
		&r.ObservationTime,
		&r.WindDirection,
		&r.WindSpeed,
		&r.OutsideTemp,
		&r.DewPoint,
		&r.Insolation,
		&r.IsDay,
		&r.IsRain,
		&r.Locality,
		&freshness,
		&collected,
	)
	if err != nil {
		return weather.CanonicalReading{}, err
	}
	r.Freshness = weather.FreshnessStatus(freshness)
	r.CollectedAt = time.UnixMilli(collected).UTC()
	return r, nil
}

func (s *Store) GetLatest(ctx context.Context, farmID int64) (weather.CanonicalReading, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+`
		FROM weather_readings
		WHERE farm_id = ?
		ORDER BY collected_at DESC, rowid DESC
		LIMIT 1`, farmID)

	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.CanonicalReading{}, store.ErrNotFound
	}
	return r, err
}

func (s *Store) GetRange(ctx context.Context, farmID int64, from, to time.Time) ([]weather.CanonicalReading, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+`
		FROM weather_readings
		WHERE farm_id = ? AND collected_at BETWEEN ? AND ?
		ORDER BY collected_at ASC, rowid ASC`,
		farmID, from.UTC().UnixMilli(), to.UTC().UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []weather.CanonicalReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context, farmID int64, since time.Time) (weather.ReadingStats, error) {
	var st weather.ReadingStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(AVG(outside_temp), 0),
			COALESCE(MIN(outside_temp), 0),
			COALESCE(MAX(outside_temp), 0),
			COALESCE(AVG(wind_speed), 0),
			COALESCE(SUM(insolation), 0),
			COALESCE(AVG(dew_point), 0),
			COALESCE(SUM(is_rain), 0),
			COUNT(*)
		FROM weather_readings
		WHERE farm_id = ? AND collected_at >= ?`,
		farmID, since.UTC().UnixMilli(),
	).Scan(
		&st.AvgTemp,
		&st.MinTemp,
		&st.MaxTemp,
		&st.AvgWindSpeed,
		&st.TotalInsolation,
		&st.AvgDewPoint,
		&st.RainCount,
		&st.RecordCount,
	)
	if err != nil {
		return weather.ReadingStats{}, err
	}
	return st, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS weather_readings (
			id TEXT PRIMARY KEY,
			farm_id INTEGER NOT NULL,
			observation_time TEXT NOT NULL,
			wind_direction REAL NOT NULL,
			wind_speed REAL NOT NULL,
			outside_temp REAL NOT NULL,
			dew_point REAL NOT NULL,
			insolation REAL NOT NULL,
			is_day INTEGER NOT NULL,
			is_rain INTEGER NOT NULL,
			locality TEXT NOT NULL DEFAULT '',
			freshness TEXT NOT NULL DEFAULT '',
			collected_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_weather_readings_farm_collected
			ON weather_readings (farm_id, collected_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}
