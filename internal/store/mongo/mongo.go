package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/i474232898/greensync-weather/internal/store"
	"github.com/i474232898/greensync-weather/internal/weather"
)

const collectionName = "weather_readings"

// readingDoc is the stored form of a CanonicalReading.
type readingDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	FarmID          int64              `bson:"farmId"`
	ObservationTime string             `bson:"observationTime"`
	WindDirection   float64            `bson:"windDirection"`
	WindSpeed       float64            `bson:"windSpeed"`
	OutsideTemp     float64            `bson:"outsideTemp"`
	DewPoint        float64            `bson:"dewPoint"`
	Insolation      float64            `bson:"insolation"`
	IsDay           bool               `bson:"isDay"`
	IsRain          bool               `bson:"isRain"`
	Locality        string             `bson:"locality,omitempty"`
	Freshness       string             `bson:"freshness,omitempty"`
	CollectedAt     time.Time          `bson:"collectedAt"`
}

func toDoc(farmID int64, r weather.CanonicalReading) readingDoc {
	return readingDoc{
		FarmID:          farmID,
		ObservationTime: r.ObservationTime,
		WindDirection:   r.WindDirection,
		WindSpeed:       r.WindSpeed,
		OutsideTemp:     r.OutsideTemp,
		DewPoint:        r.DewPoint,
		Insolation:      r.Insolation,
		IsDay:           r.IsDay,
		IsRain:          r.IsRain,
		Locality:        r.Locality,
		Freshness:       string(r.Freshness),
		CollectedAt:     r.CollectedAt.UTC(),
	}
}

func (d readingDoc) reading() weather.CanonicalReading {
	return weather.CanonicalReading{
		ObservationTime: d.ObservationTime,
		WindDirection:   d.WindDirection,
		WindSpeed:       d.WindSpeed,
		OutsideTemp:     d.OutsideTemp,
		DewPoint:        d.DewPoint,
		Insolation:      d.Insolation,
		IsDay:           d.IsDay,
		IsRain:          d.IsRain,
		LocalityID:      d.FarmID,
		Locality:        d.Locality,
		Freshness:       weather.FreshnessStatus(d.Freshness),
		CollectedAt:     d.CollectedAt.UTC(),
	}
}

type Store struct {
	client   *mongo.Client
	readings *mongo.Collection
}

var _ weather.Store = (*Store)(nil)

// New connects to uri and ensures the readings index exists.
func New(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" || database == "" {
		return nil, fmt.Errorf("mongo: uri and database are required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	s := &Store{
		client:   client,
		readings: client.Database(database).Collection(collectionName),
	}

	if _, err := s.readings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "farmId", Value: 1}, {Key: "collectedAt", Value: -1}},
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) SaveReading(ctx context.Context, farmID int64, r weather.CanonicalReading) error {
	if err := weather.ValidateReading(r); err != nil {
		return err
	}
	if r.CollectedAt.IsZero() {
		r.CollectedAt = time.Now()
	}
	if _, err := s.readings.InsertOne(ctx, toDoc(farmID, r)); err != nil {
		return fmt.Errorf("mongo: insert reading for farm %d: %w", farmID, err)
	}
	return nil
}

func (s *Store) GetLatest(ctx context.Context, farmID int64) (weather.CanonicalReading, error) {
	var d readingDoc
	err := s.readings.FindOne(ctx,
		bson.M{"farmId": farmID},
		options.FindOne().SetSort(bson.D{{Key: "collectedAt", Value: -1}, {Key: "_id", Value: -1}}),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return weather.CanonicalReading{}, store.ErrNotFound
	}
	if err != nil {
		return weather.CanonicalReading{}, err
	}
	return d.reading(), nil
}

func (s *Store) GetRange(ctx context.Context, farmID int64, from, to time.Time) ([]weather.CanonicalReading, error) {
	cur, err := s.readings.Find(ctx,
		rangeFilter(farmID, from, to),
		options.Find().SetSort(bson.D{{Key: "collectedAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []readingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}

	out := make([]weather.CanonicalReading, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.reading())
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context, farmID int64, since time.Time) (weather.ReadingStats, error) {
	cur, err := s.readings.Aggregate(ctx, statsPipeline(farmID, since))
	if err != nil {
		return weather.ReadingStats{}, err
	}
	defer cur.Close(ctx)

	var rows []statsRow
	if err := cur.All(ctx, &rows); err != nil {
		return weather.ReadingStats{}, err
	}
	if len(rows) == 0 {
		return weather.ReadingStats{}, nil
	}
	return rows[0].stats(), nil
}

func rangeFilter(farmID int64, from, to time.Time) bson.M {
	return bson.M{
		"farmId":      farmID,
		"collectedAt": bson.M{"$gte": from.UTC(), "$lte": to.UTC()},
	}
}

type statsRow struct {
	AvgTemp         float64 `bson:"avgTemp"`
	MinTemp         float64 `bson:"minTemp"`
	MaxTemp         float64 `bson:"maxTemp"`
	AvgWindSpeed    float64 `bson:"avgWindSpeed"`
	TotalInsolation float64 `bson:"totalInsolation"`
	AvgDewPoint     float64 `bson:"avgDewPoint"`
	RainCount       int     `bson:"rainCount"`
	RecordCount     int     `bson:"recordCount"`
}

func (r statsRow) stats() weather.ReadingStats {
	return weather.ReadingStats{
		AvgTemp:         r.AvgTemp,
		MinTemp:         r.MinTemp,
		MaxTemp:         r.MaxTemp,
		AvgWindSpeed:    r.AvgWindSpeed,
		TotalInsolation: r.TotalInsolation,
		AvgDewPoint:     r.AvgDewPoint,
		RainCount:       r.RainCount,
		RecordCount:     r.RecordCount,
	}
}

func statsPipeline(farmID int64, since time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"farmId": farmID, "collectedAt": bson.M{"$gte": since.UTC()}}}},
		{{Key: "$group", Value: bson.M{
			"_id":             nil,
			"avgTemp":         bson.M{"$avg": "$outsideTemp"},
			"minTemp":         bson.M{"$min": "$outsideTemp"},
			"maxTemp":         bson.M{"$max": "$outsideTemp"},
			"avgWindSpeed":    bson.M{"$avg": "$windSpeed"},
			"totalInsolation": bson.M{"$sum": "$insolation"},
			"avgDewPoint":     bson.M{"$avg": "$dewPoint"},
			"rainCount":       bson.M{"$sum": bson.M{"$cond": bson.A{"$isRain", 1, 0}}},
			"recordCount":     bson.M{"$sum": 1},
		}}},
	}
}
