// Command weather-archive exports stored readings for one farm to a Parquet
// file.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/greensync-weather/internal/archive"
	"github.com/i474232898/greensync-weather/internal/store/mongo"
	"github.com/i474232898/greensync-weather/internal/store/sqlite"
	"github.com/i474232898/greensync-weather/internal/weather"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	var (
		driver = flag.String("driver", getenv("STORE_DRIVER", "sqlite"), "store driver: sqlite or mongo")
		farmID = flag.Int64("farm", 1, "farm id to export")
		since  = flag.Duration("since", 24*time.Hour, "export readings collected within this window")
		out    = flag.String("out", "readings.parquet", "output Parquet file")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var src weather.Store
	switch *driver {
	case "sqlite":
		s, err := sqlite.New(getenv("SQLITE_PATH", "greensync-weather.db"))
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
		defer s.Close()
		src = s
	case "mongo":
		s, err := mongo.New(ctx, os.Getenv("MONGO_URI"), getenv("MONGO_DB", "greensync"))
		if err != nil {
			log.Fatalf("connect mongo: %v", err)
		}
		defer s.Close(context.Background())
		src = s
	default:
		log.Fatalf("unsupported driver %q; the memory store is not persistent", *driver)
	}

	to := time.Now()
	readings, err := src.GetRange(ctx, *farmID, to.Add(-*since), to)
	if err != nil {
		log.Fatalf("load readings for farm %d: %v", *farmID, err)
	}
	if err := archive.WriteReadings(*out, readings); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	log.Printf("INFO  wrote %d readings for farm %d to %s", len(readings), *farmID, *out)
}
