package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"digitaltwin-cloud/internal/eav"
	locationspg "digitaltwin-cloud/internal/locations/infrastructure/postgres"
	registrypg "digitaltwin-cloud/internal/registry/infrastructure/postgres"
	sensors "digitaltwin-cloud/internal/sensors/domain"
	sensorspg "digitaltwin-cloud/internal/sensors/infrastructure/postgres"
	storage "digitaltwin-cloud/internal/storage/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dsn             string
	schema          string
	sensorType      string
	sensorPrefix    string
	locationCount   int
	sensorCount     int
	startDate       string
	days            int
	intervalMinutes int
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.locationCount <= 0 || cfg.sensorCount <= 0 {
		log.Fatal("location-count and sensor-count must be > 0")
	}
	if cfg.days <= 0 || cfg.intervalMinutes <= 0 {
		log.Fatal("days and interval-minutes must be > 0")
	}

	start, err := parseStartDate(cfg.startDate)
	if err != nil {
		log.Fatalf("invalid start-date: %v", err)
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := storage.Migrate(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	schemaCatalog := registrypg.NewRepository(db, eav.LocationRegistry)
	typeCatalog := registrypg.NewRepository(db, eav.SensorRegistry)

	if err := seedCatalog(ctx, schemaCatalog, cfg.schema, []seedAttr{
		{"latitude", "Degrees (+ve is North)", eav.DatatypeFloat},
		{"longitude", "Degrees (+ve is East)", eav.DatatypeFloat},
	}); err != nil {
		log.Fatalf("seed schema: %v", err)
	}
	if err := seedCatalog(ctx, typeCatalog, cfg.sensorType, []seedAttr{
		{"temperature", "Degrees C", eav.DatatypeFloat},
		{"relative_humidity", "Percent", eav.DatatypeFloat},
	}); err != nil {
		log.Fatalf("seed sensor type: %v", err)
	}

	locationRepo := locationspg.NewRepository(db, schemaCatalog)
	locationIDs, err := seedLocations(ctx, locationRepo, cfg.schema, cfg.locationCount)
	if err != nil {
		log.Fatalf("seed locations: %v", err)
	}
	log.Printf("seeded %d locations for schema %s", len(locationIDs), cfg.schema)

	sensorRepo := sensorspg.NewRepository(db, typeCatalog)
	if err := seedSensors(ctx, sensorRepo, cfg, locationIDs, start); err != nil {
		log.Fatalf("seed sensors: %v", err)
	}

	log.Printf("seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.schema, "schema", envOrDefault("SEED_SCHEMA", "latlong"), "location schema name")
	flag.StringVar(&cfg.sensorType, "sensor-type", envOrDefault("SEED_SENSOR_TYPE", "weather"), "sensor type name")
	flag.StringVar(&cfg.sensorPrefix, "sensor-prefix", envOrDefault("SEED_SENSOR_PREFIX", "demo-weather-"), "sensor unique identifier prefix")
	flag.IntVar(&cfg.locationCount, "location-count", envOrInt("SEED_LOCATION_COUNT", 5), "number of locations to seed")
	flag.IntVar(&cfg.sensorCount, "sensor-count", envOrInt("SEED_SENSOR_COUNT", 10), "number of sensors to seed")
	flag.StringVar(&cfg.startDate, "start-date", envOrDefault("SEED_START_DATE", ""), "start date (YYYY-MM-DD or RFC3339)")
	flag.IntVar(&cfg.days, "days", envOrInt("SEED_DAYS", 7), "number of days of readings")
	flag.IntVar(&cfg.intervalMinutes, "interval-minutes", envOrInt("SEED_INTERVAL_MINUTES", 10), "minutes between readings")
	flag.Parse()
	return cfg
}

type seedAttr struct {
	name     string
	units    string
	datatype eav.Datatype
}

func seedCatalog(ctx context.Context, catalog *registrypg.Repository, grouping string, attrs []seedAttr) error {
	groupingID, err := catalog.EnsureGrouping(ctx, grouping, "seeded demo grouping")
	if err != nil {
		return err
	}
	for _, attr := range attrs {
		attributeID, err := catalog.EnsureAttribute(ctx, attr.name, attr.units, attr.datatype)
		if err != nil {
			return err
		}
		if err := catalog.LinkAttribute(ctx, groupingID, attributeID); err != nil {
			return err
		}
	}
	return nil
}

func seedLocations(ctx context.Context, repo *locationspg.Repository, schema string, count int) ([]int64, error) {
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		latitude := 51.0 + float64(i)*0.01
		longitude := -0.1 + float64(i)*0.01
		id, err := repo.Create(ctx, schema, map[string]any{
			"latitude":  latitude,
			"longitude": longitude,
		})
		if err != nil {
			if errors.Is(err, eav.ErrDuplicateValue) {
				log.Printf("location (%f, %f) already seeded, skipping", latitude, longitude)
				continue
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedSensors(ctx context.Context, repo *sensorspg.Repository, cfg config, locationIDs []int64, start time.Time) error {
	interval := time.Duration(cfg.intervalMinutes) * time.Minute
	perDay := int(24 * time.Hour / interval)

	for i := 1; i <= cfg.sensorCount; i++ {
		uid := fmt.Sprintf("%s%04d", cfg.sensorPrefix, i)
		sensorID, err := repo.Create(ctx, cfg.sensorType, uid, fmt.Sprintf("demo weather station %d", i), "seeded demo sensor")
		if err != nil {
			if !errors.Is(err, sensors.ErrDuplicateSensor) {
				return err
			}
			existing, err := repo.ByUniqueIdentifier(ctx, uid)
			if err != nil {
				return err
			}
			sensorID = existing.ID
		}

		if len(locationIDs) > 0 {
			locationID := locationIDs[(i-1)%len(locationIDs)]
			if err := repo.AssignLocation(ctx, sensorID, locationID, start); err != nil && !eav.IsUniqueViolation(err) {
				return err
			}
		}

		for day := 0; day < cfg.days; day++ {
			dayStart := start.AddDate(0, 0, day)
			batch := make([]sensors.Reading, 0, perDay*2)
			for slot := 0; slot < perDay; slot++ {
				ts := dayStart.Add(time.Duration(slot) * interval)
				hour := float64(ts.Hour()) + float64(ts.Minute())/60
				temperature := 12.0 + 8.0*math.Sin((hour-9)*math.Pi/12) + float64(i%5)*0.3
				humidity := 55.0 + 20.0*math.Cos(hour*math.Pi/12)
				batch = append(batch,
					sensors.Reading{Measure: "temperature", Timestamp: ts, Value: round1(temperature)},
					sensors.Reading{Measure: "relative_humidity", Timestamp: ts, Value: round1(humidity)},
				)
			}
			if err := repo.InsertReadings(ctx, sensorID, batch); err != nil {
				if errors.Is(err, eav.ErrDuplicateValue) {
					log.Printf("sensor %s day %s already seeded, skipping", uid, dayStart.Format("2006-01-02"))
					continue
				}
				return err
			}
		}
		log.Printf("seeded sensor %s (%d/%d)", uid, i, cfg.sensorCount)
	}
	return nil
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

func parseStartDate(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Now().UTC().AddDate(0, 0, -7).Truncate(24 * time.Hour), nil
	}
	value = strings.TrimSpace(value)
	if strings.Contains(value, "T") {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
