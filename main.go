package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"digitaltwin-cloud/internal/audit"
	"digitaltwin-cloud/internal/auth"
	"digitaltwin-cloud/internal/eav"
	locationshttp "digitaltwin-cloud/internal/locations/interfaces/http"
	locationspg "digitaltwin-cloud/internal/locations/infrastructure/postgres"
	modelshttp "digitaltwin-cloud/internal/models/interfaces/http"
	modelspg "digitaltwin-cloud/internal/models/infrastructure/postgres"
	"digitaltwin-cloud/internal/observability/metrics"
	registryapp "digitaltwin-cloud/internal/registry/application"
	registrypg "digitaltwin-cloud/internal/registry/infrastructure/postgres"
	registryhttp "digitaltwin-cloud/internal/registry/interfaces/http"
	sensorshttp "digitaltwin-cloud/internal/sensors/interfaces/http"
	sensorspg "digitaltwin-cloud/internal/sensors/infrastructure/postgres"
	storage "digitaltwin-cloud/internal/storage/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}
	if err := storage.Migrate(context.Background(), db); err != nil {
		logger.Fatalf("migrate error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	schemaCatalog := registrypg.NewRepository(db, eav.LocationRegistry)
	typeCatalog := registrypg.NewRepository(db, eav.SensorRegistry)
	modelRepo := modelspg.NewRepository(db)

	if cfg.SeedConfigPath != "" {
		seedCfg, err := registryapp.LoadSeedConfig(cfg.SeedConfigPath)
		if err != nil {
			logger.Fatalf("seed config error: %v", err)
		}
		seeder := registryapp.NewSeeder(schemaCatalog, typeCatalog, modelRepo)
		if err := seeder.Apply(context.Background(), seedCfg); err != nil {
			logger.Fatalf("seed apply error: %v", err)
		}
		logger.Printf("seed config applied from %s", cfg.SeedConfigPath)
	}

	users := auth.NewUserRepository(db)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if _, err := users.Create(context.Background(), cfg.AdminEmail, cfg.AdminPassword, auth.RoleAdmin); err != nil && !errors.Is(err, auth.ErrDuplicateUser) {
			logger.Fatalf("admin bootstrap error: %v", err)
		}
	}

	locationRepo := locationspg.NewRepository(db, schemaCatalog)
	sensorRepo := sensorspg.NewRepository(db, typeCatalog)
	readingQuery := sensorspg.NewReadingQuery(db, typeCatalog)

	schemasHandler, err := registryhttp.NewCatalogHandler(schemaCatalog, "location_schema", "/api/v1/schemas", auditRepo, logger)
	if err != nil {
		logger.Fatalf("schemas handler error: %v", err)
	}
	typesHandler, err := registryhttp.NewCatalogHandler(typeCatalog, "sensor_type", "/api/v1/sensor-types", auditRepo, logger)
	if err != nil {
		logger.Fatalf("sensor types handler error: %v", err)
	}
	measuresHandler := registryhttp.NewMeasuresHandler(typeCatalog, logger)

	locationsHandler, err := locationshttp.NewHandler(locationRepo, schemaCatalog, logger)
	if err != nil {
		logger.Fatalf("locations handler error: %v", err)
	}
	sensorsHandler, err := sensorshttp.NewHandler(sensorRepo, logger)
	if err != nil {
		logger.Fatalf("sensors handler error: %v", err)
	}
	readingsHandler, err := sensorshttp.NewReadingsHandler(sensorRepo, readingQuery, logger)
	if err != nil {
		logger.Fatalf("readings handler error: %v", err)
	}
	installationsHandler, err := sensorshttp.NewInstallationsHandler(sensorRepo, logger)
	if err != nil {
		logger.Fatalf("installations handler error: %v", err)
	}
	readingsExportHandler, err := sensorshttp.NewExportHandler(sensorRepo, readingQuery, logger)
	if err != nil {
		logger.Fatalf("readings export handler error: %v", err)
	}

	modelsHandler, err := modelshttp.NewHandler(modelRepo, logger)
	if err != nil {
		logger.Fatalf("models handler error: %v", err)
	}
	runsHandler, err := modelshttp.NewRunsHandler(modelRepo, logger)
	if err != nil {
		logger.Fatalf("runs handler error: %v", err)
	}
	runValuesHandler, err := modelshttp.NewValuesHandler(modelRepo, logger)
	if err != nil {
		logger.Fatalf("run values handler error: %v", err)
	}
	runReportHandler, err := modelshttp.NewReportHandler(modelRepo, logger)
	if err != nil {
		logger.Fatalf("run report handler error: %v", err)
	}

	loginHandler := auth.NewLoginHandler(users, []byte(cfg.JWTSecret), cfg.TokenTTL, logger)

	// Run recording stays at operator level, so only the catalog surfaces
	// are admin-gated.
	policy := auth.NewDefaultPolicy(
		[]string{"/healthz", "/metrics", "/api/v1/auth/login"},
		[]string{"/api/v1/schemas", "/api/v1/sensor-types"},
	)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/auth/login", loginHandler)
	mux.Handle("/api/v1/schemas", schemasHandler)
	mux.Handle("/api/v1/schemas/", schemasHandler)
	mux.Handle("/api/v1/sensor-types", typesHandler)
	mux.Handle("/api/v1/sensor-types/", typesHandler)
	mux.Handle("/api/v1/measures", measuresHandler)
	mux.Handle("/api/v1/locations", locationsHandler)
	mux.Handle("/api/v1/sensors", sensorsHandler)
	mux.Handle("/api/v1/sensors/readings", readingsHandler)
	mux.Handle("/api/v1/sensors/installations", installationsHandler)
	mux.Handle("/api/v1/sensors/exports/readings.xlsx", readingsExportHandler)
	mux.Handle("/api/v1/models", modelsHandler)
	mux.Handle("/api/v1/models/runs", runsHandler)
	mux.Handle("/api/v1/models/runs/values", runValuesHandler)
	mux.Handle("/api/v1/models/runs/report.pdf", runReportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL    string
	HTTPAddr       string
	JWTSecret      string
	TokenTTL       time.Duration
	SeedConfigPath string
	AdminEmail     string
	AdminPassword  string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:    getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:      getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		TokenTTL:       getenvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		SeedConfigPath: getenvDefault("SEED_CONFIG", ""),
		AdminEmail:     getenvDefault("ADMIN_EMAIL", ""),
		AdminPassword:  getenvDefault("ADMIN_PASSWORD", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
