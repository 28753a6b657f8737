package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"

	"github.com/blogem/attest-desk/controllers"
	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/llm"
	"github.com/blogem/attest-desk/loaders"
	appmw "github.com/blogem/attest-desk/middleware"
	"github.com/blogem/attest-desk/models"
	"github.com/blogem/attest-desk/repositories"
	"github.com/blogem/attest-desk/services"
)

// config is assembled from the environment at startup.
type config struct {
	Port        string
	SnapshotDSN string

	DirectoryCSV    string
	AttestationCSV  string
	AdminMappingCSV string
	DeadlinesCSV    string

	DirectoryInterval   time.Duration
	AttestationInterval time.Duration

	Model     string
	MaxTokens int64
	RowCap    int
}

func main() {
	// Load environment variables from a .env file when present
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment as-is")
	}

	log := newLogger()
	cfg := loadConfig()

	// Initialize the snapshot database
	db, err := database.Open(cfg.SnapshotDSN)
	if err != nil {
		log.Error("failed to open snapshot database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	clock := clockwork.NewRealClock()
	store := database.NewStore(db, log, clock)

	// Initialize repositories
	repos := repositories.NewRepositories()

	// Initialize the LLM collaborators
	client := llm.NewAnthropicClient(anthropic.Model(cfg.Model), cfg.MaxTokens, log)
	collab := llm.NewCollaborators(client)

	// Initialize services
	srvs := services.NewServices(store, repos, collab, models.DefaultWorkflowStatuses, clock, log,
		services.Config{RowCap: cfg.RowCap})

	if err := registerTableGroups(srvs.Refresh, cfg, log); err != nil {
		log.Error("failed to register table groups", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvs.Refresh.Start(ctx)
	defer srvs.Refresh.Stop()

	// Reference tables load once at boot; afterwards only the operator's
	// manual trigger refreshes them.
	if err := srvs.Refresh.TriggerNow(ctx, "reference"); err != nil {
		log.Warn("initial reference load failed", "error", err)
	}

	// Initialize controllers and router
	ctrl := controllers.NewControllers(srvs, store)
	r := setupRouter(ctrl, log)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	fmt.Printf("🚀 Attestation desk starting on port %s\n", cfg.Port)
	fmt.Printf("🗃️  Snapshot store: %s\n", cfg.SnapshotDSN)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// setupRouter configures all routes
func setupRouter(ctrl *controllers.Controllers, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(appmw.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(chimw.Compress(5))
	r.Use(appmw.EmployeeID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "service": "attest-desk"}`)
	})

	r.Post("/ask", ctrl.Ask.Ask)

	r.Route("/queue", func(r chi.Router) {
		r.Get("/", ctrl.Queue.Workbasket)
		r.Get("/extended", ctrl.Queue.Extended)
		r.Get("/new", ctrl.Queue.NewLines)
	})

	r.Post("/refresh/{group}", ctrl.Admin.Refresh)
	r.Get("/status", ctrl.Admin.Status)

	return r
}

// registerTableGroups wires the refresh scheduler: directory hourly,
// attestation (with its scrubbed projection) every 15 minutes, reference
// tables on manual trigger only.
func registerTableGroups(refresh services.RefreshService, cfg config, log *slog.Logger) error {
	directory := loaders.NewCSVLoader(models.Tables[models.TableUserDirectory], cfg.DirectoryCSV)
	if err := refresh.Register(services.TableGroup{
		Name:     "directory",
		Interval: cfg.DirectoryInterval,
		Load: func(ctx context.Context) ([]loaders.TableData, error) {
			data, err := directory.Load(ctx)
			if err != nil {
				return nil, err
			}
			return []loaders.TableData{data}, nil
		},
	}); err != nil {
		return err
	}

	attestation := loaders.NewCSVLoader(models.Tables[models.TableAttestationData], cfg.AttestationCSV)
	if err := refresh.Register(services.TableGroup{
		Name:     "attestation",
		Interval: cfg.AttestationInterval,
		Load: func(ctx context.Context) ([]loaders.TableData, error) {
			full, err := attestation.Load(ctx)
			if err != nil {
				return nil, err
			}
			// The scrubbed projection derives from the same load, so the
			// pair always publishes under one refresh cycle.
			return []loaders.TableData{full, loaders.DeriveScrubbed(full)}, nil
		},
	}); err != nil {
		return err
	}

	adminLoader := referenceLoader(models.Tables[models.TableDataAdminMapping], cfg.AdminMappingCSV, nil, log)
	deadlineLoader := referenceLoader(models.Tables[models.TableDeadlines], cfg.DeadlinesCSV, models.DefaultDeadlines, log)
	return refresh.Register(services.TableGroup{
		Name: "reference",
		// No interval: reference tables never auto-fire.
		Load: func(ctx context.Context) ([]loaders.TableData, error) {
			admins, err := adminLoader.Load(ctx)
			if err != nil {
				return nil, err
			}
			deadlines, err := deadlineLoader.Load(ctx)
			if err != nil {
				return nil, err
			}
			return []loaders.TableData{admins, deadlines}, nil
		},
	})
}

// referenceLoader prefers a configured CSV extract and falls back to the
// shipped defaults.
func referenceLoader(def models.TableDef, path string, defaults []models.Row, log *slog.Logger) loaders.Loader {
	if path != "" {
		return loaders.NewCSVLoader(def, path)
	}
	log.Info("no extract configured, serving shipped defaults", "table", def.Name)
	return loaders.NewStaticLoader(def, defaults)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level}))
}

func loadConfig() config {
	return config{
		Port:                getEnv("PORT", "8080"),
		SnapshotDSN:         getEnv("SNAPSHOT_DSN", database.DefaultDSN()),
		DirectoryCSV:        getEnv("DIRECTORY_CSV", "data/user_directory.csv"),
		AttestationCSV:      getEnv("ATTESTATION_CSV", "data/attestation_data.csv"),
		AdminMappingCSV:     os.Getenv("ADMIN_MAPPING_CSV"),
		DeadlinesCSV:        os.Getenv("DEADLINES_CSV"),
		DirectoryInterval:   getDurationEnv("DIRECTORY_REFRESH_INTERVAL", time.Hour),
		AttestationInterval: getDurationEnv("ATTESTATION_REFRESH_INTERVAL", 15*time.Minute),
		Model:               getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		MaxTokens:           int64(getIntEnv("LLM_MAX_TOKENS", 1024)),
		RowCap:              getIntEnv("ROW_CAP", 200),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
