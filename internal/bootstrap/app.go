package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"media-analyzer/internal/analyses"
	"media-analyzer/internal/detection"
	"media-analyzer/internal/dispatch"
	"media-analyzer/internal/media"
	"media-analyzer/internal/pipeline"
	"media-analyzer/internal/services/health"
	"media-analyzer/internal/shared/config"
	"media-analyzer/internal/shared/server"
	"media-analyzer/internal/shared/server/middleware"
	"media-analyzer/internal/shared/storage/db"
	"media-analyzer/internal/tempfiles"
)

// App holds the wired service: the intake router, the job queue and the
// single worker that drains it.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Files     *tempfiles.Store
	Queue     *pipeline.Queue
	Models    *detection.ModelState
	Analyzers []detection.Analyzer
	Extractor *media.Extractor

	AnalysesRepo    analyses.Repo
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	Dispatcher      *dispatch.Dispatcher
	Worker          *pipeline.Worker
	Health          *health.Service
}

// Build prepares every dependency and loads the detection models. A model
// load failure is logged and leaves the service up with models_loaded=false.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	files := tempfiles.New(cfg.TempDir)
	if err := files.Ensure(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.ModelDir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Files:  files,
		Queue:  pipeline.NewQueue(cfg.QueueCapacity),
		Models: &detection.ModelState{},
	}

	app.Analyzers = buildAnalyzers(cfg)
	loaders := make([]detection.Loader, 0, len(app.Analyzers))
	for _, a := range app.Analyzers {
		if l, ok := a.(detection.Loader); ok {
			loaders = append(loaders, l)
		}
	}
	if err := app.Models.Load(ctx, loaders...); err != nil {
		log.Printf("bootstrap: %v", err)
	}

	buildServices(app)
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("bootstrap: DATABASE_URL empty; using in-memory job ledger")
		return nil, nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory job ledger: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildAnalyzers(cfg config.Config) []detection.Analyzer {
	return []detection.Analyzer{
		detection.NewFaceAnalyzer(detection.Options{Work: millis(cfg.FaceWorkMs)}),
		detection.NewVoiceAnalyzer(detection.Options{Work: millis(cfg.VoiceWorkMs)}),
	}
}

func buildServices(app *App) {
	cfg := app.Config

	var repo analyses.Repo
	if app.DB != nil {
		repo = &analyses.PGRepo{DB: app.DB}
	} else {
		repo = analyses.NewMemoryRepo()
	}

	extractor := media.NewExtractor(cfg.FFmpegBin, cfg.FFprobeBin)
	dispatcher := dispatch.New(cfg.CallbackURL(), cfg.CallbackTimeoutDuration())

	svc := &analyses.Service{
		Repo:  repo,
		Queue: app.Queue,
		Files: app.Files,
	}

	app.Extractor = extractor
	app.Dispatcher = dispatcher
	app.AnalysesRepo = repo
	app.AnalysesService = svc
	app.AnalysisHandler = analyses.NewHandler(svc)
	app.Worker = &pipeline.Worker{
		Queue:          app.Queue,
		Extractor:      extractor,
		Analyzers:      app.Analyzers,
		Models:         app.Models,
		Dispatcher:     dispatcher,
		Files:          app.Files,
		Tracker:        svc,
		DequeueTimeout: cfg.DequeueTimeout(),
		MaxFrames:      cfg.MaxFrames,
		SampleRate:     cfg.AudioSampleRate,
	}
	app.Health = health.NewService(app.Models, app.Queue, cfg.MaxUploadBytes)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Analyses: app.AnalysisHandler,
		Health:   app.Health,
		Limiter:  middleware.NewRateLimiter(time.Now),
	})
}

// Close releases the database pool, if any.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
