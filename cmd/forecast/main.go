package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/salescast/backend-go/internal/cache"
	"github.com/andresuchdata/salescast/backend-go/internal/config"
	"github.com/andresuchdata/salescast/backend-go/internal/domain"
	"github.com/andresuchdata/salescast/backend-go/internal/drive"
	"github.com/andresuchdata/salescast/backend-go/internal/ingest"
	"github.com/andresuchdata/salescast/backend-go/internal/pipeline"
	"github.com/andresuchdata/salescast/backend-go/internal/repository"
	"github.com/andresuchdata/salescast/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/salescast/backend-go/internal/service"
	"github.com/andresuchdata/salescast/backend-go/internal/storage"
	"github.com/andresuchdata/salescast/backend-go/pkg/logger"
)

type sessionKey struct{}

// session holds what the Before hook opened for a command.
type session struct {
	cfg     *config.Config
	db      *sql.DB
	cache   cache.ForecastCache
	service *service.ForecastService
}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Postgres connection string; runs are recorded when set",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func main() {
	_ = godotenv.Load(".env")

	// stdout carries the report
	logger.UseJSON(os.Stderr)

	app := &cli.App{
		Name:  "forecast",
		Usage: "Forecast demand and reorder points from sales history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Indent the JSON report",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Forecast a local CSV or XLSX file",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the sales history file",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "archive",
						Usage: "Archive the file in the configured upload storage",
					},
				},
				Before: setup,
				After:  teardown,
				Action: runFile,
			},
			{
				Name:  "drive",
				Usage: "Download a file from Google Drive and forecast it",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:     "file-id",
						Usage:    "Google Drive file ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "credentials",
						Usage:   "Service account credentials JSON",
						EnvVars: []string{"GOOGLE_DRIVE_CREDENTIALS_JSON"},
					},
				},
				Before: setup,
				After:  teardown,
				Action: runDrive,
			},
			{
				Name:  "replay",
				Usage: "Re-run an archived upload from object storage",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:  "key",
						Usage: "Storage key of the archived upload; lists uploads when empty",
					},
				},
				Before: setup,
				After:  teardown,
				Action: runReplay,
			},
			{
				Name:  "cache",
				Usage: "Manage cached forecast reports",
				Subcommands: []*cli.Command{
					{
						Name:   "flush",
						Usage:  "Drop every cached report",
						Before: setup,
						After:  teardown,
						Action: flushCache,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("forecast failed")
	}
}

func setup(c *cli.Context) error {
	logger.SetLevel(c.String("log-level"))
	cfg := config.Load()

	rt := &session{cfg: cfg}

	var runRepo repository.RunRepository
	if dbURL := c.String("db-url"); dbURL != "" {
		db, err := sql.Open("pgx", dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.PingContext(c.Context); err != nil {
			db.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		rt.db = db
		runRepo = postgres.NewRunRepository(postgres.Wrap(sqlx.NewDb(db, "pgx")))
	}

	reportCache, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("forecast cache unavailable, continuing without it")
		reportCache = cache.NewNoopForecastCache()
	}
	rt.cache = reportCache

	var store storage.ObjectStorage
	if c.Command.Name == "drive" || c.Command.Name == "replay" || c.Bool("archive") {
		s, err := storage.New(c.Context, cfg.Storage, cfg.App.UploadDir)
		if err != nil {
			return fmt.Errorf("failed to initialize upload storage: %w", err)
		}
		store = s
	}

	rt.service = service.NewForecastService(
		ingest.NewValidator(cfg.Forecast.MinRecords),
		pipeline.NewFromConfig(cfg.Forecast),
		reportCache,
		store,
		runRepo,
		cfg.Forecast,
	)

	c.Context = context.WithValue(c.Context, sessionKey{}, rt)
	return nil
}

func teardown(c *cli.Context) error {
	rt, ok := c.Context.Value(sessionKey{}).(*session)
	if !ok {
		return nil
	}
	if err := rt.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close forecast cache")
	}
	if rt.db != nil {
		return rt.db.Close()
	}
	return nil
}

func sessionFrom(c *cli.Context) (*session, error) {
	rt, ok := c.Context.Value(sessionKey{}).(*session)
	if !ok || rt == nil {
		return nil, fmt.Errorf("forecast session not initialized")
	}
	return rt, nil
}

func runFile(c *cli.Context) error {
	rt, err := sessionFrom(c)
	if err != nil {
		return err
	}

	path := c.String("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	run, err := rt.service.Forecast(c.Context, service.Upload{Filename: filepath.Base(path), Data: data})
	if err != nil {
		return err
	}
	return writeReport(c, os.Stdout, run)
}

func runDrive(c *cli.Context) error {
	rt, err := sessionFrom(c)
	if err != nil {
		return err
	}

	credentials := c.String("credentials")
	if credentials == "" {
		credentials = rt.cfg.Drive.CredentialsJSON
	}
	if credentials == "" {
		return fmt.Errorf("google drive credentials are required")
	}

	driveService, err := drive.NewService(c.Context, credentials)
	if err != nil {
		return err
	}

	fileID := c.String("file-id")
	file, err := driveService.GetFile(c.Context, fileID)
	if err != nil {
		return err
	}
	if !file.IsSalesSheet() {
		return fmt.Errorf("%s is not a .csv or .xlsx file", file.Name)
	}

	data, err := driveService.Download(c.Context, fileID, int64(rt.cfg.Server.MaxUploadMB)<<20)
	if err != nil {
		return err
	}

	log.Info().Str("file_id", fileID).Str("name", file.Name).Int("bytes", len(data)).Msg("downloaded drive file")

	run, err := rt.service.Forecast(c.Context, service.Upload{Filename: file.Name, Data: data})
	if err != nil {
		return err
	}
	return writeReport(c, os.Stdout, run)
}

func runReplay(c *cli.Context) error {
	rt, err := sessionFrom(c)
	if err != nil {
		return err
	}

	key := strings.TrimSpace(c.String("key"))
	if key == "" {
		uploads, err := rt.service.ListUploads(c.Context)
		if err != nil {
			return err
		}
		for _, u := range uploads {
			fmt.Fprintf(os.Stdout, "%s\t%d\n", u.Key, u.Size)
		}
		return nil
	}

	run, err := rt.service.Replay(c.Context, key)
	if err != nil {
		return err
	}
	return writeReport(c, os.Stdout, run)
}

func flushCache(c *cli.Context) error {
	rt, err := sessionFrom(c)
	if err != nil {
		return err
	}
	if err := rt.service.FlushCache(c.Context); err != nil {
		return err
	}
	log.Info().Msg("forecast cache flushed")
	return nil
}

func writeReport(c *cli.Context, w io.Writer, run *domain.ForecastRun) error {
	log.Info().
		Str("run_id", run.ID).
		Int("products", run.ProductCount).
		Int("failed", run.FailedCount).
		Msg("forecast complete")

	enc := json.NewEncoder(w)
	if c.Bool("pretty") {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(run.Report)
}
