package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aeroview/aeroview-api/internal/config"
	"github.com/aeroview/aeroview-api/internal/domain/media"
	"github.com/aeroview/aeroview-api/internal/pkg/database"
	"github.com/aeroview/aeroview-api/internal/pkg/geocode"
	"github.com/aeroview/aeroview-api/internal/pkg/magick"
	"github.com/aeroview/aeroview-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("input", cfg.InputDirectory).
		Str("archive", cfg.ArchiveDirectory).
		Str("author", cfg.Author).
		Msg("Starting ingest run")

	if err := cfg.ValidateIngest(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := media.ValidateAuthor(cfg.Author); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	mongoClient, err := database.NewMongo(cfg.MongoURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer database.CloseMongo(mongoClient)

	mediaStorage, err := storage.NewMediaStorage(storage.Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Endpoint:  cfg.S3Endpoint,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 storage client")
	}

	var geocoder media.Geocoder
	if cfg.MapboxToken != "" {
		geocoder = geocode.NewClient(cfg.MapboxBaseURL, cfg.MapboxToken, cfg.GeocodeTimeout)
	} else {
		log.Warn().Msg("Mapbox token not configured, records will have no location fields")
	}

	conv := magick.NewRunner(cfg.MagickBin, cfg.MagickTimeout)
	repo := media.NewMongoRepository(mongoClient.Database(cfg.MongoDatabase))

	pipeline := media.NewPipeline(media.PipelineDeps{
		Extractor:  media.NewExtractor(geocoder),
		Transcoder: media.NewTranscoder(conv),
		Pano:       media.NewPanoProcessor(),
		Repo:       repo,
		Storage:    mediaStorage,
		Archiver:   media.NewArchiver(conv, cfg.ArchiveDirectory),
		Author:     cfg.Author,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received, finishing current folder")
		cancel()
	}()

	start := time.Now()
	results, err := pipeline.Run(ctx, cfg.InputDirectory)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingest run aborted")
	}

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}

	// Per-folder failures are already logged; the run itself still counts
	// as successful.
	log.Info().
		Int("folders", len(results)).
		Int("failed", failed).
		Dur("took", time.Since(start)).
		Msg("Ingest run finished")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
