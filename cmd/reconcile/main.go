package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aeroview/aeroview-api/internal/config"
	"github.com/aeroview/aeroview-api/internal/domain/media"
	"github.com/aeroview/aeroview-api/internal/pkg/database"
	"github.com/aeroview/aeroview-api/internal/pkg/storage"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report orphaned storage prefixes without deleting them")
	flag.Parse()

	cfg := config.Load()
	setupLogger(cfg)

	log.Info().Bool("dryRun", *dryRun).Msg("Starting reconciliation run")

	if err := cfg.ValidateReconcile(); err != nil {
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

	repo := media.NewMongoRepository(mongoClient.Database(cfg.MongoDatabase))
	reconciler := media.NewReconciler(repo, mediaStorage)
	reconciler.DryRun = *dryRun

	start := time.Now()
	report, err := reconciler.Run(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation run failed")
	}

	log.Info().
		Strs("storageOnly", report.StorageOnly).
		Strs("metadataOnly", report.MetadataOnly).
		Int("objectsDeleted", report.Deleted).
		Dur("took", time.Since(start)).
		Msg("Reconciliation run finished")
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
