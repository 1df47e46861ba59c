package media

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// ReconcileStorage is the slice of object storage the reconciler needs.
type ReconcileStorage interface {
	ListTopLevelPrefixes(ctx context.Context) ([]string, error)
	DeletePrefix(ctx context.Context, name string) (int, error)
}

// Reconciler compares storage prefixes against metadata records and removes
// storage prefixes that have no matching record. Records without storage are
// only reported, never touched.
type Reconciler struct {
	repo    Repository
	storage ReconcileStorage

	// DryRun reports what would be deleted without deleting anything.
	DryRun bool
}

func NewReconciler(repo Repository, storage ReconcileStorage) *Reconciler {
	return &Reconciler{repo: repo, storage: storage}
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	StorageOnly  []string `json:"storageOnly"`
	MetadataOnly []string `json:"metadataOnly"`
	Deleted      int      `json:"deleted"`
}

// Run performs a single reconciliation pass. Deletion errors for one prefix
// do not stop the pass; the first error is returned alongside the report.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	prefixes, err := r.storage.ListTopLevelPrefixes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list storage prefixes: %w", err)
	}
	names, err := r.repo.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list metadata names: %w", err)
	}

	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	stored := make(map[string]bool, len(prefixes))
	for _, p := range prefixes {
		stored[p] = true
	}

	report := &ReconcileReport{}
	for _, p := range prefixes {
		if !known[p] {
			report.StorageOnly = append(report.StorageOnly, p)
		}
	}
	for _, n := range names {
		if !stored[n] {
			report.MetadataOnly = append(report.MetadataOnly, n)
		}
	}
	sort.Strings(report.StorageOnly)
	sort.Strings(report.MetadataOnly)

	for _, n := range report.MetadataOnly {
		log.Warn().Str("name", n).Msg("Record has no storage prefix, manual follow-up needed")
	}

	var firstErr error
	for _, p := range report.StorageOnly {
		if r.DryRun {
			log.Info().Str("prefix", p).Msg("Dry run, would delete orphaned prefix")
			continue
		}
		log.Info().Str("prefix", p).Msg("Deleting orphaned prefix")
		deleted, err := r.storage.DeletePrefix(ctx, p)
		report.Deleted += deleted
		if err != nil {
			log.Error().Err(err).Str("prefix", p).Msg("Failed to delete orphaned prefix")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	log.Info().
		Int("storageOnly", len(report.StorageOnly)).
		Int("metadataOnly", len(report.MetadataOnly)).
		Int("objectsDeleted", report.Deleted).
		Bool("dryRun", r.DryRun).
		Msg("Reconciliation finished")
	return report, firstErr
}
