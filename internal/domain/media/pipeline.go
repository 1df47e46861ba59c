package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Stage is the processing state of one media folder. The stage order is
// fixed: metadata is persisted only after transcoding succeeded (a record
// pointing at a missing derivative would be a consistency violation), and
// upload happens only once the local derivatives exist.
type Stage int

const (
	StageDiscovered Stage = iota
	StageClassified
	StageMetadataExtracted
	StageOrganized
	StageTranscoded
	StagePersisted
	StageUploaded
	StageArchived
	StageDone
)

var stageNames = map[Stage]string{
	StageDiscovered:        "discovered",
	StageClassified:        "classified",
	StageMetadataExtracted: "metadata_extracted",
	StageOrganized:         "organized",
	StageTranscoded:        "transcoded",
	StagePersisted:         "persisted",
	StageUploaded:          "uploaded",
	StageArchived:          "archived",
	StageDone:              "done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MetadataExtractor derives the canonical record from a media folder.
type MetadataExtractor interface {
	Extract(ctx context.Context, folder string, t Type, author string) (*MediaRecord, error)
}

// FolderTranscoder builds the web derivatives of an HDR/wide-angle folder.
type FolderTranscoder interface {
	TranscodeFolder(ctx context.Context, folder, name string) error
}

// PanoramaProcessor handles the panorama zip export of an organized folder.
type PanoramaProcessor interface {
	Process(ctx context.Context, folder, name string) (*PanoData, error)
}

// ArchiveFinalizer produces the review copy and moves folders to long-term
// archive storage.
type ArchiveFinalizer interface {
	ConvertThenArchive(ctx context.Context, folder, name string) error
}

// UploadStorage is the object-storage surface the pipeline needs.
type UploadStorage interface {
	PrefixExists(ctx context.Context, name string) (bool, error)
	UploadDirectory(ctx context.Context, localDir, name string) error
}

// PipelineDeps wires the pipeline's collaborators.
type PipelineDeps struct {
	Classify   func(string) Type
	Extractor  MetadataExtractor
	Transcoder FolderTranscoder
	Pano       PanoramaProcessor
	Repo       Repository
	Storage    UploadStorage
	Archiver   ArchiveFinalizer
	Author     string
}

// Pipeline drives one sequential pass over all folders under an input root.
// Folders are independent units of work: a failure in one is logged with its
// stage and the loop continues with the next.
type Pipeline struct {
	deps PipelineDeps
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Classify == nil {
		deps.Classify = ClassifyFolder
	}
	return &Pipeline{deps: deps}
}

// FolderResult records where a folder's processing ended up.
type FolderResult struct {
	Folder string
	Name   string
	Stage  Stage
	Err    error
}

// Failed reports whether the folder terminated in a failure state.
func (r FolderResult) Failed() bool {
	return r.Err != nil
}

// Run processes every subdirectory of inputDir, one at a time. It returns an
// error only when the input root itself cannot be read; per-folder failures
// are carried in the results.
func (p *Pipeline) Run(ctx context.Context, inputDir string) ([]FolderResult, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", inputDir, err)
	}

	var results []FolderResult
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		select {
		case <-ctx.Done():
			log.Warn().Msg("Ingestion cancelled, stopping before next folder")
			return results, ctx.Err()
		default:
		}

		res := p.processFolder(ctx, filepath.Join(inputDir, e.Name()))
		results = append(results, res)

		if res.Failed() {
			log.Error().
				Err(res.Err).
				Str("folder", res.Folder).
				Str("stage", res.Stage.String()).
				Msg("Folder failed, continuing with next")
		} else {
			log.Info().Str("folder", res.Folder).Str("name", res.Name).Msg("Folder done")
		}
	}

	return results, nil
}

func (p *Pipeline) processFolder(ctx context.Context, folder string) FolderResult {
	res := FolderResult{Folder: folder, Stage: StageDiscovered}
	log.Info().Str("folder", folder).Msg("Processing folder")

	mediaType := p.deps.Classify(folder)
	if mediaType == TypeUnknown {
		res.Stage = StageClassified
		res.Err = fmt.Errorf("%w: %s", ErrUnknownType, folder)
		return res
	}
	res.Stage = StageClassified
	log.Info().Str("folder", folder).Str("type", string(mediaType)).Msg("Classified")

	rec, err := p.deps.Extractor.Extract(ctx, folder, mediaType, p.deps.Author)
	if err != nil {
		res.Stage = StageMetadataExtracted
		res.Err = err
		return res
	}
	res.Stage = StageMetadataExtracted
	res.Name = rec.Name

	folder, err = OrganizeFolder(folder, rec.Name)
	if err != nil {
		res.Stage = StageOrganized
		res.Err = err
		return res
	}
	res.Folder = folder
	res.Stage = StageOrganized

	if mediaType == TypePano {
		pd, err := p.deps.Pano.Process(ctx, folder, rec.Name)
		if err != nil {
			res.Stage = StageTranscoded
			res.Err = err
			return res
		}
		if pd != nil {
			rec.Levels = pd.Levels
			rec.InitialViewParameters = pd.InitialViewParameters
		}
	} else {
		if err := p.deps.Transcoder.TranscodeFolder(ctx, folder, rec.Name); err != nil {
			res.Stage = StageTranscoded
			res.Err = err
			return res
		}
	}
	res.Stage = StageTranscoded

	if err := p.deps.Repo.Upsert(ctx, rec); err != nil {
		res.Stage = StagePersisted
		res.Err = err
		return res
	}
	res.Stage = StagePersisted

	exists, err := p.deps.Storage.PrefixExists(ctx, rec.Name)
	if err != nil {
		res.Stage = StageUploaded
		res.Err = err
		return res
	}
	if exists {
		log.Info().Str("name", rec.Name).Msg("Storage prefix already populated, skipping upload")
	} else {
		if err := p.deps.Storage.UploadDirectory(ctx, DerivativeDir(folder), rec.Name); err != nil {
			res.Stage = StageUploaded
			res.Err = err
			return res
		}
	}
	res.Stage = StageUploaded

	if err := p.deps.Archiver.ConvertThenArchive(ctx, folder, rec.Name); err != nil {
		res.Stage = StageArchived
		res.Err = err
		return res
	}

	res.Stage = StageDone
	return res
}
