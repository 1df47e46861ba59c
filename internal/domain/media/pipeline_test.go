package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeExtractor struct {
	failFor map[string]error
}

func (f *fakeExtractor) Extract(ctx context.Context, folder string, t Type, author string) (*MediaRecord, error) {
	base := filepath.Base(folder)
	if f.failFor != nil {
		if err, ok := f.failFor[base]; ok {
			return nil, err
		}
	}
	name := base
	if !strings.HasPrefix(base, t.Prefix()) {
		name = t.Prefix() + base
	}
	return &MediaRecord{
		Name:     name,
		Type:     t,
		Author:   author,
		Drone:    "unknown",
		DateTime: time.Date(2023, 4, 29, 12, 14, 42, 0, time.UTC),
	}, nil
}

type fakeTranscoder struct {
	calls   []string
	failFor string
}

func (f *fakeTranscoder) TranscodeFolder(ctx context.Context, folder, name string) error {
	if f.failFor != "" && strings.Contains(folder, f.failFor) {
		return errors.New("codec error")
	}
	f.calls = append(f.calls, name)
	return nil
}

type fakePano struct {
	calls []string
	data  *PanoData
}

func (f *fakePano) Process(ctx context.Context, folder, name string) (*PanoData, error) {
	f.calls = append(f.calls, name)
	return f.data, nil
}

type fakeRepo struct {
	records map[string]MediaRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[string]MediaRecord{}}
}

func (f *fakeRepo) Upsert(ctx context.Context, rec *MediaRecord) error {
	f.records[rec.Name] = *rec
	return nil
}

func (f *fakeRepo) FindByName(ctx context.Context, name string) (*MediaRecord, error) {
	if rec, ok := f.records[name]; ok {
		return &rec, nil
	}
	return nil, ErrRecordNotFound
}

func (f *fakeRepo) ListNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.records))
	for n := range f.records {
		names = append(names, n)
	}
	return names, nil
}

func (f *fakeRepo) List(ctx context.Context) ([]MediaRecord, error) {
	var out []MediaRecord
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, nil
}

type fakeUploadStorage struct {
	uploaded map[string]int
}

func newFakeUploadStorage() *fakeUploadStorage {
	return &fakeUploadStorage{uploaded: map[string]int{}}
}

func (f *fakeUploadStorage) PrefixExists(ctx context.Context, name string) (bool, error) {
	return f.uploaded[name] > 0, nil
}

func (f *fakeUploadStorage) UploadDirectory(ctx context.Context, localDir, name string) error {
	f.uploaded[name]++
	return nil
}

type fakeArchiver struct {
	calls []string
}

func (f *fakeArchiver) ConvertThenArchive(ctx context.Context, folder, name string) error {
	f.calls = append(f.calls, name)
	return nil
}

func newTestPipeline(t *testing.T, classify func(string) Type) (*Pipeline, *fakeTranscoder, *fakePano, *fakeRepo, *fakeUploadStorage, *fakeArchiver) {
	t.Helper()
	tr := &fakeTranscoder{}
	pano := &fakePano{}
	repo := newFakeRepo()
	st := newFakeUploadStorage()
	ar := &fakeArchiver{}
	p := NewPipeline(PipelineDeps{
		Classify:   classify,
		Extractor:  &fakeExtractor{},
		Transcoder: tr,
		Pano:       pano,
		Repo:       repo,
		Storage:    st,
		Archiver:   ar,
		Author:     "jonas",
	})
	return p, tr, pano, repo, st, ar
}

func makeInputFolder(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		writeFile(t, filepath.Join(root, n, "DJI_0001.JPG"))
	}
}

func TestPipelineSuccessPath(t *testing.T) {
	input := t.TempDir()
	makeInputFolder(t, input, "shoot1")

	p, tr, _, repo, st, ar := newTestPipeline(t, func(string) Type { return TypeHDR })

	results, err := p.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	res := results[0]
	if res.Failed() || res.Stage != StageDone {
		t.Fatalf("result = %+v", res)
	}
	if res.Name != "hd_shoot1" {
		t.Errorf("name = %q", res.Name)
	}

	if len(tr.calls) != 1 {
		t.Errorf("transcoder calls = %v", tr.calls)
	}
	if _, ok := repo.records["hd_shoot1"]; !ok {
		t.Error("record not persisted")
	}
	if st.uploaded["hd_shoot1"] != 1 {
		t.Errorf("upload count = %d, want 1", st.uploaded["hd_shoot1"])
	}
	if len(ar.calls) != 1 {
		t.Errorf("archiver calls = %v", ar.calls)
	}

	// Folder was renamed to its canonical name and organized.
	if _, err := os.Stat(filepath.Join(input, "hd_shoot1", "original", "DJI_0001.JPG")); err != nil {
		t.Errorf("organized layout missing: %v", err)
	}
}

func TestPipelinePanoFolderGetsViewerData(t *testing.T) {
	input := t.TempDir()
	makeInputFolder(t, input, "sweep")

	p, tr, pano, repo, _, _ := newTestPipeline(t, func(string) Type { return TypePano })
	pano.data = &PanoData{
		Levels:                []Level{{TileSize: 512, Size: 2048}},
		InitialViewParameters: &ViewParameters{Yaw: 1.1, Pitch: 0, FOV: 1.3},
	}

	results, err := p.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Stage != StageDone {
		t.Fatalf("result = %+v", results[0])
	}

	if len(pano.calls) != 1 || len(tr.calls) != 0 {
		t.Errorf("pano calls = %v, transcoder calls = %v", pano.calls, tr.calls)
	}

	rec := repo.records["pa_sweep"]
	if len(rec.Levels) != 1 || rec.InitialViewParameters == nil {
		t.Errorf("pano fields not persisted: %+v", rec)
	}
}

func TestPipelineFailureIsolation(t *testing.T) {
	input := t.TempDir()
	makeInputFolder(t, input, "bad", "good")

	p, _, _, repo, _, _ := newTestPipeline(t, func(string) Type { return TypeWideAngle })
	p.deps.Transcoder = &fakeTranscoder{failFor: "wa_bad"}

	results, err := p.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	if !results[0].Failed() || results[0].Stage != StageTranscoded {
		t.Errorf("bad folder result = %+v", results[0])
	}
	if results[1].Failed() {
		t.Errorf("good folder result = %+v", results[1])
	}

	// The failed folder was not persisted; stage order protects the store.
	if _, ok := repo.records["wa_bad"]; ok {
		t.Error("failed folder must not reach the metadata store")
	}
	if _, ok := repo.records["wa_good"]; !ok {
		t.Error("good folder should be persisted")
	}
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	input := t.TempDir()
	makeInputFolder(t, input, "shoot1")

	p, _, _, repo, st, _ := newTestPipeline(t, func(string) Type { return TypeHDR })

	if _, err := p.Run(context.Background(), input); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	results, err := p.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if results[0].Failed() {
		t.Fatalf("second run result = %+v", results[0])
	}

	if len(repo.records) != 1 {
		t.Errorf("got %d records after rerun, want 1", len(repo.records))
	}
	// The existence pre-check makes the second upload a no-op.
	if st.uploaded["hd_shoot1"] != 1 {
		t.Errorf("upload count after rerun = %d, want 1", st.uploaded["hd_shoot1"])
	}
}

func TestPipelinePanoMissingZipDoesNotPersist(t *testing.T) {
	input := t.TempDir()
	makeInputFolder(t, input, "sweep")

	p, _, _, repo, st, ar := newTestPipeline(t, func(string) Type { return TypePano })
	p.deps.Pano = NewPanoProcessor()

	results, err := p.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	res := results[0]
	if !res.Failed() || res.Stage != StageTranscoded {
		t.Fatalf("result = %+v", res)
	}
	if !errors.Is(res.Err, ErrNoSource) {
		t.Errorf("err = %v, want ErrNoSource", res.Err)
	}

	// No derivatives were produced, so nothing may be persisted, uploaded
	// or archived.
	if _, ok := repo.records["pa_sweep"]; ok {
		t.Error("record was persisted despite missing derivatives")
	}
	if st.uploaded["pa_sweep"] != 0 {
		t.Errorf("upload count = %d, want 0", st.uploaded["pa_sweep"])
	}
	if len(ar.calls) != 0 {
		t.Errorf("archiver calls = %v", ar.calls)
	}
}

func TestPipelineUnknownClassificationFails(t *testing.T) {
	input := t.TempDir()
	makeInputFolder(t, input, "odd")

	p, _, _, _, _, _ := newTestPipeline(t, func(string) Type { return TypeUnknown })

	results, err := p.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !results[0].Failed() || results[0].Stage != StageClassified {
		t.Errorf("result = %+v", results[0])
	}
	if !errors.Is(results[0].Err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", results[0].Err)
	}
}
