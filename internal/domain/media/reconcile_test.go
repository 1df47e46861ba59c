package media

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeReconcileStorage struct {
	prefixes map[string]int // prefix -> object count
	failFor  string
}

func (f *fakeReconcileStorage) ListTopLevelPrefixes(ctx context.Context) ([]string, error) {
	var out []string
	for p := range f.prefixes {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeReconcileStorage) DeletePrefix(ctx context.Context, name string) (int, error) {
	if name == f.failFor {
		return 0, errors.New("access denied")
	}
	n := f.prefixes[name]
	delete(f.prefixes, name)
	return n, nil
}

func reconcileFixture() (*fakeRepo, *fakeReconcileStorage) {
	repo := newFakeRepo()
	for _, n := range []string{"hd_b", "pa_c", "wa_d"} {
		repo.records[n] = MediaRecord{Name: n}
	}
	st := &fakeReconcileStorage{prefixes: map[string]int{
		"hd_a": 3,
		"hd_b": 5,
		"pa_c": 40,
	}}
	return repo, st
}

func TestReconcilerDeletesOrphanedPrefixes(t *testing.T) {
	repo, st := reconcileFixture()
	r := NewReconciler(repo, st)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !reflect.DeepEqual(report.StorageOnly, []string{"hd_a"}) {
		t.Errorf("StorageOnly = %v", report.StorageOnly)
	}
	if !reflect.DeepEqual(report.MetadataOnly, []string{"wa_d"}) {
		t.Errorf("MetadataOnly = %v", report.MetadataOnly)
	}
	if report.Deleted != 3 {
		t.Errorf("Deleted = %d, want 3", report.Deleted)
	}
	if _, ok := st.prefixes["hd_a"]; ok {
		t.Error("orphaned prefix still present")
	}
	// Matched prefixes and unmatched records stay intact.
	if _, ok := st.prefixes["hd_b"]; !ok {
		t.Error("matched prefix was deleted")
	}
	if _, ok := repo.records["wa_d"]; !ok {
		t.Error("metadata-only record was touched")
	}

	// A second pass finds nothing left to delete.
	report, err = r.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(report.StorageOnly) != 0 || report.Deleted != 0 {
		t.Errorf("second pass report = %+v", report)
	}
}

func TestReconcilerDryRun(t *testing.T) {
	repo, st := reconcileFixture()
	r := NewReconciler(repo, st)
	r.DryRun = true

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(report.StorageOnly, []string{"hd_a"}) {
		t.Errorf("StorageOnly = %v", report.StorageOnly)
	}
	if report.Deleted != 0 {
		t.Errorf("Deleted = %d in dry run", report.Deleted)
	}
	if _, ok := st.prefixes["hd_a"]; !ok {
		t.Error("dry run must not delete")
	}
}

func TestReconcilerDeleteErrorDoesNotAbort(t *testing.T) {
	repo, st := reconcileFixture()
	st.prefixes["pa_z"] = 7
	st.failFor = "hd_a"
	r := NewReconciler(repo, st)

	report, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("want error from failed delete")
	}
	// The other orphan is still removed despite the failure.
	if _, ok := st.prefixes["pa_z"]; ok {
		t.Error("remaining orphan was not deleted")
	}
	if report.Deleted != 7 {
		t.Errorf("Deleted = %d, want 7", report.Deleted)
	}
}
