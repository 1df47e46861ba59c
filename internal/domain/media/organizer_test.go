package media

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOrganizeFolderCreatesLayoutAndMovesFiles(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "DJI_202304291214_003")
	writeFile(t, filepath.Join(folder, "DJI_0001.JPG"))
	writeFile(t, filepath.Join(folder, "DJI_0001.TIF"))
	writeFile(t, filepath.Join(folder, ".DS_Store"))

	got, err := OrganizeFolder(folder, "hd_20230429_121442")
	if err != nil {
		t.Fatalf("OrganizeFolder: %v", err)
	}

	want := filepath.Join(root, "hd_20230429_121442")
	if got != want {
		t.Fatalf("returned path %q, want %q", got, want)
	}

	for _, p := range []string{
		filepath.Join(want, "original", "DJI_0001.JPG"),
		filepath.Join(want, "original", "DJI_0001.TIF"),
		filepath.Join(want, "modified", "S3"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}

	// Dotfiles stay where they were
	if _, err := os.Stat(filepath.Join(want, ".DS_Store")); err != nil {
		t.Errorf("dotfile should not be moved: %v", err)
	}
}

func TestOrganizeFolderIdempotent(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "raw")
	writeFile(t, filepath.Join(folder, "a.jpg"))

	first, err := OrganizeFolder(folder, "wa_20230429_121442")
	if err != nil {
		t.Fatalf("first OrganizeFolder: %v", err)
	}
	second, err := OrganizeFolder(first, "wa_20230429_121442")
	if err != nil {
		t.Fatalf("second OrganizeFolder: %v", err)
	}
	if first != second {
		t.Errorf("idempotent call changed path: %q vs %q", first, second)
	}
	if _, err := os.Stat(filepath.Join(second, "original", "a.jpg")); err != nil {
		t.Errorf("original file missing after second call: %v", err)
	}
}

func TestOrganizeFolderRefusesExistingTarget(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "raw")
	writeFile(t, filepath.Join(folder, "a.jpg"))
	if err := os.MkdirAll(filepath.Join(root, "hd_20230429_121442"), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := OrganizeFolder(folder, "hd_20230429_121442"); err == nil {
		t.Fatal("expected error when target folder already exists")
	}
}
