package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/config"
)

func newTestLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	return s
}

func TestLocalStorageSaveAndOpen(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()

	data := []byte("%nprocshared=4\n")
	if err := s.Save(ctx, "tenant1/uploads/abc.gjf", data); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rc, err := s.Open(ctx, "tenant1/uploads/abc.gjf")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Read back %q, want %q", got, data)
	}
}

func TestLocalStorageOpenMissing(t *testing.T) {
	s := newTestLocalStorage(t)

	_, err := s.Open(context.Background(), "nope/missing.gjf")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorageExists(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "a/b.gjf")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if ok {
		t.Error("Expected object to be absent")
	}

	if err := s.Save(ctx, "a/b.gjf", []byte("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ok, err = s.Exists(ctx, "a/b.gjf")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !ok {
		t.Error("Expected object to exist after Save")
	}
}

func TestLocalStorageDelete(t *testing.T) {
	s := newTestLocalStorage(t)
	ctx := context.Background()

	if err := s.Save(ctx, "a/b.gjf", []byte("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Delete(ctx, "a/b.gjf"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	ok, _ := s.Exists(ctx, "a/b.gjf")
	if ok {
		t.Error("Expected object gone after Delete")
	}

	// Deleting a missing object is not an error.
	if err := s.Delete(ctx, "a/b.gjf"); err != nil {
		t.Errorf("Delete of missing object failed: %v", err)
	}
}

func TestLocalStorageRejectsEscapingNames(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root)
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	ctx := context.Background()

	for _, name := range []string{
		"../outside.gjf",
		"a/../../outside.gjf",
		"/etc/passwd",
		".",
	} {
		t.Run(name, func(t *testing.T) {
			if err := s.Save(ctx, name, []byte("x")); err == nil {
				t.Errorf("Save accepted escaping name %q", name)
			}
			if _, err := s.Open(ctx, name); err == nil {
				t.Errorf("Open accepted escaping name %q", name)
			}
		})
	}

	// Nothing leaked outside the root.
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "outside.gjf")); err == nil {
		t.Error("An escaping Save wrote outside the storage root")
	}
}

func TestNewStorageBackendSelection(t *testing.T) {
	s, err := NewStorage(&config.StorageConfig{
		Backend: "local",
		Local:   config.LocalStorageConfig{Root: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("NewStorage(local) failed: %v", err)
	}
	if _, ok := s.(*LocalStorage); !ok {
		t.Errorf("Expected *LocalStorage, got %T", s)
	}

	// Empty backend defaults to local.
	s, err = NewStorage(&config.StorageConfig{Local: config.LocalStorageConfig{Root: t.TempDir()}})
	if err != nil {
		t.Fatalf("NewStorage(default) failed: %v", err)
	}
	if _, ok := s.(*LocalStorage); !ok {
		t.Errorf("Expected *LocalStorage for empty backend, got %T", s)
	}

	if _, err := NewStorage(&config.StorageConfig{Backend: "s3"}); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
