package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_WriteReadReplace(t *testing.T) {
	dir := t.TempDir()
	fs := OSFileSystem{}
	path := filepath.Join(dir, "record.json")

	if err := fs.WriteFile(path, []byte(`{"a":1}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := fs.WriteFile(path, []byte(`{"a":2}`), 0644); err != nil {
		t.Fatalf("WriteFile (replace) failed: %v", err)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"a":2}` {
		t.Errorf("expected replaced content, got %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("expected perm 0644, got %v", info.Mode().Perm())
	}
}

func TestOSFileSystem_ReadDir(t *testing.T) {
	dir := t.TempDir()
	fs := OSFileSystem{}

	for _, name := range []string{"b.json", "a.json", ".hidden.tmp123"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.MkdirAll(filepath.Join(dir, "sub", "deeper"), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	names, err := fs.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 2 || names[0] != "a.json" || names[1] != "b.json" {
		t.Errorf("unexpected listing %v", names)
	}
}

func TestOSFileSystem_WriteFileMissingDir(t *testing.T) {
	fs := OSFileSystem{}
	err := fs.WriteFile(filepath.Join(t.TempDir(), "missing", "x.json"), []byte("x"), 0644)
	if err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/out", 0755); err != nil {
		t.Fatal(err)
	}

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/out/test.txt", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/out/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// Mutating the returned slice must not affect the stored file.
	data[0] = 'J'
	again, _ := mfs.ReadFile("/out/test.txt")
	if string(again) != string(testData) {
		t.Errorf("stored data was mutated: %q", again)
	}
	if mfs.Writes() != 1 {
		t.Errorf("expected 1 write, got %d", mfs.Writes())
	}
}

func TestMemoryFileSystem_WriteRequiresDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	err := mfs.WriteFile("/nope/test.txt", []byte("x"), 0644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_WriteErr(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteErr = errors.New("disk full")
	if err := mfs.WriteFile("x", nil, 0644); err == nil || err.Error() != "disk full" {
		t.Errorf("expected injected error, got %v", err)
	}
}

func TestMemoryFileSystem_ReadDirAndExists(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/runs/a", 0755)
	_ = mfs.WriteFile("/runs/a/2.json", []byte("2"), 0644)
	_ = mfs.WriteFile("/runs/a/1.json", []byte("1"), 0644)
	_ = mfs.WriteFile("/runs/top.json", []byte("t"), 0644)

	names, err := mfs.ReadDir("/runs/a")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 2 || names[0] != "1.json" || names[1] != "2.json" {
		t.Errorf("unexpected listing %v", names)
	}

	if !mfs.Exists("/runs") || !mfs.Exists("/runs/a/1.json") {
		t.Error("expected directory and file to exist")
	}
	if mfs.Exists("/runs/b") {
		t.Error("expected /runs/b to not exist")
	}

	if _, err := mfs.ReadDir("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist for missing dir, got %v", err)
	}
	if _, err := mfs.ReadFile("/missing.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist for missing file, got %v", err)
	}
}
