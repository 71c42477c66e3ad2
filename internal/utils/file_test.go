package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"scan.png", true},
		{"frame.webp", true},
		{"notes.txt", false},
		{"animation.gif", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsImageFile(tt.name); got != tt.want {
			t.Errorf("IsImageFile(%q): expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestGenerateOutputFilename(t *testing.T) {
	tests := []struct {
		input, format, want string
	}{
		{"/in/photo.jpg", "png", filepath.Join("out", "photo_boxes.png")},
		{"/in/photo.jpg", "", filepath.Join("out", "photo_boxes.jpg")},
		{"https://example.com/img/cat.webp?size=large", "PNG", filepath.Join("out", "cat_boxes.png")},
	}
	for _, tt := range tests {
		if got := GenerateOutputFilename(tt.input, "out", "", "_boxes", tt.format); got != tt.want {
			t.Errorf("GenerateOutputFilename(%q, %q): expected %s, got %s", tt.input, tt.format, tt.want, got)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "readme.md", filepath.Join("sub", "c.webp")} {
		path := filepath.Join(dir, name)
		if err := EnsureDir(filepath.Dir(path)); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "sub", "c.webp"),
	}
	if len(files) != len(want) {
		t.Fatalf("Expected %d files, got %v", len(want), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, files[i])
		}
	}

	if !FileExists(want[0]) || FileExists(dir) {
		t.Error("FileExists should accept files and reject directories")
	}
	if !DirExists(dir) || DirExists(want[0]) {
		t.Error("DirExists should accept directories and reject files")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for size, want := range tests {
		if got := FormatFileSize(size); got != want {
			t.Errorf("FormatFileSize(%d): expected %s, got %s", size, want, got)
		}
	}
}
