package media

import (
	"strings"
	"testing"

	"github.com/pot-code/samba-client/internal/infrastructure/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(afero.NewMemMapFs(), "/data/videos", uuid.NewNanoIDGenerator(12), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestIsLocal(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/data/videos/lesson_1.mp4", true},
		{"videos/lesson_1.mp4", true},
		{"https://cdn.example.com/lesson_1.mp4", false},
		{"content://media/external/video/12", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsLocal(tt.path); got != tt.want {
			t.Errorf("IsLocal(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestOwns(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		path string
		want bool
	}{
		{"/data/videos/lesson_1.mp4", true},
		{"/data/videos/sub/../lesson_1.mp4", true},
		{"/data/videos", false},
		{"/data/videos/../prefs.db", false},
		{"/data/videos_other/lesson_1.mp4", false},
		{"/data/prefs.db", false},
		{"videos/lesson_1.mp4", false},
		{"https://cdn.example.com/lesson_1.mp4", false},
	}
	for _, tt := range tests {
		if got := s.Owns(tt.path); got != tt.want {
			t.Errorf("Owns(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if !s.Accepts("https://cdn.example.com/lesson_1.mp4") || !s.Accepts("") {
		t.Error("remote or empty path not accepted")
	}
	if s.Accepts("/etc/passwd") {
		t.Error("path outside the media dir accepted")
	}
}

func TestSaveExistsDelete(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save("../../etc/Lesson_1.MP4", strings.NewReader("frames"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(path, "/data/videos/media_") || !strings.HasSuffix(path, ".mp4") {
		t.Errorf("Save path = %q, want a generated .mp4 inside the media dir", path)
	}
	if ok, err := s.Exists(path); err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	if err := s.Delete(path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists(path); ok {
		t.Error("file still exists after Delete")
	}
	if err := s.Delete(path); err != nil {
		t.Errorf("Delete of missing file = %v, want nil", err)
	}
}

func TestSameNameUploadsGetDistinctFiles(t *testing.T) {
	s := newTestStore(t)
	a, err := s.Save("video.mp4", strings.NewReader("lesson A"))
	if err != nil {
		t.Fatalf("Save a: %v", err)
	}
	b, err := s.Save("video.mp4", strings.NewReader("lesson B"))
	if err != nil {
		t.Fatalf("Save b: %v", err)
	}
	if a == b {
		t.Fatalf("both uploads stored at %q", a)
	}
	if data, _ := afero.ReadFile(s.Fs, a); string(data) != "lesson A" {
		t.Errorf("first upload reads %q", data)
	}

	if err := s.Delete(b); err != nil {
		t.Fatalf("Delete b: %v", err)
	}
	if ok, _ := s.Exists(a); !ok {
		t.Error("deleting one upload removed the other")
	}
}

func TestSaveRejectsNamesWithoutExtension(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"video", ".", "clip.", "x.verylongextension"} {
		if _, err := s.Save(name, strings.NewReader("x")); err != ErrInvalidName {
			t.Errorf("Save(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestDeleteLeavesFilesOutsideDir(t *testing.T) {
	s := newTestStore(t)
	afero.WriteFile(s.Fs, "/data/prefs.db", []byte("prefs"), 0o644)

	if err := s.Delete("/data/prefs.db"); err != nil {
		t.Fatalf("Delete = %v", err)
	}
	if err := s.Delete("/data/videos/../prefs.db"); err != nil {
		t.Fatalf("Delete = %v", err)
	}
	if ok, _ := afero.Exists(s.Fs, "/data/prefs.db"); !ok {
		t.Error("Delete removed a file outside the media dir")
	}
	if ok, _ := s.Exists("/data/prefs.db"); ok {
		t.Error("Exists reported a file outside the media dir")
	}
}

func TestDeleteIgnoresRemoteURIs(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete("https://cdn.example.com/lesson_1.mp4"); err != nil {
		t.Errorf("Delete remote = %v", err)
	}
	if ok, _ := s.Exists("https://cdn.example.com/lesson_1.mp4"); ok {
		t.Error("remote URI reported as existing")
	}
}
