package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoader_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "Course Title: B")
	writeFile(t, filepath.Join(dir, "a.txt"), "Course Title: A")
	writeFile(t, filepath.Join(dir, "nested", "c.TXT"), "Course Title: C")
	writeFile(t, filepath.Join(dir, "notes.md"), "# not a course")
	writeFile(t, filepath.Join(dir, "drafts", "d.txt"), "Course Title: D")
	writeFile(t, filepath.Join(dir, ".git", "e.txt"), "hidden")

	var seen []string
	l := NewWithConfig(LoaderConfig{
		IgnorePatterns: []string{"drafts"},
		OnProgress:     func(source string) { seen = append(seen, source) },
	})

	docs, err := l.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, filepath.Join(dir, "a.txt"), docs[0].Source)
	assert.Equal(t, "Course Title: A", docs[0].Content)
	assert.Equal(t, filepath.Join(dir, "b.txt"), docs[1].Source)
	assert.Equal(t, filepath.Join(dir, "nested", "c.TXT"), docs[2].Source)
	assert.Len(t, seen, 3)
}

func TestLoader_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "course.txt")
	writeFile(t, path, "Course Title: Solo")

	docs, err := New().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Course Title: Solo", docs[0].Content)
}

func TestLoader_MissingSource(t *testing.T) {
	_, err := New().Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoader_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/course.txt" {
			w.Write([]byte("Course Title: Remote"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewWithConfig(LoaderConfig{RateLimit: 100})
	docs, err := l.Load(context.Background(), srv.URL+"/course.txt")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Course Title: Remote", docs[0].Content)

	_, err = l.Load(context.Background(), srv.URL+"/missing.txt")
	assert.Error(t, err)
}

func TestShouldProcess(t *testing.T) {
	l := NewWithConfig(LoaderConfig{
		AllowedExtensions: []string{".txt", ".course"},
		IgnorePatterns:    []string{"private"},
	})

	tests := []struct {
		path     string
		expected bool
	}{
		{"docs/course1.txt", true},
		{"docs/intro.course", true},
		{"docs/private/course2.txt", false},
		{"docs/readme.md", false},
		{"docs/archive.txt.gz", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, l.shouldProcess(tt.path), tt.path)
	}
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("https://example.com/a.txt"))
	assert.True(t, isURL("http://localhost:8000/a.txt"))
	assert.False(t, isURL("../docs"))
	assert.False(t, isURL("/tmp/course.txt"))
	assert.False(t, isURL("ftp://example.com/a.txt"))
}
