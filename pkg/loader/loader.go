package loader

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Document is the raw text of one course document and where it came from.
type Document struct {
	Source  string
	Content string
}

type LoaderConfig struct {
	AllowedExtensions []string
	IgnorePatterns    []string
	RateLimit         float64 // remote fetches per second
	Timeout           time.Duration
	MaxBytes          int64
	OnProgress        func(source string)
}

// Loader reads course documents from a directory, a single file or an
// http(s) URL.
type Loader struct {
	config  LoaderConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config LoaderConfig) *Loader {
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".txt"}
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = 10 << 20
	}

	return &Loader{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func New() *Loader {
	return NewWithConfig(LoaderConfig{})
}

// Load returns the documents found at source. Directories are walked
// recursively and their files returned in lexical path order.
func (l *Loader) Load(ctx context.Context, source string) ([]Document, error) {
	if isURL(source) {
		doc, err := l.fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", source, err)
	}
	if !info.IsDir() {
		doc, err := l.readFile(source)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}

	paths, err := l.ListFiles(source)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := l.readFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ListFiles returns the files under dir accepted by the extension and
// ignore filters, sorted.
func (l *Loader) ListFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if l.shouldProcess(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (l *Loader) shouldProcess(path string) bool {
	lower := strings.ToLower(path)
	validExt := false
	for _, ext := range l.config.AllowedExtensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range l.config.IgnorePatterns {
		if strings.Contains(path, pattern) {
			return false
		}
	}
	return true
}

func (l *Loader) readFile(path string) (Document, error) {
	if l.config.OnProgress != nil {
		l.config.OnProgress(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, l.config.MaxBytes))
	if err != nil {
		return Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Document{Source: path, Content: string(content)}, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (Document, error) {
	if l.config.OnProgress != nil {
		l.config.OnProgress(rawURL)
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return Document{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, rawURL)
	}
	content, err := io.ReadAll(io.LimitReader(resp.Body, l.config.MaxBytes))
	if err != nil {
		return Document{}, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}
	return Document{Source: rawURL, Content: string(content)}, nil
}

func isURL(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
