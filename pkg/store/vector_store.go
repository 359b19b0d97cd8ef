package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/xhad/courserag/internal/models"
	"golang.org/x/time/rate"
)

// CourseNotFoundError reports a course name that could not be resolved
// against the catalog.
type CourseNotFoundError struct {
	Name string
}

func (e *CourseNotFoundError) Error() string {
	return fmt.Sprintf("no course found matching '%s'", e.Name)
}

// SearchFilter narrows a content search. Zero values mean no filter.
type SearchFilter struct {
	CourseName   string
	LessonNumber *int
}

type SearchResult struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
	Distance     float64
}

type VectorStoreConfig struct {
	MaxResults int
	BatchSize  int
	// RateLimit caps embedding requests per second during ingestion.
	// Zero disables the limit.
	RateLimit float64
}

// VectorStore keeps two collections: a catalog with one record per course,
// used to resolve course names, and the content chunks themselves.
type VectorStore struct {
	config   VectorStoreConfig
	catalog  Collection
	content  Collection
	embedder embeddings.Embedder
	limiter  *rate.Limiter
	closeFn  func()
}

func NewWithConfig(config VectorStoreConfig, embedder embeddings.Embedder, catalog, content Collection) *VectorStore {
	if config.MaxResults <= 0 {
		config.MaxResults = 5
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &VectorStore{
		config:   config,
		catalog:  catalog,
		content:  content,
		embedder: embedder,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// NewMemory returns a store backed by two in-process collections.
func NewMemory(config VectorStoreConfig, embedder embeddings.Embedder, dimension int) *VectorStore {
	return NewWithConfig(config, embedder,
		NewMemoryCollection("course_catalog", dimension),
		NewMemoryCollection("course_content", dimension))
}

type PostgresConfig struct {
	ConnString   string
	CatalogTable string
	ContentTable string
	VectorDim    int
}

// NewPostgres connects to Postgres and prepares both pgvector tables.
func NewPostgres(ctx context.Context, pg PostgresConfig, config VectorStoreConfig, embedder embeddings.Embedder) (*VectorStore, error) {
	pool, err := pgxpool.New(ctx, pg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	catalog, err := NewPgCollection(ctx, pool, PgCollectionConfig{TableName: pg.CatalogTable, VectorDim: pg.VectorDim})
	if err != nil {
		pool.Close()
		return nil, err
	}
	content, err := NewPgCollection(ctx, pool, PgCollectionConfig{TableName: pg.ContentTable, VectorDim: pg.VectorDim})
	if err != nil {
		pool.Close()
		return nil, err
	}

	vs := NewWithConfig(config, embedder, catalog, content)
	vs.closeFn = pool.Close
	return vs, nil
}

// ResolveCourseName maps a possibly partial course name to the title of the
// nearest catalog entry. Any non-empty catalog yields a match.
func (vs *VectorStore) ResolveCourseName(ctx context.Context, name string) (string, error) {
	n, err := vs.catalog.Count(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to count catalog: %w", err)
	}
	if n == 0 {
		return "", &CourseNotFoundError{Name: name}
	}

	embedding, err := vs.embedder.EmbedQuery(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to embed course name: %w", err)
	}

	hits, err := vs.catalog.Query(ctx, embedding, nil, 1)
	if err != nil {
		return "", fmt.Errorf("failed to query catalog: %w", err)
	}
	if len(hits) == 0 {
		return "", &CourseNotFoundError{Name: name}
	}
	return hits[0].ID, nil
}

// Search returns the content chunks nearest to query, most similar first.
// A course filter is resolved through the catalog before the content search
// runs. A non-positive limit uses the configured maximum.
func (vs *VectorStore) Search(ctx context.Context, query string, filter SearchFilter, limit int) ([]SearchResult, error) {
	where := map[string]any{}
	if filter.CourseName != "" {
		title, err := vs.ResolveCourseName(ctx, filter.CourseName)
		if err != nil {
			return nil, err
		}
		where["course_title"] = title
	}
	if filter.LessonNumber != nil {
		where["lesson_number"] = *filter.LessonNumber
	}
	if limit <= 0 {
		limit = vs.config.MaxResults
	}

	embedding, err := vs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := vs.content.Query(ctx, embedding, where, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		r := SearchResult{
			Content:  h.Content,
			Distance: h.Distance,
		}
		r.CourseTitle, _ = h.Metadata["course_title"].(string)
		if n, ok := intValue(h.Metadata["lesson_number"]); ok {
			r.LessonNumber = &n
		}
		r.ChunkIndex, _ = intValue(h.Metadata["chunk_index"])
		results = append(results, r)
	}
	return results, nil
}

type lessonEntry struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// AddCourseMetadata upserts the catalog record of course. The course title
// is both the record id and the embedded text.
func (vs *VectorStore) AddCourseMetadata(ctx context.Context, course *models.Course) error {
	lessons := make([]lessonEntry, 0, len(course.Lessons))
	for _, l := range course.Lessons {
		lessons = append(lessons, lessonEntry{Number: l.Number, Title: l.Title, Link: l.Link})
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return fmt.Errorf("failed to encode lessons: %w", err)
	}

	vectors, err := vs.embed(ctx, []string{course.Title})
	if err != nil {
		return err
	}

	return vs.catalog.Upsert(ctx, []Record{{
		ID:      course.Title,
		Content: course.Title,
		Metadata: map[string]any{
			"title":        course.Title,
			"instructor":   course.Instructor,
			"course_link":  course.Link,
			"lesson_count": len(course.Lessons),
			"lessons_json": string(lessonsJSON),
		},
		Embedding: vectors[0],
	}})
}

// AddChunks embeds and upserts chunks in batches.
func (vs *VectorStore) AddChunks(ctx context.Context, chunks []models.CourseChunk) error {
	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := vs.embed(ctx, texts)
		if err != nil {
			return err
		}

		records := make([]Record, len(batch))
		for i, c := range batch {
			metadata := map[string]any{
				"course_title": c.CourseTitle,
				"chunk_index":  c.Index,
			}
			if c.LessonNumber != nil {
				metadata["lesson_number"] = *c.LessonNumber
			}
			records[i] = Record{
				ID:        c.ID(),
				Content:   c.Content,
				Metadata:  metadata,
				Embedding: vectors[i],
			}
		}
		if err := vs.content.Upsert(ctx, records); err != nil {
			return fmt.Errorf("failed to store chunks: %w", err)
		}
	}
	return nil
}

func (vs *VectorStore) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := vs.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vectors, err := vs.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// ExistingCourseTitles lists every course in the catalog, sorted.
func (vs *VectorStore) ExistingCourseTitles(ctx context.Context) ([]string, error) {
	titles, err := vs.catalog.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return titles, nil
}

func (vs *VectorStore) CourseCount(ctx context.Context) (int, error) {
	return vs.catalog.Count(ctx, nil)
}

// ChunkCount returns the number of stored chunks of a course.
func (vs *VectorStore) ChunkCount(ctx context.Context, courseTitle string) (int, error) {
	return vs.content.Count(ctx, map[string]any{"course_title": courseTitle})
}

// CourseOutline returns the catalog view of a course: its header fields and
// lessons without bodies.
func (vs *VectorStore) CourseOutline(ctx context.Context, title string) (*models.Course, error) {
	records, err := vs.catalog.Get(ctx, []string{title})
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if len(records) == 0 {
		return nil, &CourseNotFoundError{Name: title}
	}

	m := records[0].Metadata
	course := &models.Course{Title: records[0].ID}
	course.Instructor, _ = m["instructor"].(string)
	course.Link, _ = m["course_link"].(string)

	if raw, ok := m["lessons_json"].(string); ok && raw != "" {
		var lessons []lessonEntry
		if err := json.Unmarshal([]byte(raw), &lessons); err != nil {
			return nil, fmt.Errorf("failed to decode lessons of %s: %w", title, err)
		}
		for _, l := range lessons {
			course.Lessons = append(course.Lessons, models.Lesson{Number: l.Number, Title: l.Title, Link: l.Link})
		}
	}
	return course, nil
}

// Clear removes every record from both collections.
func (vs *VectorStore) Clear(ctx context.Context) error {
	if err := vs.catalog.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}
	if err := vs.content.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear content: %w", err)
	}
	return nil
}

func (vs *VectorStore) Close() {
	vs.catalog.Close()
	vs.content.Close()
	if vs.closeFn != nil {
		vs.closeFn()
	}
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	}
	return 0, false
}
