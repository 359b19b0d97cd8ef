package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xhad/courserag/internal/models"
	"github.com/xhad/courserag/pkg/llm"
	"github.com/xhad/courserag/pkg/loader"
	"github.com/xhad/courserag/pkg/processor"
	"github.com/xhad/courserag/pkg/session"
	"github.com/xhad/courserag/pkg/store"
	"github.com/xhad/courserag/pkg/tools"
)

var ErrEmptyQuery = errors.New("query is empty")

type SystemConfig struct {
	Processor processor.Processor
	Store     *store.VectorStore
	Generator *llm.Generator
	Sessions  *session.Manager
	Loader    *loader.Loader
	Logger    *slog.Logger
}

// System wires ingestion, retrieval tools, generation and session history.
type System struct {
	processor processor.Processor
	store     *store.VectorStore
	registry  *tools.Registry
	generator *llm.Generator
	sessions  *session.Manager
	loader    *loader.Loader
	logger    *slog.Logger

	// Tool sources are per registry, so one query runs at a time.
	queryMu sync.Mutex
}

func NewWithConfig(config SystemConfig) (*System, error) {
	if config.Store == nil {
		return nil, errors.New("vector store is required")
	}
	if config.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if config.Processor == (processor.Processor{}) {
		config.Processor = processor.NewWithConfig(processor.DefaultConfig())
	}
	if config.Sessions == nil {
		config.Sessions = session.NewManager(2)
	}
	if config.Loader == nil {
		config.Loader = loader.New()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewCourseSearchTool(config.Store)); err != nil {
		return nil, err
	}
	if err := registry.Register(tools.NewCourseOutlineTool(config.Store)); err != nil {
		return nil, err
	}

	return &System{
		processor: config.Processor,
		store:     config.Store,
		registry:  registry,
		generator: config.Generator,
		sessions:  config.Sessions,
		loader:    config.Loader,
		logger:    config.Logger,
	}, nil
}

type Response struct {
	Answer    string          `json:"answer"`
	Sources   []models.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

// Query answers text within a session. An empty sessionID starts a new one.
func (s *System) Query(ctx context.Context, text, sessionID string) (*Response, error) {
	return s.QueryStream(ctx, text, sessionID, nil)
}

// QueryStream is Query with the final answer also delivered to onToken as it
// is generated.
func (s *System) QueryStream(ctx context.Context, text, sessionID string, onToken func(string)) (*Response, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if sessionID == "" {
		sessionID = s.sessions.CreateSession()
	}
	history := s.sessions.History(sessionID)

	s.queryMu.Lock()
	s.registry.ResetSources()
	answer, err := s.generator.Generate(ctx, llm.Request{
		Query:   text,
		History: history,
		Tools:   s.registry,
		OnToken: onToken,
	})
	sources := s.registry.CollectSources()
	s.queryMu.Unlock()
	if sources == nil {
		sources = []models.Source{}
	}

	if err != nil {
		return nil, err
	}

	s.sessions.AddExchange(sessionID, text, answer)
	return &Response{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	}, nil
}

func (s *System) NewSession() string {
	return s.sessions.CreateSession()
}

type IngestReport struct {
	CoursesAdded int
	ChunksAdded  int
	Skipped      int
	Failed       int
}

// IngestAll loads every document at source and indexes the courses not yet
// in the catalog. Documents that fail to parse are logged and skipped.
func (s *System) IngestAll(ctx context.Context, source string, clearExisting bool) (IngestReport, error) {
	var report IngestReport

	if clearExisting {
		s.logger.Info("clearing existing course data")
		if err := s.store.Clear(ctx); err != nil {
			return report, err
		}
	}

	titles, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return report, err
	}
	existing := make(map[string]bool, len(titles))
	for _, t := range titles {
		existing[t] = true
	}

	docs, err := s.loader.Load(ctx, source)
	if err != nil {
		return report, err
	}

	for _, doc := range docs {
		course, chunks, err := s.processor.ProcessDocument(doc.Content)
		if err != nil {
			s.logger.Warn("skipping document", "source", doc.Source, "error", err)
			report.Failed++
			continue
		}

		if existing[course.Title] {
			s.logger.Debug("course already indexed", "course", course.Title, "source", doc.Source)
			report.Skipped++
			continue
		}

		if err := s.addCourse(ctx, course, chunks); err != nil {
			return report, fmt.Errorf("index %s: %w", doc.Source, err)
		}
		existing[course.Title] = true
		report.CoursesAdded++
		report.ChunksAdded += len(chunks)
		s.logger.Info("indexed course", "course", course.Title, "chunks", len(chunks), "source", doc.Source)
	}

	return report, nil
}

// AddCourseDocument indexes one document. It returns the number of chunks
// added, which is zero when the course is already indexed.
func (s *System) AddCourseDocument(ctx context.Context, content string) (*models.Course, int, error) {
	course, chunks, err := s.processor.ProcessDocument(content)
	if err != nil {
		return nil, 0, err
	}

	titles, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return nil, 0, err
	}
	for _, t := range titles {
		if t == course.Title {
			return course, 0, nil
		}
	}

	if err := s.addCourse(ctx, course, chunks); err != nil {
		return nil, 0, err
	}
	return course, len(chunks), nil
}

// addCourse stores the chunks before the catalog entry, so a course appears
// in the catalog only once its content is complete.
func (s *System) addCourse(ctx context.Context, course *models.Course, chunks []models.CourseChunk) error {
	if err := s.store.AddChunks(ctx, chunks); err != nil {
		return err
	}
	return s.store.AddCourseMetadata(ctx, course)
}

func (s *System) ListCourses(ctx context.Context) ([]string, error) {
	return s.store.ExistingCourseTitles(ctx)
}

type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

func (s *System) Analytics(ctx context.Context) (*Analytics, error) {
	titles, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return nil, err
	}
	if titles == nil {
		titles = []string{}
	}
	return &Analytics{
		TotalCourses: len(titles),
		CourseTitles: titles,
	}, nil
}
