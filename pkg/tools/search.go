package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xhad/courserag/internal/models"
	"github.com/xhad/courserag/pkg/store"
)

const SearchToolName = "search_course_content"

// CourseSearcher is the part of the vector store the search tools need.
type CourseSearcher interface {
	Search(ctx context.Context, query string, filter store.SearchFilter, limit int) ([]store.SearchResult, error)
	ResolveCourseName(ctx context.Context, name string) (string, error)
	CourseOutline(ctx context.Context, title string) (*models.Course, error)
}

// CourseSearchTool runs semantic search over course content, optionally
// narrowed to one course and lesson.
type CourseSearchTool struct {
	store CourseSearcher

	mu          sync.Mutex
	lastSources []models.Source
}

func NewCourseSearchTool(s CourseSearcher) *CourseSearchTool {
	return &CourseSearchTool{store: s}
}

func (t *CourseSearchTool) Definition() Definition {
	return Definition{
		Name:        SearchToolName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search for in the course content",
				},
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title; partial matches work (e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": map[string]any{
					"type":        "integer",
					"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *CourseSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}
	courseName, err := stringArg(args, "course_name")
	if err != nil {
		return "", err
	}
	lessonNumber, err := intArg(args, "lesson_number")
	if err != nil {
		return "", err
	}

	results, err := t.store.Search(ctx, query, store.SearchFilter{
		CourseName:   courseName,
		LessonNumber: lessonNumber,
	}, 0)
	var notFound *store.CourseNotFoundError
	if errors.As(err, &notFound) {
		t.setSources(nil)
		return fmt.Sprintf("No course found matching '%s'.", courseName), nil
	}
	if err != nil {
		return "", err
	}

	if len(results) == 0 {
		t.setSources(nil)
		msg := "No relevant content found"
		if courseName != "" {
			msg += fmt.Sprintf(" in course '%s'", courseName)
		}
		if lessonNumber != nil {
			msg += fmt.Sprintf(" in lesson %d", *lessonNumber)
		}
		return msg + ".", nil
	}

	return t.format(ctx, results), nil
}

func (t *CourseSearchTool) format(ctx context.Context, results []store.SearchResult) string {
	courses := make(map[string]*models.Course)
	blocks := make([]string, 0, len(results))
	sources := make([]models.Source, 0, len(results))

	for _, r := range results {
		label := r.CourseTitle
		if r.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", r.CourseTitle, *r.LessonNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, r.Content))

		course, ok := courses[r.CourseTitle]
		if !ok {
			// Links are best effort; a missing catalog entry leaves them empty.
			course, _ = t.store.CourseOutline(ctx, r.CourseTitle)
			courses[r.CourseTitle] = course
		}
		sources = append(sources, models.Source{Label: label, Link: sourceLink(course, r.LessonNumber)})
	}

	t.setSources(sources)
	return strings.Join(blocks, "\n\n")
}

func sourceLink(course *models.Course, lessonNumber *int) string {
	if course == nil {
		return ""
	}
	if lessonNumber != nil {
		if lesson, ok := course.Lesson(*lessonNumber); ok && lesson.Link != "" {
			return lesson.Link
		}
	}
	return course.Link
}

func (t *CourseSearchTool) setSources(sources []models.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSources = sources
}

func (t *CourseSearchTool) LastSources() []models.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Source(nil), t.lastSources...)
}

func (t *CourseSearchTool) ResetSources() {
	t.setSources(nil)
}
