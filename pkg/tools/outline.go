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

const OutlineToolName = "get_course_outline"

// CourseOutlineTool returns the title, link, instructor and lesson list of
// a course.
type CourseOutlineTool struct {
	store CourseSearcher

	mu          sync.Mutex
	lastSources []models.Source
}

func NewCourseOutlineTool(s CourseSearcher) *CourseOutlineTool {
	return &CourseOutlineTool{store: s}
}

func (t *CourseOutlineTool) Definition() Definition {
	return Definition{
		Name:        OutlineToolName,
		Description: "Get the outline of a course: its title, link, instructor and the numbered list of lessons",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"course_title": map[string]any{
					"type":        "string",
					"description": "Course title; partial matches work",
				},
			},
			"required": []string{"course_title"},
		},
	}
}

func (t *CourseOutlineTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	name, err := stringArg(args, "course_title")
	if err != nil {
		return "", err
	}

	title, err := t.store.ResolveCourseName(ctx, name)
	if err == nil {
		var course *models.Course
		course, err = t.store.CourseOutline(ctx, title)
		if err == nil {
			t.setSources([]models.Source{{Label: course.Title, Link: course.Link}})
			return formatOutline(course), nil
		}
	}

	var notFound *store.CourseNotFoundError
	if errors.As(err, &notFound) {
		t.setSources(nil)
		return fmt.Sprintf("No course found matching '%s'.", name), nil
	}
	return "", err
}

func formatOutline(course *models.Course) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course Title: %s\n", course.Title)
	if course.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", course.Link)
	}
	if course.Instructor != "" {
		fmt.Fprintf(&b, "Course Instructor: %s\n", course.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d):", len(course.Lessons))
	for _, l := range course.Lessons {
		fmt.Fprintf(&b, "\nLesson %d: %s", l.Number, l.Title)
	}
	return b.String()
}

func (t *CourseOutlineTool) setSources(sources []models.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSources = sources
}

func (t *CourseOutlineTool) LastSources() []models.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Source(nil), t.lastSources...)
}

func (t *CourseOutlineTool) ResetSources() {
	t.setSources(nil)
}
