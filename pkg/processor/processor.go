package processor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xhad/courserag/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Processor turns course documents into courses and chunks.
type Processor struct {
	config ProcessorConfig
}

// DefaultConfig is 800-character chunks with 100 characters of overlap.
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{ChunkSize: 800, ChunkOverlap: 100}
}

// NewWithConfig builds a processor. A zero ChunkSize falls back to the
// default; a zero ChunkOverlap disables overlap.
func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultConfig().ChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}

	return Processor{
		config: config,
	}
}

// ParseError reports a document that does not follow the course format.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("parse error: %s", e.Reason)
}

var (
	titleRe      = regexp.MustCompile(`^Course Title:(.*)$`)
	linkRe       = regexp.MustCompile(`^Course Link:(.*)$`)
	instructorRe = regexp.MustCompile(`^Course Instructor:(.*)$`)
	lessonRe     = regexp.MustCompile(`^Lesson\s+(\d+):(.*)$`)
	lessonLinkRe = regexp.MustCompile(`^Lesson Link:(.*)$`)
)

// Parse reads the course header and lesson blocks of a document. Text
// between the header and the first lesson marker becomes the course
// description.
func (p *Processor) Parse(document string) (*models.Course, error) {
	var (
		course   *models.Course
		lineNo   int
		preamble []string
		current  *models.Lesson
		body     []string
		seen     = make(map[int]bool)
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		course.Lessons = append(course.Lessons, *current)
		current = nil
		body = nil
	}

	for _, raw := range strings.Split(document, "\n") {
		lineNo++
		raw = strings.TrimSuffix(raw, "\r")
		line := strings.TrimSpace(raw)

		if course == nil {
			if line == "" {
				continue
			}
			m := titleRe.FindStringSubmatch(line)
			if m == nil {
				return nil, &ParseError{Line: lineNo, Reason: "missing 'Course Title:' header"}
			}
			title := strings.TrimSpace(m[1])
			if title == "" {
				return nil, &ParseError{Line: lineNo, Reason: "empty course title"}
			}
			course = &models.Course{Title: title}
			continue
		}

		if m := lessonRe.FindStringSubmatch(line); m != nil {
			flush()
			number, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("invalid lesson number %q", m[1])}
			}
			if seen[number] {
				return nil, &ParseError{Line: lineNo, Reason: fmt.Sprintf("duplicate lesson number %d", number)}
			}
			seen[number] = true
			current = &models.Lesson{Number: number, Title: strings.TrimSpace(m[2])}
			continue
		}

		if current == nil {
			if m := linkRe.FindStringSubmatch(line); m != nil && course.Link == "" {
				course.Link = strings.TrimSpace(m[1])
				continue
			}
			if m := instructorRe.FindStringSubmatch(line); m != nil && course.Instructor == "" {
				course.Instructor = strings.TrimSpace(m[1])
				continue
			}
			preamble = append(preamble, raw)
			continue
		}

		// Lesson Link is only recognised directly after the lesson marker.
		if current.Link == "" && strings.TrimSpace(strings.Join(body, "")) == "" {
			if m := lessonLinkRe.FindStringSubmatch(line); m != nil {
				current.Link = strings.TrimSpace(m[1])
				continue
			}
		}
		body = append(body, raw)
	}
	if course == nil {
		return nil, &ParseError{Reason: "missing 'Course Title:' header"}
	}
	flush()

	course.Description = strings.TrimSpace(strings.Join(preamble, "\n"))

	return course, nil
}

// ChunkCourse produces the chunks of a parsed course. The course-level
// summary chunk comes first; indices increase from startIndex.
func (p *Processor) ChunkCourse(course *models.Course, startIndex int) []models.CourseChunk {
	index := startIndex
	chunks := []models.CourseChunk{{
		Content:     courseSummary(course),
		CourseTitle: course.Title,
		Index:       index,
	}}
	index++

	for _, lesson := range course.Lessons {
		number := lesson.Number
		for _, text := range ChunkText(lesson.Body, p.config.ChunkSize, p.config.ChunkOverlap) {
			chunks = append(chunks, models.CourseChunk{
				Content:      text,
				CourseTitle:  course.Title,
				LessonNumber: &number,
				Index:        index,
			})
			index++
		}
	}

	for _, text := range ChunkText(course.Description, p.config.ChunkSize, p.config.ChunkOverlap) {
		chunks = append(chunks, models.CourseChunk{
			Content:     text,
			CourseTitle: course.Title,
			Index:       index,
		})
		index++
	}

	return chunks
}

// ProcessDocument parses a document and chunks it from index zero.
func (p *Processor) ProcessDocument(document string) (*models.Course, []models.CourseChunk, error) {
	course, err := p.Parse(document)
	if err != nil {
		return nil, nil, err
	}
	return course, p.ChunkCourse(course, 0), nil
}

func courseSummary(course *models.Course) string {
	var sb strings.Builder
	sb.WriteString("Course: ")
	sb.WriteString(course.Title)
	if course.Instructor != "" {
		sb.WriteString("\nInstructor: ")
		sb.WriteString(course.Instructor)
	}
	return sb.String()
}
