package models

import "fmt"

// Lesson is a numbered unit of a course. Number is unique within its course.
type Lesson struct {
	Number int
	Title  string
	Link   string
	Body   string
}

// Course is the parsed form of one course document. Title is its identity.
// Description holds free text found between the header and the first lesson.
type Course struct {
	Title       string
	Link        string
	Instructor  string
	Description string
	Lessons     []Lesson
}

// Lesson returns the lesson with the given number, if present.
func (c *Course) Lesson(number int) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.Number == number {
			return l, true
		}
	}
	return Lesson{}, false
}

// CourseChunk is the unit of semantic search. A nil LessonNumber marks a
// course-level chunk.
type CourseChunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	Index        int
}

// ID is the storage key of the chunk.
func (c CourseChunk) ID() string {
	return ChunkID(c.CourseTitle, c.Index)
}

func ChunkID(courseTitle string, index int) string {
	return fmt.Sprintf("%s#%d", courseTitle, index)
}

// Source is a citation attached to an answer.
type Source struct {
	Label string `json:"label"`
	Link  string `json:"link,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    string
	Content string
}
