package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/courserag/internal/models"
	"github.com/xhad/courserag/pkg/llm"
	"github.com/xhad/courserag/pkg/store"
)

const testDim = 256

func intPtr(n int) *int { return &n }

func sampleCourses() []*models.Course {
	return []*models.Course{
		{
			Title:      "Introduction to Machine Learning",
			Link:       "https://example.com/ml",
			Instructor: "Dr. Smith",
			Lessons: []models.Lesson{
				{Number: 1, Title: "Regression", Link: "https://example.com/ml/1"},
				{Number: 2, Title: "Classification"},
			},
		},
		{
			Title: "Organic Chemistry Fundamentals",
			Link:  "https://example.com/chem",
			Lessons: []models.Lesson{
				{Number: 1, Title: "Carbon bonds"},
			},
		},
	}
}

func sampleChunks() []models.CourseChunk {
	return []models.CourseChunk{
		{Content: "Course: Introduction to Machine Learning", CourseTitle: "Introduction to Machine Learning", Index: 0},
		{Content: "Linear regression fits a line to data points.", CourseTitle: "Introduction to Machine Learning", LessonNumber: intPtr(1), Index: 1},
		{Content: "Classification assigns labels such as spam or not spam.", CourseTitle: "Introduction to Machine Learning", LessonNumber: intPtr(2), Index: 2},
		{Content: "Course: Organic Chemistry Fundamentals", CourseTitle: "Organic Chemistry Fundamentals", Index: 0},
		{Content: "Carbon forms four covalent bonds with other atoms.", CourseTitle: "Organic Chemistry Fundamentals", LessonNumber: intPtr(1), Index: 1},
	}
}

func newPopulatedStore(t *testing.T, vs *store.VectorStore) {
	t.Helper()
	ctx := context.Background()
	for _, c := range sampleCourses() {
		require.NoError(t, vs.AddCourseMetadata(ctx, c))
	}
	require.NoError(t, vs.AddChunks(ctx, sampleChunks()))
}

func newMemoryStore(t *testing.T) *store.VectorStore {
	t.Helper()
	vs := store.NewMemory(store.VectorStoreConfig{MaxResults: 5, BatchSize: 2}, llm.NewHashEmbedder(testDim), testDim)
	t.Cleanup(vs.Close)
	return vs
}

func TestVectorStore_ResolveCourseName(t *testing.T) {
	ctx := context.Background()
	vs := newMemoryStore(t)

	_, err := vs.ResolveCourseName(ctx, "anything")
	var notFound *store.CourseNotFoundError
	require.True(t, errors.As(err, &notFound), "empty catalog must not resolve")
	assert.Equal(t, "anything", notFound.Name)

	newPopulatedStore(t, vs)

	for _, c := range sampleCourses() {
		title, err := vs.ResolveCourseName(ctx, c.Title)
		require.NoError(t, err)
		assert.Equal(t, c.Title, title)
	}

	title, err := vs.ResolveCourseName(ctx, "chemistry")
	require.NoError(t, err)
	assert.Equal(t, "Organic Chemistry Fundamentals", title)

	// No similarity floor: an unrelated name still resolves to some course.
	title, err = vs.ResolveCourseName(ctx, "zzz")
	require.NoError(t, err)
	assert.NotEmpty(t, title)
}

func TestVectorStore_Search(t *testing.T) {
	ctx := context.Background()
	vs := newMemoryStore(t)
	newPopulatedStore(t, vs)

	results, err := vs.Search(ctx, "linear regression", store.SearchFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "Linear regression fits a line to data points.", results[0].Content)
	assert.Equal(t, "Introduction to Machine Learning", results[0].CourseTitle)
	require.NotNil(t, results[0].LessonNumber)
	assert.Equal(t, 1, *results[0].LessonNumber)
	assert.Equal(t, 1, results[0].ChunkIndex)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}

	results, err = vs.Search(ctx, "bonds", store.SearchFilter{CourseName: "Organic Chemistry"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "Organic Chemistry Fundamentals", r.CourseTitle)
	}

	results, err = vs.Search(ctx, "anything", store.SearchFilter{CourseName: "Machine Learning", LessonNumber: intPtr(2)}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "Classification")

	results, err = vs.Search(ctx, "anything", store.SearchFilter{LessonNumber: intPtr(7)}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = vs.Search(ctx, "regression", store.SearchFilter{}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestVectorStore_SearchUnknownCourseOnEmptyCatalog(t *testing.T) {
	vs := newMemoryStore(t)

	_, err := vs.Search(context.Background(), "q", store.SearchFilter{CourseName: "Nonexistent"}, 0)
	var notFound *store.CourseNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestVectorStore_IdempotentAdd(t *testing.T) {
	ctx := context.Background()
	vs := newMemoryStore(t)
	newPopulatedStore(t, vs)
	newPopulatedStore(t, vs)

	n, err := vs.CourseCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = vs.ChunkCount(ctx, "Introduction to Machine Learning")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	titles, err := vs.ExistingCourseTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Introduction to Machine Learning", "Organic Chemistry Fundamentals"}, titles)
}

func TestVectorStore_CourseOutline(t *testing.T) {
	ctx := context.Background()
	vs := newMemoryStore(t)
	newPopulatedStore(t, vs)

	course, err := vs.CourseOutline(ctx, "Introduction to Machine Learning")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ml", course.Link)
	assert.Equal(t, "Dr. Smith", course.Instructor)
	require.Len(t, course.Lessons, 2)
	assert.Equal(t, "Regression", course.Lessons[0].Title)
	assert.Equal(t, "https://example.com/ml/1", course.Lessons[0].Link)
	assert.Empty(t, course.Lessons[1].Link)

	_, err = vs.CourseOutline(ctx, "Missing")
	var notFound *store.CourseNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestVectorStore_Clear(t *testing.T) {
	ctx := context.Background()
	vs := newMemoryStore(t)
	newPopulatedStore(t, vs)

	require.NoError(t, vs.Clear(ctx))
	n, err := vs.CourseCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	results, err := vs.Search(ctx, "regression", store.SearchFilter{}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}
