package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xhad/courserag/pkg/llm"
	"github.com/xhad/courserag/pkg/store"
)

func startPgvector(t *testing.T, ctx context.Context) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping pgvector integration test in short mode")
	}

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "courserag",
			"POSTGRES_PASSWORD": "courserag",
			"POSTGRES_DB":       "courserag",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://courserag:courserag@%s:%s/courserag?sslmode=disable", host, port.Port())
}

func TestPgVectorStore(t *testing.T) {
	ctx := context.Background()
	dsn := startPgvector(t, ctx)

	vs, err := store.NewPostgres(ctx, store.PostgresConfig{
		ConnString:   dsn,
		CatalogTable: "test_course_catalog",
		ContentTable: "test_course_content",
		VectorDim:    testDim,
	}, store.VectorStoreConfig{MaxResults: 5, BatchSize: 2}, llm.NewHashEmbedder(testDim))
	require.NoError(t, err)
	defer vs.Close()

	newPopulatedStore(t, vs)
	newPopulatedStore(t, vs)

	n, err := vs.CourseCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	title, err := vs.ResolveCourseName(ctx, "chemistry")
	require.NoError(t, err)
	assert.Equal(t, "Organic Chemistry Fundamentals", title)

	results, err := vs.Search(ctx, "linear regression", store.SearchFilter{}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Linear regression fits a line to data points.", results[0].Content)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}

	results, err = vs.Search(ctx, "anything", store.SearchFilter{CourseName: "Machine Learning", LessonNumber: intPtr(2)}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].LessonNumber)
	assert.Equal(t, 2, *results[0].LessonNumber)

	course, err := vs.CourseOutline(ctx, "Introduction to Machine Learning")
	require.NoError(t, err)
	assert.Len(t, course.Lessons, 2)

	require.NoError(t, vs.Clear(ctx))
	n, err = vs.ChunkCount(ctx, "Introduction to Machine Learning")
	require.NoError(t, err)
	assert.Zero(t, n)
}
