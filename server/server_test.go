package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/courserag/pkg/llm"
	"github.com/xhad/courserag/pkg/llm/llmtest"
	"github.com/xhad/courserag/pkg/rag"
	"github.com/xhad/courserag/pkg/store"
	"github.com/xhad/courserag/pkg/tools"
	"github.com/xhad/courserag/server"
)

const dim = 128

func newTestServer(t *testing.T) (*httptest.Server, *llmtest.ScriptedModel) {
	t.Helper()
	vs := store.NewMemory(store.VectorStoreConfig{}, llm.NewHashEmbedder(dim), dim)
	t.Cleanup(vs.Close)

	model := llmtest.NewScriptedModel()
	system, err := rag.NewWithConfig(rag.SystemConfig{
		Store:     vs,
		Generator: llm.NewGenerator(model, llm.GeneratorConfig{}),
	})
	require.NoError(t, err)

	_, _, err = system.AddCourseDocument(context.Background(), "Course Title: Intro\nCourse Link: https://example.com/intro\nLesson 1: Basics\nHello world.")
	require.NoError(t, err)

	srv := httptest.NewServer(server.New(system, nil))
	t.Cleanup(srv.Close)
	return srv, model
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestServer_Query(t *testing.T) {
	srv, model := newTestServer(t)
	model.Push(
		llmtest.ToolCall("call_1", tools.SearchToolName, `{"query":"hello","lesson_number":1}`),
		llmtest.Text("It says hello."),
	)

	body, _ := json.Marshal(map[string]string{"query": "what does lesson 1 say"})
	resp, err := http.Post(srv.URL+"/api/query", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out rag.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "It says hello.", out.Answer)
	assert.NotEmpty(t, out.SessionID)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "Intro - Lesson 1", out.Sources[0].Label)
	assert.Equal(t, "https://example.com/intro", out.Sources[0].Link)
}

func TestServer_QueryWithoutToolsHasEmptySources(t *testing.T) {
	srv, model := newTestServer(t)
	model.Push(llmtest.Text("Four."))

	resp, err := http.Post(srv.URL+"/api/query", "application/json", strings.NewReader(`{"query":"what is 2+2"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Four.", out["answer"])
	assert.Equal(t, []any{}, out["sources"])
}

func TestServer_QueryErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/query", "application/json", strings.NewReader(`{"query":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/query", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/query")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	// The model has no scripted answer, so generation fails upstream.
	resp, err = http.Post(srv.URL+"/api/query", "application/json", strings.NewReader(`{"query":"hi"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_CoursesAndSession(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/courses")
	require.NoError(t, err)
	defer resp.Body.Close()
	var a rag.Analytics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&a))
	assert.Equal(t, rag.Analytics{TotalCourses: 1, CourseTitles: []string{"Intro"}}, a)

	resp2, err := http.Post(srv.URL+"/api/session/new", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	var s map[string]string
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&s))
	assert.NotEmpty(t, s["session_id"])
}

func TestServer_WebSocket(t *testing.T) {
	srv, model := newTestServer(t)
	model.Push(llmtest.Text("Hi there."))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(server.Message{Type: "query", Content: "hello"}))

	var frames []server.Message
	for {
		var msg server.Message
		require.NoError(t, conn.ReadJSON(&msg))
		frames = append(frames, msg)
		if msg.Type == "response" || msg.Type == "error" {
			break
		}
	}

	last := frames[len(frames)-1]
	assert.Equal(t, "response", last.Type)
	assert.Equal(t, "Hi there.", last.Content)
	assert.NotEmpty(t, last.SessionID)
	assert.Equal(t, server.Message{Type: "stream", Content: "Hi there."}, frames[0])

	require.NoError(t, conn.WriteJSON(server.Message{Type: "bogus"}))
	var msg server.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
}

func TestServer_Metrics(t *testing.T) {
	srv, model := newTestServer(t)
	model.Push(llmtest.Text("ok"))

	resp, err := http.Post(srv.URL+"/api/query", "application/json", strings.NewReader(`{"query":"hi"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `courserag_queries_total{status="ok",transport="http"} 1`)
	assert.Contains(t, string(body), "courserag_query_duration_seconds_count 1")
}
