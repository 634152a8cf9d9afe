package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/amm/internal/api/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]any
}

// fakeServer answers each path with a canned status and body and records
// the requests it saw.
func fakeServer(t *testing.T, routes map[string]func() (int, string)) (*APIClient, *[]recorded) {
	t.Helper()
	var seen []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, auth: r.Header.Get("Authorization")}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.body)
		}
		seen = append(seen, rec)

		route, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		status, body := route()
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewAPIClientWithConfig("tok", srv.URL+"/"), &seen
}

func static(status int, body string) func() (int, string) {
	return func() (int, string) { return status, body }
}

func TestAPIClient_Errors(t *testing.T) {
	api, seen := fakeServer(t, map[string]func() (int, string){
		"/conflict": static(http.StatusConflict, `{"error":"turn ids must increase within a session"}`),
		"/plain":    static(http.StatusBadGateway, `upstream down`),
		"/empty":    static(http.StatusNoContent, ``),
	})
	ctx := context.Background()

	_, err := api.Post(ctx, "/conflict", map[string]int{"turn_id": 1})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "turn ids must increase within a session", apiErr.Message)

	_, err = api.Get(ctx, "/plain", nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "upstream down", apiErr.Message)

	_, err = api.Get(ctx, "/missing", nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	resp, err := api.Post(ctx, "/empty", nil)
	require.NoError(t, err)
	assert.Error(t, resp.Decode(&struct{}{}))

	for _, r := range *seen {
		assert.Equal(t, "Bearer tok", r.auth)
	}
}

func TestAPIClient_NoTokenNoHeader(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		io.WriteString(w, `{"data":{}}`)
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig("", srv.URL).Get(context.Background(), "/info", nil)
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestRunAsk_Generate(t *testing.T) {
	api, seen := fakeServer(t, map[string]func() (int, string){
		"/generate": static(http.StatusOK, `{"data":{"response":"Within 30 days.","metadata":{"query_id":"q1","session_id":"q1","turn_id":1,"timestamp":"2026-01-02T03:04:05Z"}}}`),
	})
	var out strings.Builder

	require.NoError(t, runAsk(context.Background(), api, &out, "refund window?", "", false, false))
	assert.Contains(t, out.String(), "Within 30 days.\n")
	assert.Contains(t, out.String(), "session: q1  turn: 1")

	require.Len(t, *seen, 1)
	assert.Equal(t, http.MethodPost, (*seen)[0].method)
	assert.Equal(t, "refund window?", (*seen)[0].body["query"])
	assert.NotContains(t, (*seen)[0].body, "session_id")
}

func TestRunAsk_WithContext(t *testing.T) {
	api, seen := fakeServer(t, map[string]func() (int, string){
		"/query": static(http.StatusOK, `{"data":{
			"response":"Yes.","session_id":"s1","turn_id":3,"timestamp":"2026-01-02T03:04:05Z",
			"context":{
				"fixed":[{"text":"Refunds within thirty days.","distance":0.125,"metadata":{"source_name":"policies","content_type":"text","chunk_index":0,"chunk_size":27,"total_chunks":1}}],
				"adaptive":[{"id":"i2","session_id":"s1","turn_id":2,"query":"Do you ship abroad?","response":"No.","timestamp":"2026-01-02T03:00:00Z"}]
			}}}`),
	})
	var out strings.Builder

	require.NoError(t, runAsk(context.Background(), api, &out, "refund?", "s1", true, false))
	text := out.String()
	assert.Contains(t, text, "Knowledge used (1):")
	assert.Contains(t, text, "1. policies [0.125] Refunds within thirty days.")
	assert.Contains(t, text, "History used (1):")
	assert.Contains(t, text, "#2 Do you ship abroad?")
	assert.Contains(t, text, "session: s1  turn: 3")
	assert.Equal(t, true, (*seen)[0].body["include_context"])

	err := runAsk(context.Background(), api, &out, "refund?", "", true, false)
	assert.EqualError(t, err, "--context requires --session")
}

func TestRunHistory(t *testing.T) {
	api, seen := fakeServer(t, map[string]func() (int, string){
		"/sessions/s 1/interactions": static(http.StatusOK, `{"data":{"items":[
			{"id":"b","session_id":"s 1","turn_id":2,"query":"second","response":"two","timestamp":"2026-01-02T03:00:02Z","feedback_score":1},
			{"id":"a","session_id":"s 1","turn_id":1,"query":"first","response":"one","timestamp":"2026-01-02T03:00:01Z"}
		],"cursor":"next-page","has_more":true}}`),
	})
	var out strings.Builder

	require.NoError(t, runHistory(context.Background(), api, &out, "s 1", 2, "prev", false))
	text := out.String()
	assert.Less(t, strings.Index(text, "#2"), strings.Index(text, "#1"))
	assert.Contains(t, text, "feedback: +1")
	assert.Contains(t, text, "User: first")
	assert.Contains(t, text, "Use --cursor next-page")

	assert.Equal(t, "/sessions/s 1/interactions", (*seen)[0].path)
	assert.Equal(t, "cursor=prev&limit=2", (*seen)[0].query)
}

func TestRunHistory_Empty(t *testing.T) {
	api, _ := fakeServer(t, map[string]func() (int, string){
		"/sessions/s1/interactions": static(http.StatusOK, `{"data":{"items":[],"has_more":false}}`),
	})
	var out strings.Builder

	require.NoError(t, runHistory(context.Background(), api, &out, "s1", 20, "", false))
	assert.Equal(t, "No interactions found.\n", out.String())
}

func TestRunFeedback(t *testing.T) {
	api, seen := fakeServer(t, map[string]func() (int, string){
		"/sessions/s1/feedback": static(http.StatusNoContent, ``),
	})
	var out strings.Builder

	require.NoError(t, runFeedback(context.Background(), api, &out, "s1", 4, -1))
	assert.Equal(t, "Recorded feedback -1 for turn 4\n", out.String())
	assert.Equal(t, float64(4), (*seen)[0].body["turn_id"])
	assert.Equal(t, float64(-1), (*seen)[0].body["score"])
}

func TestRunInfo(t *testing.T) {
	api, _ := fakeServer(t, map[string]func() (int, string){
		"/info":    static(http.StatusOK, `{"data":{"id":"d1","name":"Store Assistant","knowledge_sources":2,"capabilities":{"fixed_knowledge":true,"adaptive_memory":true,"generation":false}}}`),
		"/welcome": static(http.StatusOK, `{"data":{"message":"Hello! How can I help?"}}`),
	})
	var out strings.Builder

	require.NoError(t, runInfo(context.Background(), api, &out, false))
	text := out.String()
	assert.Contains(t, text, "Store Assistant (d1)")
	assert.Contains(t, text, "Knowledge sources: 2")
	assert.Contains(t, text, "Generation:        disabled")
	assert.Contains(t, text, "Hello! How can I help?")

	out.Reset()
	require.NoError(t, runInfo(context.Background(), api, &out, true))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out.String()), &decoded))
	assert.Equal(t, "Store Assistant", decoded["name"])
	assert.Equal(t, "Hello! How can I help?", decoded["welcome_message"])
}

func TestBuildKnowledgeRequest(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(notes, []byte("Store hours are nine to five."), 0o600))

	req, err := buildKnowledgeRequest("", "", notes, "", "")
	require.NoError(t, err)
	assert.Equal(t, handlers.AddKnowledgeRequest{Name: "notes.md", Type: "text", Content: "Store hours are nine to five."}, req)

	req, err = buildKnowledgeRequest("manual", "", "", "s3://docs/manual.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, handlers.AddKnowledgeRequest{Name: "manual", Type: "pdf", Path: "s3://docs/manual.pdf"}, req)

	req, err = buildKnowledgeRequest("", "", "", "faq.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "file", req.Type)

	req, err = buildKnowledgeRequest("inline", "", "", "", "hello")
	require.NoError(t, err)
	assert.Equal(t, handlers.AddKnowledgeRequest{Name: "inline", Type: "text", Content: "hello"}, req)

	_, err = buildKnowledgeRequest("", "", filepath.Join(dir, "scan.pdf"), "", "")
	assert.ErrorContains(t, err, "use --path")

	_, err = buildKnowledgeRequest("", "", filepath.Join(dir, "missing.txt"), "", "")
	assert.ErrorContains(t, err, "failed to read")
}

func TestRunKnowledgeAdd(t *testing.T) {
	api, seen := fakeServer(t, map[string]func() (int, string){
		"/knowledge": static(http.StatusCreated, `{"data":{"name":"faq","report":{"total":3,"embedded":2,"skipped":1}}}`),
	})
	var out strings.Builder

	err := runKnowledgeAdd(context.Background(), api, &out, handlers.AddKnowledgeRequest{Name: "faq", Type: "text", Content: "..."}, false)
	require.NoError(t, err)
	assert.Equal(t, "Indexed faq: 2 of 3 chunks embedded (1 skipped)\n", out.String())
	assert.Equal(t, "faq", (*seen)[0].body["name"])
}
