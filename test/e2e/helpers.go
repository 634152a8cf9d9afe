//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/extract"
	"github.com/cloo-solutions/amm/internal/repository"
	"github.com/cloo-solutions/amm/internal/server"
	"github.com/cloo-solutions/amm/internal/service"
	"github.com/cloo-solutions/amm/internal/storage"
	"github.com/cloo-solutions/amm/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	apiToken = "e2e-token"
	bucket   = "amm-e2e"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	S3Client     *storage.S3Client
	Engine       *service.Engine
	Generator    *recordingGenerator
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS, uploads the handbook to the bucket
// and serves design on a free port.
func SetupE2EEnv(t *testing.T, design *domain.Design, objects map[string]string) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	for key, body := range objects {
		if err := s3Client.Put(ctx, key, "text/plain", strings.NewReader(body)); err != nil {
			t.Fatalf("failed to upload %s: %v", key, err)
		}
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		Generator:  &recordingGenerator{},
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	env.Engine = env.newEngine(design)

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	env.ServerURL, env.ServerCloser = startServer(t, env.Engine, port)

	return env
}

func (e *E2ETestEnv) newEngine(design *domain.Design) *service.Engine {
	ingestion, err := service.NewIngestionService(
		extract.New(e.Ctx, extract.DefaultRegistry("eng")),
		e.S3Client,
		service.IngestionConfig{Chunking: chunkingConfig},
	)
	if err != nil {
		e.T.Fatalf("failed to create ingestion: %v", err)
	}

	embedder := newKeywordEmbedder("refund", "shipping", "warranty", "password")
	engine, err := service.NewEngine(e.Ctx, design, service.EngineDeps{
		Ingestion: ingestion,
		Indexer:   service.NewKnowledgeIndexer(embedder, repository.NewVectorOpener(e.Pool), 5*time.Second),
		Embedder:  embedder,
		Generator: e.Generator,
		Log:       repository.NewInteractionRepository(e.Pool, design.ID),
	})
	if err != nil {
		e.T.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the amm client
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "amm-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "amm"), "./cmd/amm")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build amm: %v\n%s", err, out)
	}
}

// RunAMM runs the amm CLI against the test server
func (e *E2ETestEnv) RunAMM(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "amm"), args...)
	cmd.Dir = e.T.TempDir()
	cmd.Env = append(os.Environ(),
		"AMM_API_TOKEN="+apiToken,
		"AMM_API_URL="+e.ServerURL,
		// keep the developer's own credentials out of the test
		"XDG_CONFIG_HOME="+e.T.TempDir(),
		"HOME="+e.T.TempDir(),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
}

// Decode unmarshals the data envelope into v
func (r *APIResponse) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Data, v); err != nil {
		t.Fatalf("failed to decode %s: %v", r.Data, err)
	}
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, token)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body any, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, token)
}

// doRequest returns the response for any status; err is only set for
// transport failures.
func (e *E2ETestEnv) doRequest(method, path string, body any, token string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("X-API-Key", token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{Status: resp.StatusCode}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, apiResp); err != nil {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
		}
	}
	return apiResp, nil
}

func startServer(t *testing.T, engine server.Engine, port int) (string, func()) {
	router := server.NewRouter(server.RouterConfig{Engine: engine, APIToken: apiToken})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// keywordEmbedder maps text onto keyword counts so nearest-neighbour order
// is predictable without a model.
type keywordEmbedder struct {
	vocab []string
}

func newKeywordEmbedder(vocab ...string) *keywordEmbedder {
	return &keywordEmbedder{vocab: vocab}
}

func (k *keywordEmbedder) Embed(_ context.Context, text string, _ domain.TaskType) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(k.vocab)+1)
	for i, word := range k.vocab {
		vec[i] = float32(strings.Count(lower, word))
	}
	vec[len(k.vocab)] = 0.01
	return vec, nil
}

// recordingGenerator answers with a fixed string and keeps every prompt.
type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
}

func (g *recordingGenerator) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	return fmt.Sprintf("answer %d", len(g.prompts)), nil
}

func (g *recordingGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}
