package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloo-solutions/amm/internal/config"
	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoProcessor struct {
	sessions []string
	fail     map[string]bool
}

func (p *echoProcessor) ProcessQuery(_ context.Context, sessionID, query string) (*service.QueryResult, error) {
	p.sessions = append(p.sessions, sessionID)
	if p.fail[query] {
		return nil, errors.New("generator unavailable")
	}
	return &service.QueryResult{Response: "echo: " + query, SessionID: sessionID}, nil
}

func TestChat_AnswersUntilExit(t *testing.T) {
	p := &echoProcessor{fail: map[string]bool{"boom": true}}
	in := strings.NewReader("hello\n\nboom\n  EXIT  \nnever\n")
	var out, errOut bytes.Buffer

	err := chat(context.Background(), p, "s1", "Support", "Hi there", in, &out, &errOut)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "AMM 'Support' is ready.")
	assert.Contains(t, out.String(), "AMM: Hi there")
	assert.Contains(t, out.String(), "AMM: echo: hello")
	assert.NotContains(t, out.String(), "never")
	assert.Contains(t, errOut.String(), "Error processing query: generator unavailable")
	assert.Equal(t, []string{"s1", "s1"}, p.sessions)
}

func TestChat_EndsOnEOF(t *testing.T) {
	p := &echoProcessor{}
	var out bytes.Buffer

	err := chat(context.Background(), p, "s1", "Support", "", strings.NewReader("one"), &out, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "AMM: echo: one")
	assert.NotContains(t, out.String(), "AMM: \n")
}

func TestAnswerOnce(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, answerOnce(context.Background(), &echoProcessor{}, "s1", "ping", &out))
	assert.Equal(t, "echo: ping\n", out.String())

	err := answerOnce(context.Background(), &echoProcessor{fail: map[string]bool{"ping": true}}, "s1", "ping", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process query")
}

func TestFileSource(t *testing.T) {
	src := fileSource("docs/Manual.PDF")
	assert.Equal(t, domain.SourceTypePDF, src.Type)
	assert.Equal(t, "Manual.PDF", src.Name)
	assert.Equal(t, "docs/Manual.PDF", src.Path)

	assert.Equal(t, domain.SourceTypeFile, fileSource("notes.md").Type)
}

func TestPrintReports(t *testing.T) {
	chunks := domain.BuildChunks(domain.SourceTypeText, "faq", domain.ExtractionText, []string{
		"Refunds are issued within thirty days of purchase for unopened items.",
		"Shipping is free on orders over fifty dollars.",
	})
	reports := []SourceReport{
		newSourceReport(domain.KnowledgeSource{Name: "faq"}, chunks, nil),
		newSourceReport(domain.KnowledgeSource{Path: "missing.txt"}, nil, errors.New("document not found")),
	}

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printReports(&out, reports, false))

		text := out.String()
		assert.Contains(t, text, "faq: 2 chunks")
		assert.Contains(t, text, "[0]   69 chars  Refunds are issued within thirty days of purchase for uno...")
		assert.Contains(t, text, "[1]   46 chars  Shipping is free on orders over fifty dollars.")
		assert.Contains(t, text, "missing.txt: error: document not found")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printReports(&out, reports, true))

		var decoded []SourceReport
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, domain.ExtractionText, decoded[0].Extraction)
		assert.Len(t, decoded[0].Chunks, 2)
		assert.Empty(t, decoded[1].Chunks)
		assert.Equal(t, "document not found", decoded[1].Error)
	})

	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printReports(&out, nil, false))
		assert.Equal(t, "No knowledge sources.\n", out.String())
	})
}

const runtimeDesign = `
name: Store Assistant
knowledge_sources:
  - name: policies
    type: text
    content: |
      Refunds are issued within thirty days of purchase for any unopened item in its original packaging.
  - name: handbook
    type: file
    path: handbook.txt
  - name: gone
    type: file
    path: missing.txt
agent_prompts:
  system_instruction: Answer from the store policies.
  welcome_message: Welcome to the store.
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "design.yaml"), []byte(runtimeDesign), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handbook.txt"),
		[]byte("Shipping is free on every order above fifty dollars placed through the online store."), 0o600))

	return &config.Config{
		DesignPath:   filepath.Join(dir, "design.yaml"),
		DataDir:      filepath.Join(dir, "data"),
		Provider:     config.ProviderGemini,
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MinChunkSize: 50,
		OCRLanguage:  "eng",
	}
}

func TestNewRuntime_LocalStores(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	rt, err := NewRuntime(ctx, cfg, RuntimeOptions{Migrate: true})
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "Store Assistant", rt.Design.Name)
	assert.Equal(t, "Welcome to the store.", rt.Engine.WelcomeMessage())

	info := rt.Engine.Info()
	assert.Equal(t, 2, info.KnowledgeSources)
	assert.False(t, info.Capabilities.Generation)
	assert.False(t, info.Capabilities.FixedKnowledge)
	assert.True(t, info.Capabilities.AdaptiveMemory)

	_, err = os.Stat(filepath.Join(cfg.DataDir, rt.Design.ID, rt.Design.SQLiteFileName()))
	require.NoError(t, err)

	rec, err := rt.Engine.RecordInteraction(ctx, "s1", 1, "Can I return this?", "Yes, within thirty days.")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.TurnID)

	_, err = rt.Engine.ProcessQuery(ctx, "s1", "hello")
	assert.ErrorIs(t, err, domain.ErrGeneratorUnavailable)
}

func TestNewRuntime_InvalidDesign(t *testing.T) {
	cfg := testConfig(t)
	cfg.DesignPath = filepath.Join(t.TempDir(), "nope.yaml")

	_, err := NewRuntime(context.Background(), cfg, RuntimeOptions{})
	require.Error(t, err)
}

func TestNewIngestion_ResolvesAgainstDesignDir(t *testing.T) {
	cfg := testConfig(t)

	ingestion, err := NewIngestion(context.Background(), cfg)
	require.NoError(t, err)

	chunks, err := ingestion.Ingest(context.Background(), domain.KnowledgeSource{Name: "handbook", Type: domain.SourceTypeFile, Path: "handbook.txt"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "handbook", chunks[0].Metadata.SourceName)
}
