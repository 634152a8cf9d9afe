package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/amm/internal/config"
	"github.com/cloo-solutions/amm/internal/domain"
	"github.com/cloo-solutions/amm/internal/logging"
	"github.com/spf13/cobra"
)

// ChunkPreview is one chunk as printed by the chunk command.
type ChunkPreview struct {
	Index int    `json:"index"`
	Size  int    `json:"size"`
	Text  string `json:"text"`
}

// SourceReport summarizes how one knowledge source was chunked.
type SourceReport struct {
	Source     string                `json:"source"`
	Extraction domain.ExtractionKind `json:"extraction,omitempty"`
	Chunks     []ChunkPreview        `json:"chunks"`
	Error      string                `json:"error,omitempty"`
}

func newSourceReport(src domain.KnowledgeSource, chunks []domain.KnowledgeChunk, err error) SourceReport {
	report := SourceReport{Source: src.DisplayName(), Chunks: make([]ChunkPreview, 0, len(chunks))}
	if err != nil {
		report.Error = err.Error()
	}
	for _, c := range chunks {
		report.Extraction = c.Metadata.ExtractionType
		report.Chunks = append(report.Chunks, ChunkPreview{
			Index: c.Metadata.ChunkIndex,
			Size:  c.Metadata.ChunkSize,
			Text:  c.Text,
		})
	}
	return report
}

func fileSource(path string) domain.KnowledgeSource {
	typ := domain.SourceTypeFile
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		typ = domain.SourceTypePDF
	}
	return domain.KnowledgeSource{Name: filepath.Base(path), Type: typ, Path: path}
}

// ChunkCmd returns the chunk command
func ChunkCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "chunk [file...]",
		Short: "Preview how knowledge sources are split",
		Long: "Extract and chunk the design's knowledge sources (or the given files) without embedding anything.\n" +
			"Useful for tuning AMM_CHUNK_SIZE and AMM_CHUNK_OVERLAP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var sources []domain.KnowledgeSource
			if len(args) > 0 {
				for _, path := range args {
					sources = append(sources, fileSource(path))
				}
				cfg.DesignPath = ""
			} else {
				design, err := config.LoadDesign(cfg.DesignPath)
				if err != nil {
					return err
				}
				sources = design.KnowledgeSources
			}

			ingestion, err := NewIngestion(ctx, cfg)
			if err != nil {
				return err
			}

			reports := make([]SourceReport, 0, len(sources))
			for _, src := range sources {
				chunks, err := ingestion.Ingest(ctx, src)
				if err != nil {
					logging.From(ctx).Debug("chunking failed", "source", src.DisplayName(), "error", err)
				}
				reports = append(reports, newSourceReport(src, chunks, err))
			}

			return printReports(cmd.OutOrStdout(), reports, outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&outputJSON, "output", "o", false, "Output as JSON")

	return cmd
}

func printReports(w io.Writer, reports []SourceReport, outputJSON bool) error {
	if outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	if len(reports) == 0 {
		fmt.Fprintln(w, "No knowledge sources.")
		return nil
	}

	for i, r := range reports {
		if r.Error != "" {
			fmt.Fprintf(w, "%s: error: %s\n", r.Source, r.Error)
		} else {
			fmt.Fprintf(w, "%s: %d chunks\n", r.Source, len(r.Chunks))
		}
		for _, c := range r.Chunks {
			preview := strings.Join(strings.Fields(c.Text), " ")
			if len(preview) > 60 {
				preview = preview[:57] + "..."
			}
			fmt.Fprintf(w, "  [%d] %4d chars  %s\n", c.Index, c.Size, preview)
		}
		if i < len(reports)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
	return nil
}
