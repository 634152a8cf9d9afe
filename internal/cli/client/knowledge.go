package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/amm/internal/api/handlers"
	"github.com/spf13/cobra"
)

// KnowledgeCmd creates the knowledge command with subcommands.
func KnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage fixed knowledge",
	}

	cmd.AddCommand(KnowledgeAddCmd())

	return cmd
}

// KnowledgeAddCmd creates the knowledge add command.
func KnowledgeAddCmd() *cobra.Command {
	var (
		name       string
		sourceType string
		file       string
		path       string
		content    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Index another knowledge source",
		Long: `Adds a knowledge source to the running design.

  --content  inline text
  --file     a local text file, uploaded as inline text
  --path     a path the server can read (relative to its design file) or s3://bucket/key`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildKnowledgeRequest(name, sourceType, file, path, content)
			if err != nil {
				return err
			}
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runKnowledgeAdd(cmd.Context(), api, cmd.OutOrStdout(), req, outputJSON)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Source name shown in retrieved chunks")
	cmd.Flags().StringVarP(&sourceType, "type", "t", "", "Source type: text, file or pdf (default: inferred)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Local text file to upload")
	cmd.Flags().StringVar(&path, "path", "", "Server-side path or s3:// URI")
	cmd.Flags().StringVar(&content, "content", "", "Inline text")
	cmd.MarkFlagsMutuallyExclusive("file", "path", "content")
	cmd.MarkFlagsOneRequired("file", "path", "content")

	return cmd
}

func buildKnowledgeRequest(name, sourceType, file, path, content string) (handlers.AddKnowledgeRequest, error) {
	req := handlers.AddKnowledgeRequest{Name: name, Type: sourceType}

	switch {
	case file != "":
		if filepath.Ext(file) == ".pdf" {
			return req, fmt.Errorf("PDFs cannot be uploaded inline; place the file where the server can read it and use --path")
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return req, fmt.Errorf("failed to read %s: %w", file, err)
		}
		req.Content = string(data)
		if req.Name == "" {
			req.Name = filepath.Base(file)
		}
		if req.Type == "" {
			req.Type = "text"
		}
	case path != "":
		req.Path = path
		if req.Type == "" {
			req.Type = "file"
			if filepath.Ext(path) == ".pdf" {
				req.Type = "pdf"
			}
		}
	default:
		req.Content = content
		if req.Type == "" {
			req.Type = "text"
		}
	}
	return req, nil
}

func runKnowledgeAdd(ctx context.Context, api *APIClient, w io.Writer, req handlers.AddKnowledgeRequest, outputJSON bool) error {
	resp, err := api.Post(ctx, "/knowledge", req)
	if err != nil {
		return fmt.Errorf("add knowledge failed: %w", err)
	}
	var result handlers.AddKnowledgeResponse
	if err := resp.Decode(&result); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "Indexed %s: %d of %d chunks embedded", result.Name, result.Report.Embedded, result.Report.Total)
	if result.Report.Skipped > 0 {
		fmt.Fprintf(w, " (%d skipped)", result.Report.Skipped)
	}
	fmt.Fprintln(w)
	return nil
}
