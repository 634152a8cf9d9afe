package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/amm/internal/api/handlers"
	"github.com/spf13/cobra"
)

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		session     string
		showContext bool
	)

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask the design a question",
		Long: "Sends a query to the server. Without --session each call starts a fresh session;\n" +
			"reuse the printed session id to continue a conversation.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd.Context(), api, cmd.OutOrStdout(), strings.Join(args, " "), session, showContext, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Session ID to continue")
	cmd.Flags().BoolVar(&showContext, "context", false, "Show the knowledge and history used (requires --session)")

	return cmd
}

func runAsk(ctx context.Context, api *APIClient, w io.Writer, query, session string, showContext, outputJSON bool) error {
	if showContext && session == "" {
		return fmt.Errorf("--context requires --session")
	}

	if showContext {
		resp, err := api.Post(ctx, "/query", handlers.QueryRequest{SessionID: session, Query: query, IncludeContext: true})
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		var result handlers.QueryResponse
		if err := resp.Decode(&result); err != nil {
			return err
		}
		if outputJSON {
			return writeJSON(w, result)
		}
		fmt.Fprintln(w, result.Response)
		if result.Context != nil {
			printContext(w, result.Context)
		}
		fmt.Fprintf(w, "\nsession: %s  turn: %d\n", result.SessionID, result.TurnID)
		return nil
	}

	resp, err := api.Post(ctx, "/generate", handlers.GenerateRequest{Query: query, SessionID: session})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	var result handlers.GenerateResponse
	if err := resp.Decode(&result); err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintln(w, result.Response)
	fmt.Fprintf(w, "\nsession: %s  turn: %d\n", result.Metadata.SessionID, result.Metadata.TurnID)
	return nil
}

func printContext(w io.Writer, ctx *handlers.RetrievalResponse) {
	if len(ctx.Fixed) > 0 {
		fmt.Fprintf(w, "\nKnowledge used (%d):\n", len(ctx.Fixed))
		for i, hit := range ctx.Fixed {
			fmt.Fprintf(w, "  %d. %s [%.3f] %s\n", i+1, hit.Metadata.SourceName, hit.Distance, truncate(hit.Text, 80))
		}
	}
	if len(ctx.Adaptive) > 0 {
		fmt.Fprintf(w, "\nHistory used (%d):\n", len(ctx.Adaptive))
		for _, rec := range ctx.Adaptive {
			fmt.Fprintf(w, "  #%d %s\n", rec.TurnID, truncate(rec.Query, 80))
		}
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
