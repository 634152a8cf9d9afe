package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/cloo-solutions/amm/internal/api/handlers"
	"github.com/cloo-solutions/amm/internal/pagination"
	"github.com/spf13/cobra"
)

// HistoryCmd creates the history command.
func HistoryCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show a session's interactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runHistory(cmd.Context(), api, cmd.OutOrStdout(), args[0], limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of interactions")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runHistory(ctx context.Context, api *APIClient, w io.Writer, session string, limit int, cursor string, outputJSON bool) error {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	resp, err := api.Get(ctx, "/sessions/"+url.PathEscape(session)+"/interactions", query)
	if err != nil {
		return fmt.Errorf("history failed: %w", err)
	}
	var page pagination.PageResult[handlers.InteractionResponse]
	if err := resp.Decode(&page); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(w, page)
	}

	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No interactions found.")
		return nil
	}
	for i, rec := range page.Items {
		feedback := ""
		if rec.FeedbackScore != nil {
			feedback = fmt.Sprintf("  feedback: %+d", *rec.FeedbackScore)
		}
		fmt.Fprintf(w, "#%d  %s%s\n", rec.TurnID, rec.Timestamp, feedback)
		fmt.Fprintf(w, "User: %s\n", rec.Query)
		fmt.Fprintf(w, "Assistant: %s\n", rec.Response)
		if i < len(page.Items)-1 {
			fmt.Fprintln(w, strings.Repeat("-", 40))
		}
	}
	if page.HasMore && page.Cursor != "" {
		fmt.Fprintf(w, "\n%s\n", strings.Repeat("-", 40))
		fmt.Fprintf(w, "More interactions available. Use --cursor %s\n", page.Cursor)
	}
	return nil
}

// FeedbackCmd creates the feedback command.
func FeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <session-id> <turn-id> <score>",
		Short: "Rate an answer (-1, 0 or 1)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			turn, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid turn id %q", args[1])
			}
			score, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid score %q", args[2])
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runFeedback(cmd.Context(), api, cmd.OutOrStdout(), args[0], turn, score)
		},
	}
}

func runFeedback(ctx context.Context, api *APIClient, w io.Writer, session string, turn, score int) error {
	_, err := api.Post(ctx, "/sessions/"+url.PathEscape(session)+"/feedback", handlers.FeedbackRequest{TurnID: turn, Score: &score})
	if err != nil {
		return fmt.Errorf("feedback failed: %w", err)
	}
	fmt.Fprintf(w, "Recorded feedback %+d for turn %d\n", score, turn)
	return nil
}
