package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloo-solutions/amm/internal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// QueryProcessor answers one query in a session.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, sessionID, query string) (*service.QueryResult, error)
}

// RunCmd returns the run command
func RunCmd() *cobra.Command {
	var (
		query   string
		session string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Chat with a design from the terminal",
		Long:  "Load a design locally and answer a single --query or read queries from stdin until 'exit'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := NewRuntime(ctx, cfg, RuntimeOptions{Migrate: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			if session == "" {
				session = uuid.NewString()
			}
			if query != "" {
				return answerOnce(ctx, rt.Engine, session, query, cmd.OutOrStdout())
			}
			return chat(ctx, rt.Engine, session, rt.Design.Name, rt.Engine.WelcomeMessage(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Process a single query and exit")
	cmd.Flags().StringVarP(&session, "session", "s", "", "Session ID (default: a new random session)")

	return cmd
}

func answerOnce(ctx context.Context, engine QueryProcessor, session, query string, out io.Writer) error {
	result, err := engine.ProcessQuery(ctx, session, query)
	if err != nil {
		return fmt.Errorf("failed to process query: %w", err)
	}
	fmt.Fprintln(out, result.Response)
	return nil
}

// chat reads one query per line. Query errors are reported and the loop
// continues; it ends on "exit", EOF or context cancellation.
func chat(ctx context.Context, engine QueryProcessor, session, name, welcome string, in io.Reader, out, errOut io.Writer) error {
	fmt.Fprintf(out, "AMM '%s' is ready. Type your query (or 'exit' to quit):\n", name)
	if welcome != "" {
		fmt.Fprintf(out, "\nAMM: %s\n\n", welcome)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"):
			return nil
		}

		result, err := engine.ProcessQuery(ctx, session, line)
		if err != nil {
			fmt.Fprintf(errOut, "Error processing query: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "\nAMM: %s\n\n", result.Response)
	}
}
