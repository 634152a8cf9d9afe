package client

import (
	"context"
	"fmt"
	"io"

	"github.com/cloo-solutions/amm/internal/api/handlers"
	"github.com/cloo-solutions/amm/internal/service"
	"github.com/spf13/cobra"
)

// InfoCmd creates the info command.
func InfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the served design and its capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runInfo(cmd.Context(), api, cmd.OutOrStdout(), outputJSON)
		},
	}
}

func runInfo(ctx context.Context, api *APIClient, w io.Writer, outputJSON bool) error {
	resp, err := api.Get(ctx, "/info", nil)
	if err != nil {
		return fmt.Errorf("info failed: %w", err)
	}
	var info service.EngineInfo
	if err := resp.Decode(&info); err != nil {
		return err
	}

	resp, err = api.Get(ctx, "/welcome", nil)
	if err != nil {
		return fmt.Errorf("info failed: %w", err)
	}
	var welcome handlers.WelcomeResponse
	if err := resp.Decode(&welcome); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(w, struct {
			service.EngineInfo
			Welcome string `json:"welcome_message"`
		}{info, welcome.Message})
	}

	fmt.Fprintf(w, "%s (%s)\n", info.Name, info.ID)
	if info.Description != "" {
		fmt.Fprintln(w, info.Description)
	}
	fmt.Fprintf(w, "Knowledge sources: %d\n", info.KnowledgeSources)
	fmt.Fprintf(w, "Fixed knowledge:   %s\n", enabled(info.Capabilities.FixedKnowledge))
	fmt.Fprintf(w, "Adaptive memory:   %s\n", enabled(info.Capabilities.AdaptiveMemory))
	fmt.Fprintf(w, "Generation:        %s\n", enabled(info.Capabilities.Generation))
	fmt.Fprintf(w, "\n%s\n", welcome.Message)
	return nil
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
