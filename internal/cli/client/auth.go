package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication credentials",
		Long:  "Login, logout, and check authentication status for the amm CLI",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var apiToken string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token",
		Long:  "Store the server's API token and URL in the global config (~/.config/amm/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd.InOrStdin(), cmd.OutOrStdout(), apiToken, apiURL)
		},
	}

	cmd.Flags().StringVar(&apiToken, "token", "", "API token (prompted when omitted)")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API URL")

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and clear credentials",
		Long:  "Remove stored credentials from global config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return fmt.Errorf("failed to logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully logged out")
			return nil
		},
	}
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display current authentication source and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagToken, _ := cmd.Flags().GetString("api-token")
			flagURL, _ := cmd.Flags().GetString("api-url")
			creds, err := ResolveCredentials(flagToken, flagURL)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return writeStatus(cmd.OutOrStdout(), creds, outputJSON)
		},
	}
}

func runAuthLogin(in io.Reader, w io.Writer, apiToken, apiURL string) error {
	if apiToken == "" {
		fmt.Fprint(w, "Enter API token: ")
		input, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && input == "" {
			return fmt.Errorf("failed to read API token: %w", err)
		}
		apiToken = strings.TrimSpace(input)
	}
	if apiToken == "" {
		return fmt.Errorf("API token cannot be empty")
	}

	if err := SaveGlobalConfig(&GlobalConfig{APIToken: apiToken, APIURL: apiURL}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintln(w, "Successfully logged in")
	return nil
}

func writeStatus(w io.Writer, creds Credentials, outputJSON bool) error {
	authenticated := creds.Source != SourceNone
	if outputJSON {
		status := map[string]any{
			"authenticated": authenticated,
			"source":        string(creds.Source),
			"api_url":       creds.APIURL,
		}
		if authenticated {
			status["api_token"] = maskToken(creds.APIToken)
		}
		return writeJSON(w, status)
	}

	if !authenticated {
		fmt.Fprintln(w, "Not authenticated")
		fmt.Fprintf(w, "API URL: %s\n", creds.APIURL)
		fmt.Fprintln(w, "Run 'amm auth login' if the server requires a token")
		return nil
	}

	fmt.Fprintf(w, "Authenticated: yes\n")
	fmt.Fprintf(w, "Source: %s\n", creds.Source)
	fmt.Fprintf(w, "API Token: %s\n", maskToken(creds.APIToken))
	fmt.Fprintf(w, "API URL: %s\n", creds.APIURL)
	return nil
}

func maskToken(token string) string {
	if len(token) < 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
