// Package cli holds helpers shared by the amm and ammd command trees.
//
// Both binaries accept --help-json anywhere on the command line. Instead of
// running the command it prints the command's usage as JSON, so scripts can
// discover the flags of ask, history or knowledge add without parsing help
// text.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const helpJSONFlag = "help-json"

// FlagSchema describes one flag of a command.
type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Inherited   bool   `json:"inherited,omitempty"`
}

// CommandSchema describes a command and its visible subcommands.
type CommandSchema struct {
	Name        string          `json:"name"`
	Use         string          `json:"use,omitempty"`
	Aliases     []string        `json:"aliases,omitempty"`
	Description string          `json:"description,omitempty"`
	Long        string          `json:"long,omitempty"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

// Describe builds the schema of cmd. Flags declared on an ancestor, such as
// --api-token, are listed once on the command that declares them.
func Describe(cmd *cobra.Command) CommandSchema {
	schema := CommandSchema{
		Name:        cmd.Name(),
		Use:         cmd.Use,
		Aliases:     cmd.Aliases,
		Description: cmd.Short,
		Long:        cmd.Long,
	}

	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if isHelpFlag(f) {
			return
		}
		schema.Flags = append(schema.Flags, describeFlag(f, false))
	})

	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		schema.Subcommands = append(schema.Subcommands, Describe(sub))
	}
	return schema
}

// describeInvoked is Describe for the command actually being run: inherited
// flags are included and marked.
func describeInvoked(cmd *cobra.Command) CommandSchema {
	schema := Describe(cmd)
	cmd.InheritedFlags().VisitAll(func(f *pflag.Flag) {
		if isHelpFlag(f) {
			return
		}
		schema.Flags = append(schema.Flags, describeFlag(f, true))
	})
	return schema
}

func isHelpFlag(f *pflag.Flag) bool {
	return f.Name == "help" || f.Name == helpJSONFlag
}

func describeFlag(f *pflag.Flag, inherited bool) FlagSchema {
	_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
	return FlagSchema{
		Name:        f.Name,
		Shorthand:   f.Shorthand,
		Type:        f.Value.Type(),
		Default:     f.DefValue,
		Description: f.Usage,
		Required:    required,
		Inherited:   inherited,
	}
}

// AddHelpJSONFlag registers --help-json on root and every command below it.
func AddHelpJSONFlag(root *cobra.Command) {
	root.PersistentFlags().Bool(helpJSONFlag, false, "Print the command's usage as JSON")
}

// WriteHelpJSON writes the schema of the command named by args when args
// contain --help-json. It reports whether it did.
func WriteHelpJSON(w io.Writer, root *cobra.Command, args []string) (bool, error) {
	path := make([]string, 0, len(args))
	found := false
	for _, arg := range args {
		if arg == "--"+helpJSONFlag {
			found = true
			break
		}
		path = append(path, arg)
	}
	if !found {
		return false, nil
	}

	out, err := json.MarshalIndent(describeInvoked(resolveCommand(root, path)), "", "  ")
	if err != nil {
		return true, fmt.Errorf("failed to encode command schema: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return true, err
}

// CheckHelpJSON handles --help-json before cobra parses arguments, so
// commands with required positional arguments can still be described.
func CheckHelpJSON(root *cobra.Command) {
	handled, err := WriteHelpJSON(os.Stdout, root, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if handled {
		os.Exit(0)
	}
}

// resolveCommand follows the leading non-flag words of args down the tree,
// stopping at the first word that names no subcommand.
func resolveCommand(cmd *cobra.Command, args []string) *cobra.Command {
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		next := subcommand(cmd, arg)
		if next == nil {
			break
		}
		cmd = next
	}
	return cmd
}

func subcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, sub := range cmd.Commands() {
		if sub.Name() == name || sub.HasAlias(name) {
			return sub
		}
	}
	return nil
}
