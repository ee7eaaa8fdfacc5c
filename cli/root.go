// Package cli is the todo command line: servers for every storage variant
// and a small client for any of them.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/xiaoyuanzhu-com/local-first-todo/config"
	"github.com/xiaoyuanzhu-com/local-first-todo/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the todo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Local-first to-do list",
		Long: `A to-do list with interchangeable stores: a shared SQL server, an
embedded replica kept current by the server's change feed, a JSON file, or
memory.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file (overrides TODO_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReplicaCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewToggleCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewFeedCommand(opts))

	return cmd
}

// loadConfig returns the process config, or the file named by --config.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath == "" {
		return config.Get(), nil
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	log.SetLevel(cfg.LogLevel)
	return cfg, nil
}
