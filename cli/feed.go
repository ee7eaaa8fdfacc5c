package cli

import (
	"github.com/spf13/cobra"
)

// NewFeedCommand creates the feed command group, which administers the
// change feed of a sql server.
func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Administer the change feed of a sql server",
	}

	cmd.AddCommand(newFeedResetCommand(rootOpts))
	cmd.AddCommand(newFeedCompactCommand(rootOpts))
	return cmd
}

func newFeedResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{}

	cmd := &cobra.Command{
		Use:          "reset",
		Short:        "Issue a new shape handle so every replica refetches",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(rootOpts, opts)
			if err != nil {
				return err
			}
			handle, err := client.ResetFeed(cmd.Context())
			if err != nil {
				return err
			}
			return newFormatter(cmd, rootOpts).feedReset(handle)
		},
	}

	addClientFlags(cmd, opts)
	return cmd
}

func newFeedCompactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{}

	cmd := &cobra.Command{
		Use:          "compact",
		Short:        "Trim the change log now instead of waiting for the next pass",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(rootOpts, opts)
			if err != nil {
				return err
			}
			if err := client.CompactFeed(cmd.Context()); err != nil {
				return err
			}
			return newFormatter(cmd, rootOpts).compactionQueued()
		},
	}

	addClientFlags(cmd, opts)
	return cmd
}
