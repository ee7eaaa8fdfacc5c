package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiaoyuanzhu-com/local-first-todo/gateway"
	"github.com/xiaoyuanzhu-com/local-first-todo/remote"
)

// ClientOptions holds flags of the commands that talk to a running server.
type ClientOptions struct {
	Server string
}

func addClientFlags(cmd *cobra.Command, opts *ClientOptions) {
	cmd.Flags().StringVar(&opts.Server, "server", "", "todo server URL (default from config)")
}

// dial returns a client for --server, or for the configured local port.
func dial(rootOpts *RootOptions, opts *ClientOptions) (*remote.Client, error) {
	serverURL := opts.Server
	if serverURL == "" {
		cfg, err := loadConfig(rootOpts)
		if err != nil {
			return nil, err
		}
		serverURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	return remote.New(serverURL, nil)
}

// connect returns a gateway over the server's HTTP API, so titles and ids
// are checked before any request is made.
func connect(rootOpts *RootOptions, opts *ClientOptions) (*gateway.Gateway, error) {
	client, err := dial(rootOpts, opts)
	if err != nil {
		return nil, err
	}
	return gateway.New(client), nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid todo id %q", arg)
	}
	return id, nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{}

	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List todos, newest first",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := connect(rootOpts, opts)
			if err != nil {
				return err
			}
			todos, err := gw.List(cmd.Context())
			if err != nil {
				return err
			}
			return newFormatter(cmd, rootOpts).todos(todos)
		},
	}

	addClientFlags(cmd, opts)
	return cmd
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{}

	cmd := &cobra.Command{
		Use:          "add <title...>",
		Short:        "Add a todo",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := connect(rootOpts, opts)
			if err != nil {
				return err
			}
			todo, err := gw.Insert(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return newFormatter(cmd, rootOpts).todo(todo)
		},
	}

	addClientFlags(cmd, opts)
	return cmd
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{}

	cmd := &cobra.Command{
		Use:          "toggle <id>",
		Short:        "Flip a todo between open and done",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			gw, err := connect(rootOpts, opts)
			if err != nil {
				return err
			}
			todo, err := gw.Toggle(cmd.Context(), id)
			if err != nil {
				return err
			}
			return newFormatter(cmd, rootOpts).todo(todo)
		},
	}

	addClientFlags(cmd, opts)
	return cmd
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{}

	cmd := &cobra.Command{
		Use:          "rm <id>",
		Short:        "Delete a todo",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			gw, err := connect(rootOpts, opts)
			if err != nil {
				return err
			}
			if err := gw.Delete(cmd.Context(), id); err != nil {
				return err
			}
			return newFormatter(cmd, rootOpts).deleted(id)
		},
	}

	addClientFlags(cmd, opts)
	return cmd
}
