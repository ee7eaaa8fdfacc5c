package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xiaoyuanzhu-com/local-first-todo/api"
	"github.com/xiaoyuanzhu-com/local-first-todo/log"
	"github.com/xiaoyuanzhu-com/local-first-todo/server"
)

// ServeOptions holds flags of the serve and replica commands.
type ServeOptions struct {
	Variant   string
	Port      int
	Upstream  string
	Transport string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the todo HTTP API",
		Long: `Run the todo HTTP API over one storage variant:

  sql      shared SQLite database; also publishes the change feed
  replica  embedded copy of an upstream sql server, writes go upstream
  kv       JSON file, edits by other processes are picked up
  memory   nothing persisted`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Variant, "variant", server.VariantSQL, "storage variant (sql|replica|kv|memory)")
	addServeFlags(cmd, opts)
	return cmd
}

// NewReplicaCommand creates the replica command, serve with the replica
// variant.
func NewReplicaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{Variant: server.VariantReplica}

	cmd := &cobra.Command{
		Use:          "replica",
		Short:        "Run the API over an embedded replica of an upstream server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, opts)
		},
	}

	addServeFlags(cmd, opts)
	return cmd
}

func addServeFlags(cmd *cobra.Command, opts *ServeOptions) {
	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (default from config)")
	cmd.Flags().StringVar(&opts.Upstream, "upstream", "", "upstream server URL for the replica variant")
	cmd.Flags().StringVar(&opts.Transport, "transport", "", "change feed transport (poll|ws)")
}

func runServe(ctx context.Context, rootOpts *RootOptions, opts *ServeOptions) error {
	appCfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}

	cfg := server.FromAppConfig(appCfg, opts.Variant)
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.Upstream != "" {
		cfg.UpstreamURL = opts.Upstream
	}
	if opts.Transport != "" {
		cfg.FeedTransport = opts.Transport
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	api.SetupRoutes(srv.Router(), api.NewHandlers(srv))

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info().Msg("server stopped")
	return err
}
