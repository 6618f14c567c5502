package commands

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pycppdbg/pkg/handlers"
	"pycppdbg/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pythoncpp debug type over DAP",
	Long: `Serve the "pythoncpp" debug type to an IDE. Without --port (and without
"listen" in the config) DAP is spoken on stdin/stdout, which is how IDEs
run debug adapter executables. With --port the server accepts any number
of clients and reconnections.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "TCP port to listen on")
	rootCmd.AddCommand(serveCmd)
}

type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	log := logger.For("Server")
	server := &handlers.Server{
		Launcher:  newLauncher(ctx, workspace, cmd.ErrOrStderr()),
		Workspace: workspace,
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		server.Shutdown(stopCtx)
	}()

	addr := cfg.Listen
	if servePort > 0 {
		addr = fmt.Sprintf(":%d", servePort)
	}
	if addr == "" {
		log.Info("serving DAP on stdio", "workspace", workspace)
		server.Handle(ctx, stdio{Reader: os.Stdin, Writer: os.Stdout}, "stdio")
		// The IDE may drop the front-end right after the launch; the
		// debug sessions it started live on.
		server.Wait(ctx)
		return nil
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not start pycppdbg server: %w", err)
	}
	log.Info("starting pycppdbg server", "addr", l.Addr().String(), "workspace", workspace)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(gctx, l) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return l.Close()
	})
	return g.Wait()
}
