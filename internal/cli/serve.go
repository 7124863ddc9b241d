package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/virail/studio/internal/analyzer"
	"github.com/virail/studio/internal/platform/middleware"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(app *App) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local HTTP proxy for analyses",
		Long: `Serve exposes POST /analyze, POST /analyze/file, and GET /healthz on a local
port. Requests are forwarded to the Studio API with your session, and
failures come back classified with a title, suggestions, and whether a retry
makes sense.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("port") {
				port = app.cfg.Port
			}
			return app.serve(cmd.Context(), net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on (default from config)")
	return cmd
}

// handler builds the proxy's HTTP handler.
func (a *App) handler() http.Handler {
	svc := analyzer.NewService(a.client, a.logger, a.metrics)
	transport := analyzer.NewTransport(svc, a.logger)

	mux := http.NewServeMux()
	transport.RegisterRoutes(mux)
	return middleware.RequestID(middleware.Logging(a.logger)(mux))
}

func (a *App) serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	a.logger.Info("proxy listening", zap.String("addr", ln.Addr().String()))
	_, _ = fmt.Fprintf(a.errOut, "Listening on http://%s\n", ln.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
