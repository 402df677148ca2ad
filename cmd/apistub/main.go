// Command apistub serves an in-memory molecheck backend for local
// development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/molecheck/internal/apistub"
	"github.com/dmitrijs2005/molecheck/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		tokenTTL time.Duration
		level    string
	)

	cmd := &cobra.Command{
		Use:           "apistub",
		Short:         "In-memory molecheck API for local development",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.NewTextLogger(os.Stderr, level)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), addr, logger, apistub.WithLogger(logger), apistub.WithTokenTTL(tokenTTL))
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8001", "listen address")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", time.Hour, "lifetime of issued tokens")
	cmd.Flags().StringVar(&level, "log-level", "info", "debug, info, warn or error")
	return cmd
}

func serve(ctx context.Context, addr string, logger logging.Logger, opts ...apistub.Option) error {
	if ctx == nil {
		ctx = context.Background()
	}
	server := apistub.New(opts...).Echo()

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
		logger.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
