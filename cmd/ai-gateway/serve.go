package main

import (
	"errors"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/magicapi/ai-gateway/cmd/ai-gateway/di"
	"github.com/magicapi/ai-gateway/internal/ro"
	"github.com/magicapi/ai-gateway/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the proxy server that accepts OpenAI-style requests on /v1/ and
routes them to the provider named by the x-provider header.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	container, err := di.NewContainer(cmd.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to build container")
		return err
	}

	logger := di.MustInvoke[*di.LoggerService](container).Logger
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	server := di.MustInvoke[*di.ServerService](container).Server

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	go func() {
		if sig, err := ro.WaitForShutdown(cmd.Context()); err == nil {
			sigCh <- sig
		}
	}()

	logger.Info().
		Str("listen", server.Addr()).
		Str("version", version.Version).
		Msg("ai-gateway started")

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			_ = container.Shutdown()
			return err
		}
	}

	// Container shutdown stops the server, then drains telemetry.
	if err := container.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
