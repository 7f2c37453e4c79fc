package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rfid-bridge/internal/factory"
	"rfid-bridge/internal/util"
)

func main() {
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize application", util.ErrorField(err))
	}
	defer f.Close()

	if err := f.Connect(); err != nil {
		util.Fatal("Failed to start MQTT client", util.ErrorField(err))
	}

	cfg := f.Config()
	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      f.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		util.Info("Starting HTTP server",
			util.String("address", server.Addr),
			util.String("environment", cfg.Environment),
			util.Bool("tls", cfg.Server.EnableTLS))

		if cfg.Server.EnableTLS {
			serverErrors <- server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			serverErrors <- server.ListenAndServe()
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			util.Error("Server error", util.ErrorField(err))
		}
	case sig := <-shutdown:
		util.Info("Shutdown signal received", util.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			util.Error("Graceful shutdown failed, forcing close", util.ErrorField(err))
			server.Close()
		}
	}
}
