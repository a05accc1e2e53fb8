// Command lease-client obtains a license token from a lease server and
// keeps it renewed until interrupted.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leasegate/internal/client"
	"leasegate/internal/config"
	"leasegate/internal/infrastructure"
	"leasegate/internal/license"
)

func main() {
	server := flag.String("server", "127.0.0.1:7090", "lease server address (host:port)")
	holder := flag.String("holder", "", "license holder name")
	key := flag.String("key", "", "credential (derived from holder when empty)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if *holder == "" {
		slog.Error("missing required -holder flag")
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(config.LoggingConfig{
		Level:  *logLevel,
		Output: "console",
	})
	if err != nil {
		slog.Error("Failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}

	credential := *key
	if credential == "" {
		credential = license.ContentHashAuthenticator{}.DeriveKey(*holder)
	}

	c := client.New(client.Config{
		Address: *server,
		Holder:  *holder,
		Key:     credential,
	}, logger)

	c.RequestNow()

	// Log the token state once the first round trip settles.
	go func() {
		time.Sleep(2 * time.Second)
		token := c.Current()
		if token == nil {
			return
		}
		if err := token.Err(); err != nil {
			logger.Warn("lease not granted",
				slog.String("reason", token.Reason),
				slog.String("error", err.Error()))
			return
		}
		logger.Info("current token",
			slog.Bool("valid", token.Valid),
			slog.String("reason", token.Reason))
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	c.Stop()
	logger.Info("client stopped")
}
