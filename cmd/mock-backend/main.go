package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/ambuproxy/internal/mockbackend"
	"github.com/okian/ambuproxy/pkg/logger"
)

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:8000", "Listen address")
		token   = flag.String("token", "", "Extra bearer token always accepted as the admin user")
		verbose = flag.Bool("verbose", false, "Log every request")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		mockbackend.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mockbackend.New(
		mockbackend.WithToken(*token),
		mockbackend.WithLogger(logger.Named("mock-backend")),
	)
	if err := srv.Run(ctx, *addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		os.Stderr.WriteString("mock backend failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
