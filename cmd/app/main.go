package main

import (
	"log/slog"
	"os"

	"mahira-clipper/internal/bootstrap"
)

// The desktop shell serves ./frontend from the working directory.
func main() {
	app, err := bootstrap.New()
	if err != nil {
		slog.Error("bootstrap clipper app", "err", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		slog.Error("clipper app failed", "err", err)
		os.Exit(1)
	}
}
