// licensed is the license issuing and verification HTTP service.
package main

import (
	"flag"
	"log/slog"
	"os"

	"licenser/internal/app"
)

func main() {
	configPath := flag.String("config", "licensed.yaml", "path to the configuration file")
	flag.Parse()

	application, err := app.NewApplication(*configPath)
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
