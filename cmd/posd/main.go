// Command posd runs the POS activation engine: it serves the local
// activation API the UI blocks its login screen on, and gates every other
// route until the installation is activated.
package main

import (
	"log/slog"
	"os"

	"beirutpos/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("engine stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
