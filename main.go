package main

import (
	"log/slog"
	"net/http"
	_ "net/http/pprof" // profiling
	"os"

	_ "github.com/joho/godotenv/autoload" // automatically load .env files

	"github.com/tujuhre12/dgrid/internal/cmd"
	"github.com/tujuhre12/dgrid/internal/log"
)

const defaultProfileAddr = "localhost:6060"

func main() {
	// DGRID_PROFILE=1 serves pprof on the default address, any other value
	// is used as the listen address.
	if addr := os.Getenv("DGRID_PROFILE"); addr != "" {
		if addr == "1" || addr == "true" {
			addr = defaultProfileAddr
		}
		go func() {
			defer log.RecoverPanic("pprof", nil)
			slog.Info("Serving pprof", "addr", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				slog.Error("Failed to serve pprof", "addr", addr, "error", err)
			}
		}()
	}

	cmd.Execute()
}
