package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/wprelay/internal/daemon"
	"github.com/matheus3301/wprelay/internal/session"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	autostart := flag.Bool("autostart", false, "start the relay session immediately")
	httpAddr := flag.String("http", "", "HTTP listen address (overrides config)")
	flag.Parse()

	sessionName, err := session.Resolve(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			SessionName: sessionName,
			Version:     version,
			Autostart:   *autostart,
			HTTPAddr:    *httpAddr,
		}),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: logger.Named("fx")}
			l.UseLogLevel(zap.DebugLevel)
			return l
		}),
	)

	app.Run()
}
