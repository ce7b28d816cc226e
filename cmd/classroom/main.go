package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/classroom/internal/cli"
	"github.com/caarlos0/env/v11"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.Main(ctx, os.Args[1:], cli.Options{
		Environ: env.ToMap(os.Environ()),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
	if err != nil {
		stop()
		log.Fatalf("classroom: %v", err)
	}
}
