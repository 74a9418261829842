package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	petitionscmd "github.com/quorumhq/petitions/internal/cmd/petitions"
)

func main() {
	cfg, err := petitionscmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[PETITIONS] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := petitionscmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
