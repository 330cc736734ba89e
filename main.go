package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ajoubeir/chat-service/internal/cmd/migrate"
	"github.com/ajoubeir/chat-service/internal/cmd/serve"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "chat-service",
		Usage: "Messaging backend with profiles, pairwise conversations, and profile pictures",
		Commands: []*cli.Command{
			serve.Command(),
			migrate.Command(),
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
