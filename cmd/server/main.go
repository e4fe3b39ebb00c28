package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/shopfeed/backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		slog.Error("shopfeed failed", slog.Any("error", err))
		os.Exit(1)
	}
}
