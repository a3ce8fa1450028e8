package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"browser-http/config"
)

func main() {
	// .env is optional.
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newFetchCmd(os.Stdout, os.Stderr, http.DefaultClient)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
