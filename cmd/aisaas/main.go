package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/aisaas/backend/internal/app"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	ctx := context.Background()
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
