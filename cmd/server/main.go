package main

import (
	"context"
	"log"

	"github.com/devlens/devlens/internal/server"
	"github.com/devlens/devlens/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
