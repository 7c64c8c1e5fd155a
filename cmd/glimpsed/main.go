package main

import (
	"context"
	"log"
	"os"

	"glimpse/internal/config"
	"glimpse/internal/daemon"
	"glimpse/internal/logging"
)

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	opts := daemon.RunOptions{
		Inspector: newPlatformInspector(logger),
		Grabber:   newPlatformGrabber(),
		Icons:     newPlatformIconSource(),
	}
	if err := daemon.Run(context.Background(), cfg, logger, opts); err != nil {
		logger.Error("glimpsed exited", logging.Error(err))
		os.Exit(1)
	}
}
