// Command bioreaderd runs the reader daemon. It is equivalent to
// "bioreader serve" and suits service managers that want a single binary
// without subcommands.
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"bioreader/internal/config"
	"bioreader/internal/daemonrun"
)

var version = "dev"

func main() {
	cfg, _, _, err := config.Load(os.Getenv("BIOREADER_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	err = daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: os.Getenv("BIOREADER_LOG_LEVEL"),
		Version:  version,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bioreaderd: %v", err)
	}
}
