package main

import (
	"context"
	"fmt"

	"sift/internal/config"
	"sift/internal/daemonrun"
)

func runDaemon(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return daemonrun.Run(ctx, cfg)
}
