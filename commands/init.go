package commands

import (
	"context"
	"lanchat/config"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// RunInit writes a config file with default settings and the given nickname.
func RunInit(ctx context.Context, cfg *config.Config, nickname string) {
	log.Info("RunInit()")

	if nickname != "" {
		cfg.Node.Nickname = nickname
	}
	if cfg.Node.Nickname == "" {
		log.Warn("No nickname set; edit node.nickname in the config before running serve")
	}

	if err := cfg.Save(); err != nil {
		log.Fatalf("Failed to save config: %v", err)
	}
}
