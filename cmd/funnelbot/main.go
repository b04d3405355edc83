package main

import (
	"log"

	"github.com/m3rciful/funnelbot/bot"
	"github.com/m3rciful/funnelbot/core/bootstrap"
	"github.com/m3rciful/funnelbot/core/buildinfo"
	corecmd "github.com/m3rciful/funnelbot/core/cmd"
	coreconfig "github.com/m3rciful/funnelbot/core/config"
)

func main() {
	log.Printf("funnelbot %s (%s) built %s", buildinfo.Version, buildinfo.Commit, buildinfo.Date)

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        coreconfig.Load,
		Bootstrap: func(cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
			result, err := bootstrap.Run(bootstrap.Options{Config: cfg})
			if err != nil {
				return nil, err
			}
			return bot.New(cfg, result.DB)
		},
	})
	if err != nil {
		log.Fatalf("funnelbot: %v", err)
	}
}
