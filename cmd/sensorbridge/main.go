package main

import (
	"log"
	"os"

	"github.com/m3rciful/sensorbridge/core/bootstrap"
	corecmd "github.com/m3rciful/sensorbridge/core/cmd"
	coreconfig "github.com/m3rciful/sensorbridge/core/config"
	"github.com/m3rciful/sensorbridge/internal/app"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        coreconfig.Load,
		Bootstrap: func(cfg *coreconfig.Config) (corecmd.App, error) {
			infra, err := bootstrap.Run(bootstrap.Options{Config: cfg})
			if err != nil {
				return nil, err
			}
			a, err := app.New(cfg, infra, app.Options{})
			if err != nil {
				_ = infra.Close()
				return nil, err
			}
			return a, nil
		},
	})
	if err != nil {
		log.Printf("sensorbridge: %v", err)
		os.Exit(1)
	}
}
