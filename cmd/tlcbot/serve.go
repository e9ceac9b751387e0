package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tlcclub/tlcbot/core/bootstrap"
	corecmd "github.com/tlcclub/tlcbot/core/cmd"
	"github.com/tlcclub/tlcbot/internal/app"
	"github.com/tlcclub/tlcbot/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:        configFlag(cmd),
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return config.Load(path)
				},
				Bootstrap: func(c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					cfg := c.(*config.Config)
					res, err := bootstrap.Run(bootstrap.Options{
						Config:   cfg.CoreConfig(),
						Database: cfg.Database,
					})
					if err != nil {
						return nil, err
					}
					a, err := app.New(context.Background(), cfg, app.Deps{DB: res.DB})
					if err != nil {
						_ = res.Close()
						return nil, err
					}
					return a, nil
				},
			})
		},
	}
}
