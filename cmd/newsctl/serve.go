package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/danmuck/newswire/internal/newsapi"
	"github.com/danmuck/newswire/internal/server"
	"github.com/danmuck/newswire/internal/store"
	"github.com/danmuck/newswire/internal/validate"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the news session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			loadDotEnv(envFile)
			cfg, err := loadServerConfig(configPath)
			if err != nil {
				return err
			}
			applyEnvOverrides(&cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			gateway, err := newsapi.NewClient(cfg.News)
			if err != nil {
				return fmt.Errorf("newsctl: gateway: %w", err)
			}
			st, err := store.Open(cfg.Store)
			if err != nil {
				return fmt.Errorf("newsctl: store: %w", err)
			}
			defer st.Close()
			log.Info().
				Str("store_backend", st.Backend()).
				Str("api_base_url", cfg.News.BaseURL).
				Msg("newsctl serve starting")

			svc, err := server.NewService(cfg.Service, server.Dependencies{
				Gateway: gateway,
				Rules:   validate.DefaultRules(),
				Store:   st,
			})
			if err != nil {
				return err
			}
			return svc.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to server config.toml (defaults apply when empty)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	return cmd
}

func loadDotEnv(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no dotenv file, using process environment")
			return
		}
		log.Warn().Err(err).Str("path", path).Msg("dotenv load failed")
	}
}
