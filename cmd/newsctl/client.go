package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/danmuck/newswire/internal/client"
	"github.com/danmuck/newswire/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type clientFlags struct {
	addr    string
	name    string
	profile string
}

func newClientCmd() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to a news server and browse interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			cfg, fromProfile, err := resolveClientConfig(flags, cmd.Flags().Changed("addr"), cmd.Flags().Changed("name"))
			if err != nil {
				return err
			}
			if !fromProfile && !cmd.Flags().Changed("name") {
				fmt.Fprint(out, "Enter your name: ")
				line, err := in.ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				cfg.Username = strings.TrimSpace(line)
			}

			dialCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			conn, err := client.Dial(dialCtx, cfg.Addr, cfg.Username)
			cancel()
			if err != nil {
				return err
			}
			log.Debug().Str("addr", conn.RemoteAddr()).Str("username", conn.Username()).Msg("connected")
			return client.NewDriver(conn, in, out).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&flags.addr, "addr", config.DefaultClientAddr, "server address host:port")
	cmd.Flags().StringVar(&flags.name, "name", "", "username sent on connect")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "client profile (defaults to $XDG_CONFIG_HOME/newswire/client.toml when present)")
	return cmd
}

func defaultProfilePath() string {
	return filepath.Join(xdg.ConfigHome, "newswire", "client.toml")
}

// resolveClientConfig merges the profile with flags; explicit flags win. The
// bool reports whether a profile supplied the settings.
func resolveClientConfig(flags clientFlags, addrSet, nameSet bool) (config.ClientConfig, bool, error) {
	cfg := config.DefaultClientConfig()
	cfg.Username = ""
	fromProfile := false

	path := strings.TrimSpace(flags.profile)
	explicit := path != ""
	if !explicit {
		path = defaultProfilePath()
	}
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.LoadClientConfig(path)
		if err != nil {
			return config.ClientConfig{}, false, err
		}
		cfg = loaded
		fromProfile = true
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return config.ClientConfig{}, false, fmt.Errorf("client profile %s: %w", path, err)
	}

	if addrSet || !fromProfile {
		cfg.Addr = strings.TrimSpace(flags.addr)
	}
	if nameSet {
		cfg.Username = strings.TrimSpace(flags.name)
	}
	if err := config.ValidateClientConfig(cfg); err != nil {
		return config.ClientConfig{}, false, err
	}
	return cfg, fromProfile, nil
}
