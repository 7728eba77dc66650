package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ShinyNito/wxcred/core"
	"github.com/ShinyNito/wxcred/internal/app"
)

// Execute 运行根命令
func Execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "wxcred",
		Usage: "WeChat Official Account credential service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file (toml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "wechat--app-id",
				Usage: "official account appid",
			},
			&cli.StringFlag{
				Name:  "wechat--base-url",
				Usage: "wechat API base URL",
				Value: app.DefaultConfigWechatBaseURL,
			},
			&cli.StringFlag{
				Name:  "redis--addr",
				Usage: "redis address used to share credentials (host:port)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			refreshCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "refresh credentials on schedule and serve WeChat callbacks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: app.DefaultConfigServerPort,
			},
			&cli.BoolFlag{
				Name:  "schedule--run-on-start",
				Usage: "refresh access_token and jsapi_ticket once before arming the schedule",
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	closer, err := app.SetupLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting", slog.String("appid", cfg.Wechat.AppID))
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "refresh credentials once and print their expiry",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "job",
				Usage: "job to run (access_token|jsapi_ticket), repeatable; defaults to all",
			},
		},
		Action: refreshAction,
	}
}

func refreshAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	closer, err := app.SetupLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer application.Close()

	refreshErr := application.RefreshNow(ctx, cmd.StringSlice("job")...)

	store := application.OfficialAccount().Store()
	for _, kind := range []core.CredentialKind{core.CredentialAccessToken, core.CredentialJSAPITicket} {
		cred, err := store.Snapshot(kind)
		if err != nil {
			fmt.Fprintf(cmd.Root().Writer, "%-13s not refreshed\n", kind)
			continue
		}
		fmt.Fprintf(cmd.Root().Writer, "%-13s expires at %s\n", kind, cred.ExpiresAt.Format(time.RFC3339))
	}

	return refreshErr
}
