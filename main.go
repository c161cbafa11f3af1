package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/soocke/vision-live-go/app"
	"github.com/soocke/vision-live-go/config"
)

func main() {
	cliApp := &cli.App{
		Name:  "vision-live",
		Usage: "live object detection over images, videos and webcams",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.json", Usage: "path of the JSON config file"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "optional .env file with VISION_* overrides"},
			&cli.StringFlag{Name: "backend", Usage: "detector backend: http, ws or demo"},
			&cli.StringFlag{Name: "detector-url", Usage: "base URL of the detection service"},
			&cli.BoolFlag{Name: "debug", Usage: "debug logging and periodic diagnostics"},
		},
		Action: run,
	}
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfgPath := c.String("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(c.String("env-file")); err != nil {
		return err
	}
	if c.IsSet("backend") {
		cfg.Backend = strings.ToLower(c.String("backend"))
	}
	if c.IsSet("detector-url") {
		cfg.DetectorURL = c.String("detector-url")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)
	logger.Info("starting", "backend", cfg.Backend, "detector_url", cfg.DetectorURL, "config", cfgPath)

	application, err := app.NewApp("Vision Live", cfg.PreviewW+40, cfg.PreviewH+420, cfg, cfgPath, logger)
	if err != nil {
		return err
	}
	application.Start()
	return nil
}
