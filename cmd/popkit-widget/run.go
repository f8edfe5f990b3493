package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/popkit/popkit/internal/ui"
	"github.com/popkit/popkit/internal/widget"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the widget and display notifications until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}

		cfg, err := loadEmbedConfig(configPath)
		if err != nil {
			return err
		}

		cache, err := widget.OpenCacheStore(cfg.CachePath)
		if err != nil {
			return err
		}
		defer cache.Close()

		rt := widget.NewRuntime(widget.RuntimeOptions{
			Client: widget.NewClient(cfg.ServerURL, widget.Credentials{
				SiteID:       cfg.SiteID,
				WidgetID:     cfg.WidgetID,
				SiteAPIKey:   cfg.SiteAPIKey,
				WidgetAPIKey: cfg.WidgetAPIKey,
			}),
			Cache:    cache,
			Renderer: terminalRenderer{},
		})

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		rt.Start(ctx)

		fmt.Fprintln(os.Stderr, ui.RenderMuted("widget running, Ctrl-C to stop"))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		cancel()
		rt.Stop()
		return nil
	},
}
