package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/lvctl/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	observability.InitLogger("lvctl")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("lvctl failed")
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lvctl",
		Usage: "Drive VirtualInstruments on a remote VI host",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "lvctl.toml", Usage: "config file"},
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "listener host:port, overrides the config"},
			&cli.StringFlag{Name: "log-level", Usage: "trace|debug|info|warn|error|off"},
		},
		Before: applyLogLevel,
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Manage the config file",
				Subcommands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write a starter config",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "overwrite an existing file"},
						},
						Action: configInit,
					},
					{
						Name:   "validate",
						Usage:  "Load and validate the config",
						Action: configValidate,
					},
				},
			},
			{
				Name:  "start",
				Usage: "Launch or adopt the listener and hold it until interrupted",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "detach", Usage: "return once listening and leave the host running"},
				},
				Action: startHost,
			},
			{
				Name:   "probe",
				Usage:  "Check that the listener accepts connections",
				Action: probe,
			},
			{
				Name:  "run",
				Usage: "Run a VI synchronously",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "vi", Required: true, Usage: "VI path on the host"},
					&cli.StringFlag{Name: "controls", Usage: "controls as a JSON object"},
					&cli.StringFlag{Name: "controls-file", Usage: "controls as a TOML file"},
					&cli.StringSliceFlag{Name: "indicator", Aliases: []string{"i"}, Usage: "indicator to return, repeatable"},
					&cli.BoolFlag{Name: "open-frontpanel", Usage: "open the VI front panel while running"},
					&cli.IntFlag{Name: "run-options", Usage: "host run option flags"},
					&cli.BoolFlag{Name: "resolve", Value: true, Usage: "describe a returned fault"},
				},
				Action: runVI,
			},
			{
				Name:  "set-controls",
				Usage: "Set control values on a VI without running it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "vi", Required: true},
					&cli.StringFlag{Name: "controls"},
					&cli.StringFlag{Name: "controls-file"},
					&cli.StringFlag{Name: "project"},
					&cli.StringFlag{Name: "target"},
					&cli.BoolFlag{Name: "ignore-missing"},
					&cli.BoolFlag{Name: "resolve", Value: true, Usage: "describe a returned fault"},
				},
				Action: setControls,
			},
			{
				Name:  "get-indicators",
				Usage: "Read indicator values from a VI",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "vi", Required: true},
					&cli.StringSliceFlag{Name: "indicator", Aliases: []string{"i"}},
					&cli.StringFlag{Name: "project"},
					&cli.StringFlag{Name: "target"},
					&cli.BoolFlag{Name: "resolve", Value: true, Usage: "describe a returned fault"},
				},
				Action: getIndicators,
			},
			{
				Name:  "describe-error",
				Usage: "Look up the text for an error code",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "code", Required: true},
					&cli.StringFlag{Name: "source"},
				},
				Action: describeError,
			},
		},
	}
}
