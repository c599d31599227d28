package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/danmuck/lvctl/internal/client"
	"github.com/danmuck/lvctl/internal/config"
	"github.com/danmuck/lvctl/internal/host"
	"github.com/danmuck/lvctl/internal/logging"
	"github.com/danmuck/lvctl/internal/protocol/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func applyLogLevel(c *cli.Context) error {
	raw := c.String("log-level")
	if raw == "" {
		return nil
	}
	lvl, ok := logging.ParseLevel(raw)
	if !ok {
		return fmt.Errorf("unknown log level %q", raw)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// loadConfig reads the config file, falling back to defaults when the default
// path does not exist.
func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		if !c.IsSet("config") && isNotExist(err) {
			log.Debug().Str("path", path).Msg("config not found, using defaults")
			cfg = config.Default()
		} else {
			return config.Config{}, err
		}
	}
	if !c.IsSet("log-level") && cfg.Log.Level != "" {
		if lvl, ok := logging.ParseLevel(cfg.Log.Level); ok {
			zerolog.SetGlobalLevel(lvl)
		}
	}
	if addr := strings.TrimSpace(c.String("addr")); addr != "" {
		hostName, port, err := splitAddr(addr)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Host.Host = hostName
		cfg.Host.Port = port
	}
	return cfg, config.Validate(cfg)
}

func configInit(c *cli.Context) error {
	path := c.String("config")
	if err := config.WriteTemplate(path, "lvctl", c.Bool("force")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	return nil
}

func configValidate(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	printConfig(c.App.Writer, cfg)
	return nil
}

func startHost(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	mgr := host.New(cfg.HostConfig())
	cfg.ApplyPreferences(mgr.Preferences())

	proc, err := mgr.Start(c.Context)
	if err != nil {
		return err
	}
	printProcess(c.App.Writer, proc)
	if c.Bool("detach") || !proc.Owned {
		return nil
	}

	log.Info().Str("addr", mgr.Config().Address()).Msg("holding host, interrupt to stop")
	<-c.Context.Done()
	killCtx, cancel := context.WithTimeout(context.Background(), mgr.Config().KillTimeout)
	defer cancel()
	return mgr.Kill(killCtx)
}

func probe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return client.WithClient(c.Context, cfg.ClientConfig(), func(cl *client.Client) error {
		fmt.Fprintf(c.App.Writer, "%s reachable\n", cl.Addr())
		return nil
	})
}

func runVI(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	controls, err := controlsFromFlags(c)
	if err != nil {
		return err
	}
	runOptions := c.Int("run-options")
	if runOptions < math.MinInt32 || runOptions > math.MaxInt32 {
		return fmt.Errorf("run-options %d out of range", runOptions)
	}
	opts := []client.RunOption{
		client.WithRunOptions(int32(runOptions)),
		client.WithOpenFrontPanel(c.Bool("open-frontpanel")),
		client.WithIndicatorNames(c.StringSlice("indicator")...),
	}
	return client.WithClient(c.Context, cfg.ClientConfig(), func(cl *client.Client) error {
		res, err := cl.RunVISynchronous(c.Context, c.String("vi"), controls, opts...)
		if err != nil {
			return err
		}
		return report(c, cl, res)
	})
}

func setControls(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	controls, err := controlsFromFlags(c)
	if err != nil {
		return err
	}
	return client.WithClient(c.Context, cfg.ClientConfig(), func(cl *client.Client) error {
		res, err := cl.SetControls(c.Context, client.SetControlsRequest{
			ProjectPath:               c.String("project"),
			TargetName:                c.String("target"),
			VIPath:                    c.String("vi"),
			Controls:                  controls,
			IgnoreNonexistentControls: c.Bool("ignore-missing"),
		})
		if err != nil {
			return err
		}
		return report(c, cl, res)
	})
}

func getIndicators(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return client.WithClient(c.Context, cfg.ClientConfig(), func(cl *client.Client) error {
		res, err := cl.GetIndicators(c.Context, client.GetIndicatorsRequest{
			ProjectPath:    c.String("project"),
			TargetName:     c.String("target"),
			VIPath:         c.String("vi"),
			IndicatorNames: c.StringSlice("indicator"),
		})
		if err != nil {
			return err
		}
		return report(c, cl, res)
	})
}

func describeError(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	code := c.Int("code")
	if code < math.MinInt32 || code > math.MaxInt32 {
		return fmt.Errorf("code %d out of range", code)
	}
	return client.WithClient(c.Context, cfg.ClientConfig(), func(cl *client.Client) error {
		msg, err := cl.DescribeError(c.Context, schema.ErrorCluster{
			Status: true,
			Code:   int32(code),
			Source: c.String("source"),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, msg)
		return nil
	})
}

// report prints indicators and turns a fault into the command's error.
func report(c *cli.Context, cl *client.Client, res client.Result) error {
	printIndicators(c.App.Writer, res.Indicators)
	if !res.Faulted() {
		if res.Fault != nil && res.Fault.Code != 0 {
			log.Warn().Int32("code", res.Fault.Code).Str("source", res.Fault.Source).Msg("host reported a warning")
		}
		return nil
	}
	if c.Bool("resolve") {
		if err := cl.ResolveFault(c.Context, res); err != nil {
			var fault *client.RemoteFault
			if errors.As(err, &fault) {
				printFault(c.App.Writer, fault)
			}
			return err
		}
	}
	return res.Err()
}
