package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "ticktock"
	app.Description = "Fixed-tick clocks, interval timers and throttled IO"
	app.Usage = "ticktock [global options] <command> [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "log-level",
			Usage:  "Log level: debug, info, warn or error",
			Value:  "info",
			EnvVar: "TICKTOCK_LOG_LEVEL",
		},
		cli.StringFlag{
			Name:   "log-file",
			Usage:  "Write logs to a rotating file instead of stderr",
			EnvVar: "TICKTOCK_LOG_FILE",
		},
		cli.StringFlag{
			Name:   "metrics-addr",
			Usage:  "Serve prometheus metrics on this address (e.g. :9090)",
			EnvVar: "TICKTOCK_METRICS_ADDR",
		},
	}
	app.Commands = []cli.Command{
		clockCommand,
		throttleCommand,
		jitterCommand,
		monitorCommand,
	}

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running ticktock", "error", err)
		os.Exit(1)
	}
}
