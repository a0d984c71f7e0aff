package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// NewApp creates the fdbread CLI app.
func NewApp() *cli.App {
	app := cli.NewApp()
	app.Name = "fdbread"
	app.Usage = "Read-path tool for a versioned key-value store"

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging.",
		},
	}

	app.Commands = []*cli.Command{
		NewSeedCommand(),
		NewGetCommand(),
		NewScanCommand(),
	}

	// inject a cancelable context into all commands
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer cancel()
		<-ch
	}()

	for i := range app.Commands {
		action := app.Commands[i].Action
		app.Commands[i].Action = func(c *cli.Context) error {
			if c.Bool("debug") {
				logrus.SetLevel(logrus.DebugLevel)
			}
			c.Context = ctx
			return action(c)
		}
	}

	return app
}
