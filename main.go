package main

import (
	"log"
	"os"

	"github.com/RedDragonet/bootvisor/pkg/pidlog"
	"github.com/urfave/cli/v2"
)

const usage = `车载平台开机服务启动器`

func main() {
	app := cli.NewApp()
	app.Name = "bootvisor"
	app.Usage = usage
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "日志级别",
			Value:   "info",
			EnvVars: []string{"BOOTVISOR_LOG_LEVEL"},
		},
	}
	app.Before = func(context *cli.Context) error {
		return pidlog.Setup(context.String("log-level"), os.Stderr)
	}
	app.Commands = []*cli.Command{
		bootCommand(),
		limitCommand(),
		placeholderCommand(),
		listCommand(),
		logCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
