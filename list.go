package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/RedDragonet/bootvisor/service"
	"github.com/RedDragonet/bootvisor/session"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

type sessionLister interface {
	HasSession(name string) bool
}

func newTmux(context *cli.Context) *session.Tmux {
	return session.NewTmux(context.String("tmux-socket"))
}

func ListServices(out io.Writer, registry *service.Registry, disabled service.DisableSet, host sessionLister) error {
	w := tabwriter.NewWriter(out, 12, 1, 3, ' ', 0)
	fmt.Fprint(w, "NAME\tWAVE\tMEMORY\tDISABLED\tSESSION\tCOMMAND\n")
	for _, d := range registry.All() {
		memory := "unlimited"
		if d.MemoryLimitMB > 0 {
			memory = humanize.IBytes(uint64(d.MemoryLimitMB) * humanize.MiByte)
		}
		state := session.StateAbsent
		if host.HasSession(d.Name) {
			state = session.StateRunning
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
			d.Name,
			d.Wave,
			memory,
			service.ShouldDisable(d, disabled),
			state,
			d.Command)
	}
	return w.Flush()
}
