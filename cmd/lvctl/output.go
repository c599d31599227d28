package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/danmuck/lvctl/internal/client"
	"github.com/danmuck/lvctl/internal/config"
	"github.com/danmuck/lvctl/internal/host"
	"github.com/danmuck/lvctl/internal/protocol/value"
	"github.com/rodaine/table"
)

func printIndicators(w io.Writer, rec value.Record) {
	tbl := table.New("Indicator", "Kind", "Value").WithWriter(w)
	for _, f := range rec.Fields {
		tbl.AddRow(f.Name, f.Value.Kind(), value.Format(f.Value))
	}
	tbl.Print()
}

func printFault(w io.Writer, fault *client.RemoteFault) {
	tbl := table.New("Command", "Code", "Source", "Description").WithWriter(w)
	tbl.AddRow(fault.Command, fault.Cluster.Code, fault.Cluster.Source, fault.Description)
	tbl.Print()
}

func printProcess(w io.Writer, proc *host.Process) {
	pid := "-"
	if proc.PID != 0 {
		pid = strconv.Itoa(int(proc.PID))
	}
	tbl := table.New("Host", "Port", "PID", "Owned", "Preferences").WithWriter(w)
	tbl.AddRow(proc.Host, proc.Port, pid, proc.Owned, proc.PrefsPath)
	tbl.Print()
}

func printConfig(w io.Writer, cfg config.Config) {
	hc := cfg.HostConfigBase()
	tbl := table.New("Key", "Value").WithWriter(w)
	tbl.AddRow("address", hc.Address())
	tbl.AddRow("local", hc.IsLocal())
	tbl.AddRow("executable", cfg.Host.Executable)
	tbl.AddRow("listener_vi", cfg.Host.ListenerVI)
	tbl.AddRow("connect_retries", cfg.Host.ConnectRetries)
	tbl.AddRow("startup_timeout", cfg.Host.StartupTimeout.Std())
	tbl.AddRow("read_timeout", cfg.Client.ReadTimeout.Std())
	tbl.AddRow("rate_limit", fmt.Sprintf("%g/s", cfg.Client.RateLimit))
	tbl.Print()
}
