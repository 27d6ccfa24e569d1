package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AndrewLester/ntptime/internal/rpc"
	"github.com/AndrewLester/ntptime/pkg/ntptime"
)

const defaultConfigPath = "/etc/ntptime.conf"
const defaultSocketPath = "/var/run/ntptime.sock"

func main() {
	var configPath string
	var query string
	var socket string
	var plain, compare, set, status, noDaemon bool
	var retries int
	var interval time.Duration
	flag.StringVar(&configPath, "config", defaultConfigPath, "Path to the ntptime config file.")
	flag.StringVar(&query, "q", "", "Server to query once.")
	flag.BoolVar(&plain, "plain", false, "Print the query result without the progress UI.")
	flag.IntVar(&retries, "retries", -1, "Re-sends after the first request, 0 for no limit.")
	flag.DurationVar(&interval, "interval", 0, "Time between sends.")
	flag.BoolVar(&compare, "compare", false, "Check the query result against a full SNTP exchange.")
	flag.BoolVar(&set, "set", false, "Step the system clock to the query result.")
	flag.BoolVar(&status, "status", false, "Show the status of the running daemon.")
	flag.BoolVar(&noDaemon, "no-daemon", false, "Don't run ntptime as a daemon.")
	flag.StringVar(&socket, "socket", defaultSocketPath, "Path to the daemon's status socket.")
	flag.Parse()

	if status {
		handleStatusCommand(socket)
		return
	}

	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	config.ApplyEnvironment()
	overrides{server: query, retries: retries, interval: interval}.apply(&config)

	if query != "" {
		handleQueryCommand(config, queryFlags{plain: plain, compare: compare, set: set})
		return
	}

	if !noDaemon {
		if !becomeDaemon() {
			return
		}
		defer daemonCtx.Release()
	}

	if err := runDaemon(config, socket); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

// loadConfig falls back to the defaults only when the default config file
// is missing. A missing file that was asked for is an error.
func loadConfig(path string) (ntptime.Config, error) {
	config, err := ntptime.ParseConfig(path)
	if err != nil && path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return ntptime.DefaultConfig(), nil
	}
	return config, err
}

// overrides are the flags that replace config file and environment
// settings. Zero values leave the setting alone, except retries, which is
// unset when negative.
type overrides struct {
	server   string
	retries  int
	interval time.Duration
}

func (o overrides) apply(config *ntptime.Config) {
	if o.server != "" {
		config.Server = o.server
	}
	if o.retries >= 0 {
		config.Retries = uint(o.retries)
	}
	if o.interval > 0 {
		config.RetryInterval = o.interval
	}
}

func runDaemon(config ntptime.Config, socket string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := ntptime.NewDaemon(config, ntptime.NewRequester(config.Transport(), nil))
	server := &rpc.StatusServer{Socket: socket, Daemon: d}
	go func() {
		if err := server.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Print("status socket: ", err)
		}
	}()

	return d.Run(ctx)
}
