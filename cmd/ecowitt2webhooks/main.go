/*
ecowitt2webhooks
Relays Ecowitt gateway push updates to homebridge-http-webhooks accessories.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/bmrzycki/gw1000-homebridge-http-webhooks/internal/config"
	"github.com/bmrzycki/gw1000-homebridge-http-webhooks/internal/listener"
	"github.com/bmrzycki/gw1000-homebridge-http-webhooks/internal/logging"
	"github.com/bmrzycki/gw1000-homebridge-http-webhooks/internal/relay"
	"github.com/bmrzycki/gw1000-homebridge-http-webhooks/internal/webhooks"
)

var version = "dev"

// Config file tried when --config is not given.
const defaultConfigFile = "ecowitt2webhooks.yaml"

// CLI is the command line of ecowitt2webhooks.
type CLI struct {
	Version kong.VersionFlag `help:"Show version." short:"V"`
	Config  string           `help:"Config file; ecowitt2webhooks.yaml is tried when not given." short:"c" type:"path"`
	EnvFile string           `help:"Dotenv file with ECOWITT_* overrides." default:".env" type:"path"`
	Verbose int              `help:"Verbosity, repeat to increase." short:"v" type:"counter"`
}

// errInterrupted marks the normal, operator-initiated shutdown.
var errInterrupted = errors.New("interrupted by user")

// Run loads the configuration and serves until interrupted.
func (c *CLI) Run() error {
	log := logging.New(os.Stderr, c.Verbose)
	cfg, err := c.loadConfig(log)
	if err != nil {
		return err
	}

	if c.Verbose > 1 {
		dumpConfig(os.Stdout, cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = serve(ctx, cfg, log)
	if err == nil && ctx.Err() != nil {
		return errInterrupted
	}
	return err
}

// loadConfig reads the config file, then .env, then ECOWITT_* overrides.
// A config file named on the command line must exist; the default one may
// be absent.
func (c *CLI) loadConfig(log *slog.Logger) (*config.Config, error) {
	path := c.Config
	if path == "" {
		path = defaultConfigFile
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Warn("config file not found, using defaults", "path", path)
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: reading %s: %w", c.EnvFile, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Build the relay and its listener from cfg and serve until ctx is done
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	cache, err := relay.NewCache(cfg.Global.CacheTTL)
	if err != nil {
		return err
	}
	names, ignore := cfg.Mappings()
	policy := relay.NewPolicy(names, ignore)
	client := webhooks.NewClient(cfg.Webhooks.Host, cfg.Webhooks.Port, time.Duration(cfg.Global.URLTimeout))

	r := relay.New(policy, cache, client,
		relay.WithDelay(cfg.Delay()),
		relay.WithLogger(log.With("component", "relay")),
	)
	l := listener.New(r, listener.Options{
		Passkey:         cfg.Global.Passkey,
		MaxConnections:  cfg.Server.MaxConnections,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeout),
		CachedKeys:      cache.Len,
		Logger:          log.With("component", "listener"),
	})

	addr := net.JoinHostPort(cfg.Server.Address, strconv.Itoa(cfg.Server.Port))
	return l.ListenAndServe(ctx, addr)
}

// Print the effective configuration and the full ignore set
func dumpConfig(w io.Writer, cfg *config.Config) {
	cfg.Dump(w)
	names, ignore := cfg.Mappings()
	fmt.Fprintf(w, "(ignored) : %v\n", relay.NewPolicy(names, ignore).IgnoredKeys())
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("ecowitt2webhooks"),
		kong.Description("Ecowitt Gateway to homebridge-http-webhooks"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	err := ctx.Run()
	if errors.Is(err, errInterrupted) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ctx.Model.Name, err)
		return
	}
	ctx.FatalIfErrorf(err)
}
