/*
fakestation
Sends one fake Ecowitt GW1000 push update, for exercising the relay.
*/
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/bmrzycki/gw1000-homebridge-http-webhooks/internal/webhooks"
)

var (
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
)

// CLI is the command line of fakestation.
type CLI struct {
	Host    string  `help:"Host IP/address to send update." default:"127.0.0.1"`
	Port    int     `help:"Host port to send update." default:"10000"`
	MAC     string  `help:"HW MAC address of the station." name:"mac" default:"00:1a:2b:3c:4d:5e"`
	Random  bool    `help:"Randomize datapoint values." short:"r"`
	Metric  bool    `help:"Use metric units instead of imperial." short:"m"`
	Timeout float64 `help:"Request timeout in seconds." default:"10"`
}

// Run builds, prints and sends the update.
func (c *CLI) Run() error {
	fields := BuildPayload(PayloadOptions{
		MAC:    c.MAC,
		Random: c.Random,
		Metric: c.Metric,
		Now:    time.Now(),
	})
	printFields(os.Stdout, fields, isatty.IsTerminal(os.Stdout.Fd()))

	hc := &http.Client{Timeout: time.Duration(c.Timeout * float64(time.Second))}
	target := "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + "/"
	if _, err := webhooks.PostForm(context.Background(), hc, target, Encode(fields)); err != nil {
		return fmt.Errorf("sending update to %s: %w", target, err)
	}
	return nil
}

// Print one "name = value" line per field, styled on terminals
func printFields(w io.Writer, fields []Field, styled bool) {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Name))
	}
	for _, f := range fields {
		name := fmt.Sprintf("%-*s", width, f.Name)
		if styled {
			fmt.Fprintf(w, "%s = %s\n", nameStyle.Render(name), valueStyle.Render(f.Value))
			continue
		}
		fmt.Fprintf(w, "%s = %s\n", name, f.Value)
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("fakestation"),
		kong.Description("Fake Ecowitt push update"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
