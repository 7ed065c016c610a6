/*
fakewebhooks
Stands in for homebridge-http-webhooks: accepts every update and logs it.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/bmrzycki/gw1000-homebridge-http-webhooks/internal/logging"
)

// CLI is the command line of fakewebhooks.
type CLI struct {
	Address string `help:"IP address to listen on." short:"a" default:"127.0.0.1"`
	Port    int    `help:"IP port to listen on." short:"p" default:"51828"`
}

// Run serves until interrupted.
func (c *CLI) Run() error {
	log := logging.New(os.Stderr, 2)
	addr := net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
	fmt.Printf("fake webhooks server listening on %s\n", addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := &http.Server{Addr: addr, Handler: webhooksHandler(log)}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return errors.New("interrupted by user (CTRL-C)")
}

// Create the handler answering every request with success
func webhooksHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.RawQuery
		if r.Method == http.MethodPost {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			raw = string(body)
		}

		rsp := []byte(`{"success":true}`)
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Length", strconv.Itoa(len(rsp)))
		w.WriteHeader(http.StatusOK)
		w.Write(rsp)

		data, err := url.ParseQuery(raw)
		if err != nil {
			log.Warn("unparsable data", "method", r.Method, "raw", raw, "error", err)
			return
		}
		log.Info("update", "method", r.Method, "data", flatten(data))
	}
}

// Single values are logged bare, repeated ones as a list
func flatten(v url.Values) map[string]any {
	out := make(map[string]any, len(v))
	for k, vals := range v {
		if len(vals) == 1 {
			out[k] = vals[0]
			continue
		}
		out[k] = vals
	}
	return out
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("fakewebhooks"),
		kong.Description("Fake webhooks server"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
