// Package listener accepts Ecowitt "customized upload" POSTs and hands the
// decoded fields to the dispatch core.
package listener

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bmrzycki/gw1000-homebridge-http-webhooks/internal/logging"
	"github.com/bmrzycki/gw1000-homebridge-http-webhooks/internal/relay"
)

// Largest update body read from a station.
const maxBodyBytes = 64 << 10

// Dispatcher consumes one accepted station update.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch *relay.Batch) relay.Stats
}

// Options configures a Listener.
type Options struct {
	Passkey         string        // Empty accepts any station
	MaxConnections  int           // 0 means unlimited
	ShutdownTimeout time.Duration // Grace period for in-flight requests
	CachedKeys      func() int    // Reported by /health when set
	Logger          *slog.Logger
}

// Listener is the station-facing HTTP endpoint.
type Listener struct {
	dispatcher      Dispatcher
	passkey         string
	maxConns        int
	shutdownTimeout time.Duration
	cachedKeys      func() int
	log             *slog.Logger
}

func New(d Dispatcher, opts Options) *Listener {
	l := &Listener{
		dispatcher:      d,
		passkey:         opts.Passkey,
		maxConns:        opts.MaxConnections,
		shutdownTimeout: opts.ShutdownTimeout,
		cachedKeys:      opts.CachedKeys,
		log:             opts.Logger,
	}
	if l.log == nil {
		l.log = logging.Discard()
	}
	if l.shutdownTimeout <= 0 {
		l.shutdownTimeout = 5 * time.Second
	}
	return l
}

// Handler returns the listener routes. Accepted updates are dispatched with
// ctx rather than the request context, so a station hanging up after its
// acknowledgement does not cut the dispatch short.
func (l *Listener) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if l.cachedKeys != nil {
			health["cached_keys"] = l.cachedKeys()
		}
		writeJSON(w, health)
	})

	mux.HandleFunc("/", updateHandler(ctx, l))

	return accessLog(l.log, mux)
}

// Create the station update handler
func updateHandler(ctx context.Context, l *Listener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}

		body, readErr := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))

		// Acknowledge before dispatching; the station never sees downstream failures.
		acknowledge(w)

		if readErr != nil {
			l.log.Warn("cannot read Ecowitt update", "remote", r.RemoteAddr, "error", readErr)
			return
		}
		batch, err := DecodeForm(string(body))
		if err != nil {
			l.log.Debug("skipped malformed form fields", "error", err)
		}

		passkey, _ := batch.Get(relay.PasskeyField)
		if passkey == "" {
			l.log.Debug("non-Ecowitt data", "data", batch)
			return
		}
		if l.passkey != "" && l.passkey != passkey {
			l.log.Warn("ignoring untrusted Ecowitt update", "passkey", passkey, "remote", r.RemoteAddr)
			return
		}

		stationType, ok := batch.Get(relay.StationTypeField)
		if !ok {
			stationType = "(unknown)"
		}
		l.log.Info("Ecowitt update", "passkey", passkey, "stationtype", stationType, "fields", batch.Len())
		l.log.Debug("Ecowitt raw data", "data", batch)

		l.dispatcher.Dispatch(ctx, batch)
	}
}

// Send the empty 200 the station expects and push it out immediately
func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusOK)
	_ = http.NewResponseController(w).Flush()
}

// DecodeForm parses an urlencoded body. Pairs are kept in order, a repeated
// key keeps its last value, and pairs with an empty value are dropped.
// Undecodable pairs are skipped; the first such error is returned alongside
// everything that did decode.
func DecodeForm(body string) (*relay.Batch, error) {
	batch := relay.NewBatch()
	var firstErr error
	for body != "" {
		var pair string
		pair, body, _ = strings.Cut(body, "&")
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if value == "" {
			continue
		}
		batch.Set(key, value)
	}
	return batch, firstErr
}

// Write JSON response
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Log every request at info level
func accessLog(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}
