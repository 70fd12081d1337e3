// Package dummy is a local target for trying out load tests.
package dummy

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// MaxSleep bounds /sleep/{duration}.
const MaxSleep = time.Minute

type ServerConfig struct {
	Port int
}

func jitter(base, spread time.Duration) time.Duration {
	return base + rand.N(spread)
}

func respond(w http.ResponseWriter, code int, body string) {
	w.WriteHeader(code)
	w.Write([]byte(body))
}

// Handler routes the dummy endpoints:
//
//	/              10ms, 200
//	/fast          10-50ms
//	/medium        100-300ms
//	/slow          1-2s
//	/spike         20ms, 5% of requests take 2s
//	/error         20% 500, 20% 429, else 200
//	/status/{code} replies with code
//	/sleep/{d}     waits d (a time.ParseDuration string) then replies 200
func Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		respond(w, http.StatusOK, "Hello, loadtest!")
	})

	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(jitter(10*time.Millisecond, 40*time.Millisecond))
		respond(w, http.StatusOK, "Fast response")
	})

	mux.HandleFunc("/medium", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(jitter(100*time.Millisecond, 200*time.Millisecond))
		respond(w, http.StatusOK, "Medium response")
	})

	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(jitter(time.Second, time.Second))
		respond(w, http.StatusOK, "Slow response")
	})

	// P99 is terrible, P50 is fine.
	mux.HandleFunc("/spike", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.05 {
			time.Sleep(2 * time.Second)
		} else {
			time.Sleep(20 * time.Millisecond)
		}
		respond(w, http.StatusOK, "Spikey response")
	})

	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		rnd := rand.Float32()
		switch {
		case rnd < 0.2:
			respond(w, http.StatusInternalServerError, "500 Internal Server Error")
		case rnd < 0.4:
			respond(w, http.StatusTooManyRequests, "429 Too Many Requests")
		default:
			respond(w, http.StatusOK, "OK")
		}
	})

	mux.HandleFunc("/status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(r.PathValue("code"))
		if err != nil || code < 200 || code > 999 {
			respond(w, http.StatusBadRequest, "status code must be between 200 and 999")
			return
		}
		respond(w, code, http.StatusText(code))
	})

	mux.HandleFunc("/sleep/{duration}", func(w http.ResponseWriter, r *http.Request) {
		d, err := time.ParseDuration(r.PathValue("duration"))
		if err != nil || d < 0 || d > MaxSleep {
			respond(w, http.StatusBadRequest, fmt.Sprintf("duration must be between 0 and %s", MaxSleep))
			return
		}
		select {
		case <-time.After(d):
			respond(w, http.StatusOK, "Slept "+d.String())
		case <-r.Context().Done():
		}
	})

	return mux
}

// Serve listens on cfg.Port until ctx is done.
func Serve(ctx context.Context, cfg ServerConfig) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("dummy server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
