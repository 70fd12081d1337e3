package runner

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"loadtest/internal/config"
	"loadtest/internal/stats"
)

const maxRedirects = 50

// TransportError is a request failure that is not a timeout.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPExecutor sends the configured request over a client of its own.
type HTTPExecutor struct {
	client  *http.Client
	method  string
	url     string
	host    string
	headers http.Header
	payload []byte
}

// NewHTTPExecutor builds a client for exactly one protocol with the
// configured timeouts, TLS trust and redirect policy.
func NewHTTPExecutor(cfg *config.Config) (*HTTPExecutor, error) {
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build client: %w", err)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	if cfg.FollowRedirects {
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	} else {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	e := &HTTPExecutor{
		client:  client,
		method:  cfg.Method,
		url:     cfg.URL.String(),
		headers: make(http.Header, len(cfg.Headers)),
		payload: cfg.Payload,
	}
	for _, h := range cfg.Headers {
		if strings.EqualFold(h.Name, "host") {
			e.host = h.Value
			continue
		}
		e.headers.Add(h.Name, h.Value)
	}
	return e, nil
}

func newTLSConfig(cfg *config.Config) *tls.Config {
	tlsCfg := &tls.Config{
		RootCAs:      cfg.RootCAs,
		Certificates: cfg.Certificates,
	}
	if cfg.Insecure {
		tlsCfg.InsecureSkipVerify = true
	}
	return tlsCfg
}

func newTransport(cfg *config.Config) (http.RoundTripper, error) {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	tlsCfg := newTLSConfig(cfg)

	switch cfg.Protocol {
	case config.HTTP11:
		return &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSClientConfig:     tlsCfg,
			TLSHandshakeTimeout: cfg.ConnectTimeout,
			ForceAttemptHTTP2:   false,
			TLSNextProto:        map[string]func(string, *tls.Conn) http.RoundTripper{},
			DisableCompression:  true,
			MaxIdleConns:        2000,
			MaxIdleConnsPerHost: 2000,
			IdleConnTimeout:     90 * time.Second,
		}, nil

	case config.HTTP2:
		cleartext := cfg.URL.Scheme == "http"
		return &http2.Transport{
			AllowHTTP:          true,
			TLSClientConfig:    tlsCfg,
			DisableCompression: true,
			DialTLSContext: func(ctx context.Context, network, addr string, c *tls.Config) (net.Conn, error) {
				if cleartext {
					return dialer.DialContext(ctx, network, addr)
				}
				td := &tls.Dialer{NetDialer: dialer, Config: c}
				return td.DialContext(ctx, network, addr)
			},
		}, nil
	}
	return nil, fmt.Errorf("unsupported protocol %v", cfg.Protocol)
}

// Execute sends one request, reads the whole body and classifies the outcome.
// The elapsed time covers the full body transfer.
func (e *HTTPExecutor) Execute(ctx context.Context) (stats.Result, error) {
	start := time.Now()

	var body io.Reader
	if e.payload != nil {
		body = bytes.NewReader(e.payload)
	}

	req, err := http.NewRequestWithContext(ctx, e.method, e.url, body)
	if err != nil {
		return stats.Result{}, &TransportError{Op: "build request", Err: err}
	}
	req.Header = e.headers.Clone()
	if e.host != "" {
		req.Host = e.host
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return stats.Result{Outcome: stats.Timeout, Elapsed: time.Since(start)}, nil
		}
		return stats.Result{}, &TransportError{Op: "send request", Err: err}
	}

	_, err = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err != nil {
		if isTimeout(err) {
			return stats.Result{Outcome: stats.Timeout, Elapsed: time.Since(start)}, nil
		}
		return stats.Result{}, &TransportError{Op: "read response body", Err: err}
	}

	return stats.Result{
		Outcome: stats.OutcomeFromStatus(resp.StatusCode),
		Elapsed: time.Since(start),
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
