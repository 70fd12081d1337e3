// Package config resolves raw command-line input into the immutable
// configuration shared by every worker of a run.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

// Protocol is the single HTTP version a run speaks.
type Protocol int

const (
	HTTP11 Protocol = iota
	HTTP2
)

func (p Protocol) String() string {
	if p == HTTP2 {
		return "HTTP/2"
	}
	return "HTTP/1.1"
}

// Header is one default request header. Names are lower case.
type Header struct {
	Name  string
	Value string
}

// Rate is a decimal requests-per-second value. It keeps the text it was
// parsed from so it is displayed the way the user wrote it.
type Rate struct {
	text string
	rat  *big.Rat
}

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// ParseRate parses a plain decimal such as "10", "0.5" or "-1".
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	return Rate{text: s, rat: r}, nil
}

// MustRate is ParseRate for constants.
func MustRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rate) String() string {
	if r.rat == nil {
		return "0"
	}
	return r.text
}

// Rat returns a copy of the exact value.
func (r Rate) Rat() *big.Rat {
	if r.rat == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(r.rat)
}

// Uint32 truncates toward zero, returning 0 when the value does not fit.
func (r Rate) Uint32() uint32 {
	if r.rat == nil || r.rat.Sign() < 0 {
		return 0
	}
	q := new(big.Int).Quo(r.rat.Num(), r.rat.Denom())
	if !q.IsUint64() || q.Uint64() > 1<<32-1 {
		return 0
	}
	return uint32(q.Uint64())
}

// Config is the resolved run configuration. It is read-only once built.
type Config struct {
	URL     *url.URL
	Method  string
	Headers []Header

	Insecure     bool
	CACertFile   string
	CertFile     string
	KeyFile      string
	RootCAs      *x509.CertPool
	Certificates []tls.Certificate

	FollowRedirects bool
	Protocol        Protocol

	RequestsPerSecond Rate
	Duration          time.Duration
	Timeout           time.Duration
	ConnectTimeout    time.Duration
	HasConnectTimeout bool

	Payload    []byte
	UploadFile string

	Output string
	DryRun bool
}

// Flags is the raw command-line input. Pointer fields are nil when the flag
// was not given.
type Flags struct {
	URL                 string
	Headers             []string
	Insecure            bool
	UploadFile          string
	Method              string
	CACert              string
	Cert                string
	Key                 string
	Data                *string
	Location            bool
	RequestsPerSecond   string
	DurationSecs        int64
	MaxTimeSecs         *int64
	ConnectTimeoutSecs  *float64
	Output              string
	HTTP11              bool
	HTTP2PriorKnowledge bool
	DryRun              bool
}

// DefaultOutput is the report path used when none is given.
func DefaultOutput(now time.Time) string {
	return "loadtest-report-" + now.UTC().Format("20060102T150405") + ".pb"
}

// Resolve validates f and loads every file it references, unless f.DryRun is
// set, in which case no file is read.
func Resolve(f Flags, now time.Time) (*Config, error) {
	headers, err := ParseHeaders(f.Headers)
	if err != nil {
		return nil, err
	}

	u, err := parseURL(f.URL)
	if err != nil {
		return nil, err
	}

	protocol, err := resolveProtocol(f.HTTP11, f.HTTP2PriorKnowledge)
	if err != nil {
		return nil, err
	}

	if f.UploadFile != "" && f.Data != nil {
		return nil, ErrUploadFileAndData
	}

	rate, err := ParseRate(f.RequestsPerSecond)
	if err != nil {
		return nil, err
	}

	if f.DurationSecs < 1 {
		return nil, ErrInvalidDuration
	}

	cfg := &Config{
		URL:               u,
		Headers:           headers,
		Insecure:          f.Insecure,
		CACertFile:        f.CACert,
		CertFile:          f.Cert,
		KeyFile:           f.Key,
		FollowRedirects:   f.Location,
		Protocol:          protocol,
		RequestsPerSecond: rate,
		Duration:          time.Duration(f.DurationSecs) * time.Second,
		Output:            f.Output,
		DryRun:            f.DryRun,
	}

	if f.MaxTimeSecs != nil {
		if *f.MaxTimeSecs < 1 {
			return nil, ErrInvalidMaxTime
		}
		cfg.Timeout = time.Duration(*f.MaxTimeSecs) * time.Second
	}

	if f.ConnectTimeoutSecs != nil {
		nanos := *f.ConnectTimeoutSecs * float64(time.Second)
		if math.IsNaN(nanos) || nanos < 0 || nanos >= math.MaxInt64 {
			return nil, ErrInvalidConnectTimeout
		}
		cfg.ConnectTimeout = time.Duration(nanos)
		cfg.HasConnectTimeout = true
	}

	if cfg.Output == "" {
		cfg.Output = DefaultOutput(now)
	}

	if err := resolvePayload(cfg, f); err != nil {
		return nil, err
	}

	if cfg.Method, err = resolveMethod(f); err != nil {
		return nil, err
	}

	if err := resolveTLS(cfg, f); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseHeaders parses repeated "Name: Value" lines, keeping their order.
func ParseHeaders(lines []string) ([]Header, error) {
	headers := make([]Header, 0, len(lines))
	for _, line := range lines {
		h, err := ParseHeader(line)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// ParseHeader parses a single "Name: Value" line.
func ParseHeader(line string) (Header, error) {
	line = strings.TrimSpace(line)
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return Header{}, fmt.Errorf("%w: %q", ErrInvalidHeaderFormat, line)
	}

	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	if !httpguts.ValidHeaderFieldName(name) {
		return Header{}, fmt.Errorf("%w in %q", ErrInvalidHeaderName, line)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return Header{}, fmt.Errorf("%w in %q", ErrInvalidHeaderValue, line)
	}

	return Header{Name: strings.ToLower(name), Value: value}, nil
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidURL, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w %q: missing scheme or host", ErrInvalidURL, raw)
	}
	if u.Path == "" && (u.Scheme == "http" || u.Scheme == "https") {
		u.Path = "/"
	}
	return u, nil
}

func resolveProtocol(http11, http2 bool) (Protocol, error) {
	switch {
	case http11 && http2:
		return 0, ErrMutuallyExclusiveProtocol
	case http11:
		return HTTP11, nil
	case http2:
		return HTTP2, nil
	default:
		return 0, ErrSpecifyProtocol
	}
}

func resolvePayload(cfg *Config, f Flags) error {
	if f.Data != nil {
		cfg.Payload = []byte(*f.Data)
		return nil
	}
	if f.UploadFile == "" {
		return nil
	}
	if f.DryRun {
		cfg.UploadFile = f.UploadFile
		return nil
	}

	data, err := readFile(f.UploadFile)
	if err != nil {
		return err
	}
	cfg.Payload = data
	return nil
}

func resolveMethod(f Flags) (string, error) {
	if f.Method != "" {
		if !httpguts.ValidHeaderFieldName(f.Method) {
			return "", fmt.Errorf("%w: %q", ErrInvalidMethod, f.Method)
		}
		return f.Method, nil
	}
	switch {
	case f.Data != nil:
		return "POST", nil
	case f.UploadFile != "":
		return "PUT", nil
	default:
		return "GET", nil
	}
}

func resolveTLS(cfg *Config, f Flags) error {
	switch {
	case f.Cert != "" && f.Key == "":
		return ErrCertWithoutKey
	case f.Key != "" && f.Cert == "":
		return ErrKeyWithoutCert
	}
	if f.DryRun {
		return nil
	}

	if f.Cert != "" {
		identity, err := LoadIdentity(f.Cert, f.Key)
		if err != nil {
			return err
		}
		cfg.Certificates = []tls.Certificate{identity}
	}

	if f.CACert != "" {
		pool, err := LoadRootCAs(f.CACert)
		if err != nil {
			return err
		}
		cfg.RootCAs = pool
	}
	return nil
}

// LoadIdentity reads a PEM certificate chain and its private key.
func LoadIdentity(certFile, keyFile string) (tls.Certificate, error) {
	certPEM, err := readFile(certFile)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyPEM, err := readFile(keyFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	identity, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %w", ErrParseIdentity, err)
	}
	return identity, nil
}

// LoadRootCAs reads a PEM bundle into a pool holding only those certificates.
func LoadRootCAs(path string) (*x509.CertPool, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w %q", ErrParseCACert, path)
	}
	return pool, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrReadFile, path, err)
	}
	return data, nil
}
