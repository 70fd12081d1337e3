package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 5, 6, 7, 8, 0, time.UTC)

func baseFlags() Flags {
	return Flags{
		URL:               "https://example.com",
		RequestsPerSecond: "1",
		DurationSecs:      10,
		HTTP11:            true,
	}
}

func ptr[T any](v T) *T { return &v }

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Header
		wantErr error
	}{
		{name: "simple", line: "Accept: application/json", want: Header{"accept", "application/json"}},
		{name: "trims", line: "  X-Trace :  abc  ", want: Header{"x-trace", "abc"}},
		{name: "value with colon", line: "X-Url: http://a:1", want: Header{"x-url", "http://a:1"}},
		{name: "empty value", line: "X-Empty:", want: Header{"x-empty", ""}},
		{name: "missing colon", line: "Accept application/json", wantErr: ErrInvalidHeaderFormat},
		{name: "bad name", line: "Bad Name: v", wantErr: ErrInvalidHeaderName},
		{name: "empty name", line: ": v", wantErr: ErrInvalidHeaderName},
		{name: "bad value", line: "X-Bad: a\x00b", wantErr: ErrInvalidHeaderValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeader(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		text    string
		u32     uint32
		wantErr bool
	}{
		{in: "1", text: "1", u32: 1},
		{in: "100", text: "100", u32: 100},
		{in: "0.5", text: "0.5", u32: 0},
		{in: "12.75", text: "12.75", u32: 12},
		{in: " 3 ", text: "3", u32: 3},
		{in: "-2", text: "-2", u32: 0},
		{in: "0", text: "0", u32: 0},
		{in: "99999999999", text: "99999999999", u32: 0},
		{in: "1/3", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
		{in: "1e3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseRate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.text, r.String())
			assert.Equal(t, tt.u32, r.Uint32())
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	cfg, err := Resolve(baseFlags(), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/", cfg.URL.String())
	assert.Equal(t, "GET", cfg.Method)
	assert.Equal(t, HTTP11, cfg.Protocol)
	assert.Equal(t, 10*time.Second, cfg.Duration)
	assert.Zero(t, cfg.Timeout)
	assert.False(t, cfg.HasConnectTimeout)
	assert.Nil(t, cfg.Payload)
	assert.Equal(t, "loadtest-report-20240305T060708.pb", cfg.Output)
}

func TestResolveMethod(t *testing.T) {
	dir := t.TempDir()
	upload := filepath.Join(dir, "body.bin")
	require.NoError(t, os.WriteFile(upload, []byte("file contents here"), 0o600))

	tests := []struct {
		name        string
		mutate      func(*Flags)
		wantMethod  string
		wantPayload []byte
		wantUpload  string
	}{
		{name: "default get", mutate: func(f *Flags) {}, wantMethod: "GET"},
		{name: "data posts", mutate: func(f *Flags) { f.Data = ptr("hello") }, wantMethod: "POST", wantPayload: []byte("hello")},
		{name: "empty data posts", mutate: func(f *Flags) { f.Data = ptr("") }, wantMethod: "POST", wantPayload: []byte{}},
		{name: "upload puts", mutate: func(f *Flags) { f.UploadFile = upload }, wantMethod: "PUT", wantPayload: []byte("file contents here")},
		{
			name:       "dry run upload keeps path only",
			mutate:     func(f *Flags) { f.UploadFile = "/does/not/exist"; f.DryRun = true },
			wantMethod: "PUT",
			wantUpload: "/does/not/exist",
		},
		{name: "explicit wins", mutate: func(f *Flags) { f.Data = ptr("x"); f.Method = "PATCH" }, wantMethod: "PATCH", wantPayload: []byte("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := baseFlags()
			tt.mutate(&f)

			cfg, err := Resolve(f, fixedNow)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, cfg.Method)
			assert.Equal(t, tt.wantPayload, cfg.Payload)
			assert.Equal(t, tt.wantUpload, cfg.UploadFile)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Flags)
		wantErr error
	}{
		{name: "bad header", mutate: func(f *Flags) { f.Headers = []string{"nocolon"} }, wantErr: ErrInvalidHeaderFormat},
		{name: "relative url", mutate: func(f *Flags) { f.URL = "/just/a/path" }, wantErr: ErrInvalidURL},
		{name: "garbage url", mutate: func(f *Flags) { f.URL = "http://[::1" }, wantErr: ErrInvalidURL},
		{name: "both protocols", mutate: func(f *Flags) { f.HTTP2PriorKnowledge = true }, wantErr: ErrMutuallyExclusiveProtocol},
		{name: "no protocol", mutate: func(f *Flags) { f.HTTP11 = false }, wantErr: ErrSpecifyProtocol},
		{name: "upload and data", mutate: func(f *Flags) { f.UploadFile = "x"; f.Data = ptr("y") }, wantErr: ErrUploadFileAndData},
		{name: "bad rate", mutate: func(f *Flags) { f.RequestsPerSecond = "fast" }, wantErr: ErrInvalidRate},
		{name: "zero duration", mutate: func(f *Flags) { f.DurationSecs = 0 }, wantErr: ErrInvalidDuration},
		{name: "zero max time", mutate: func(f *Flags) { f.MaxTimeSecs = ptr(int64(0)) }, wantErr: ErrInvalidMaxTime},
		{name: "negative connect timeout", mutate: func(f *Flags) { f.ConnectTimeoutSecs = ptr(-1.0) }, wantErr: ErrInvalidConnectTimeout},
		{name: "NaN connect timeout", mutate: func(f *Flags) { f.ConnectTimeoutSecs = ptr(math.NaN()) }, wantErr: ErrInvalidConnectTimeout},
		{name: "infinite connect timeout", mutate: func(f *Flags) { f.ConnectTimeoutSecs = ptr(math.Inf(1)) }, wantErr: ErrInvalidConnectTimeout},
		{name: "negative infinite connect timeout", mutate: func(f *Flags) { f.ConnectTimeoutSecs = ptr(math.Inf(-1)) }, wantErr: ErrInvalidConnectTimeout},
		{name: "overflowing connect timeout", mutate: func(f *Flags) { f.ConnectTimeoutSecs = ptr(1e10) }, wantErr: ErrInvalidConnectTimeout},
		{name: "cert without key", mutate: func(f *Flags) { f.Cert = "c.pem" }, wantErr: ErrCertWithoutKey},
		{name: "key without cert", mutate: func(f *Flags) { f.Key = "k.pem" }, wantErr: ErrKeyWithoutCert},
		{name: "missing upload", mutate: func(f *Flags) { f.UploadFile = "/does/not/exist" }, wantErr: ErrReadFile},
		{name: "missing cacert", mutate: func(f *Flags) { f.CACert = "/does/not/exist" }, wantErr: ErrReadFile},
		{name: "bad method", mutate: func(f *Flags) { f.Method = "GE T" }, wantErr: ErrInvalidMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := baseFlags()
			tt.mutate(&f)

			_, err := Resolve(f, fixedNow)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolveTimeouts(t *testing.T) {
	f := baseFlags()
	f.MaxTimeSecs = ptr(int64(30))
	f.ConnectTimeoutSecs = ptr(2.5)

	cfg, err := Resolve(f, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2500*time.Millisecond, cfg.ConnectTimeout)
	assert.True(t, cfg.HasConnectTimeout)
}

func TestResolveDryRunSkipsTLSFiles(t *testing.T) {
	f := baseFlags()
	f.DryRun = true
	f.CACert = "/does/not/exist/ca.pem"
	f.Cert = "/does/not/exist/cert.pem"
	f.Key = "/does/not/exist/key.pem"

	cfg, err := Resolve(f, fixedNow)
	require.NoError(t, err)
	assert.Nil(t, cfg.RootCAs)
	assert.Empty(t, cfg.Certificates)
	assert.Equal(t, "/does/not/exist/ca.pem", cfg.CACertFile)
}

func TestResolveLoadsTLS(t *testing.T) {
	certFile, keyFile := writeIdentity(t, t.TempDir())

	f := baseFlags()
	f.CACert = certFile
	f.Cert = certFile
	f.Key = keyFile

	cfg, err := Resolve(f, fixedNow)
	require.NoError(t, err)
	assert.NotNil(t, cfg.RootCAs)
	assert.Len(t, cfg.Certificates, 1)
}

func TestLoadRootCAsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	_, err := LoadRootCAs(path)
	assert.ErrorIs(t, err, ErrParseCACert)
}

func TestLoadIdentityMismatch(t *testing.T) {
	dir := t.TempDir()
	certFile, _ := writeIdentity(t, dir)
	other := filepath.Join(dir, "other")
	require.NoError(t, os.Mkdir(other, 0o700))
	_, otherKey := writeIdentity(t, other)

	_, err := LoadIdentity(certFile, otherKey)
	assert.ErrorIs(t, err, ErrParseIdentity)
}

func writeIdentity(t *testing.T, dir string) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "loadtest"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))

	return certFile, keyFile
}
