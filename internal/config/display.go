package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// FormatArgs renders the resolved arguments as plain text. The same text is
// printed before every run and is the whole output of a dry run.
func FormatArgs(cfg *Config) string {
	return formatArgs(cfg, func(s string) string { return s })
}

// RenderArgs is FormatArgs with the labels styled for a terminal.
func RenderArgs(cfg *Config) string {
	bold := lipgloss.NewStyle().Bold(true)
	return formatArgs(cfg, func(s string) string { return bold.Render(s) })
}

func formatArgs(cfg *Config, label func(string) string) string {
	var b strings.Builder

	line := func(name, format string, args ...any) {
		fmt.Fprintf(&b, "  %s: %s\n", label(name), fmt.Sprintf(format, args...))
	}

	b.WriteString(label("Arguments") + "\n")

	line("URL", "%s", cfg.URL)
	fmt.Fprintf(&b, "  %s\n", label("Headers:"))
	for _, h := range cfg.Headers {
		fmt.Fprintf(&b, "    %s: %s\n", h.Name, h.Value)
	}
	line("Insecure", "%t", cfg.Insecure)
	line("Method", "%s", cfg.Method)

	if cfg.CACertFile != "" {
		line("CA certificate file", "%s", cfg.CACertFile)
	}
	if cfg.CertFile != "" {
		line("Certificate file ", "%s", cfg.CertFile)
	}
	if cfg.KeyFile != "" {
		line("Key file", "%s", cfg.KeyFile)
	}

	line("Follow redirects", "%t", cfg.FollowRedirects)
	line("Throughput", "%s requests/second", cfg.RequestsPerSecond)
	line("Load test duration", "%d seconds", wholeSeconds(cfg.Duration))
	if cfg.Timeout > 0 {
		line("Request timeout", "%d seconds", wholeSeconds(cfg.Timeout))
	}
	if cfg.HasConnectTimeout {
		line("Connection timeout", "%d seconds", wholeSeconds(cfg.ConnectTimeout))
	}

	line("Output file", "%s", cfg.Output)
	line("Protocol", "%s", cfg.Protocol)
	line("Request body size", "%d bytes", len(cfg.Payload))
	if cfg.UploadFile != "" {
		line("Upload file", "%s", cfg.UploadFile)
	}

	return b.String()
}

func wholeSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
