package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitesearch/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitesearch"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxDepth is the number of link hops followed from the start URL.
	DefaultMaxDepth = model.DefaultMaxDepth

	// DefaultConcurrency is the number of pages fetched at the same time
	// during one search.
	DefaultConcurrency = 10

	// DefaultBatchSize is the number of start URLs searched at the same time
	// when several are given on the command line.
	DefaultBatchSize = 3

	// DefaultMaxPages of 0 means the crawl is bounded by depth only.
	DefaultMaxPages = 0

	// DefaultUserAgent identifies sitesearch in HTTP requests so that site
	// operators can recognise the traffic in their logs.
	DefaultUserAgent = "sitesearch/1.0 (+https://github.com/nao1215/sitesearch)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultRequestTimeout bounds a whole search started through the HTTP API.
	DefaultRequestTimeout = 2 * time.Minute

	// DefaultListenAddress is the address the HTTP API listens on.
	DefaultListenAddress = ":8080"

	// DefaultMarker is inserted before every occurrence of the query.
	DefaultMarker = "✅"
)

// Log formats accepted by --log-format.
const (
	LogFormatText    = "text"
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Config holds all configuration options for sitesearch.
// It is populated from CLI flags and passed down explicitly; there is no
// global configuration state.
type Config struct {
	// Targets are the start URLs to search.
	Targets []string

	// Query is the literal text searched for, matched case-insensitively.
	Query string

	// MaxDepth is the maximum number of link hops from a start URL.
	// Depth 0 means only the start page is fetched.
	MaxDepth int

	// Concurrency is the worker pool size of a single search.
	Concurrency int

	// BatchSize is the number of start URLs searched concurrently.
	BatchSize int

	// MaxPages caps the pages fetched per search. 0 means no cap.
	MaxPages int

	// Timeout is the timeout of each HTTP request.
	Timeout time.Duration

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default.
	MaxBodySize int64

	// Marker is inserted before each highlighted occurrence of Query.
	Marker string

	// Verbose enables debug logging. When false only warnings and errors
	// are logged.
	Verbose bool

	// LogFormat is one of LogFormatText, LogFormatJSON or LogFormatConsole.
	LogFormat string

	// ConfigFilePath is the path to the configuration file. If empty,
	// FindConfigFile decides.
	ConfigFilePath string

	// SiteConfigs holds per-host settings loaded from the config file.
	SiteConfigs *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to this path instead of stdout.
	ReportFile string

	// DBDir is the directory holding the search history database.
	// Defaults to the XDG data directory (~/.local/share/sitesearch on Linux).
	DBDir string

	// SaveToDB controls whether finished searches are recorded in the
	// history database.
	SaveToDB bool

	// ListenAddress is the address used by the serve command.
	ListenAddress string

	// RequestTimeout bounds each search served over HTTP.
	RequestTimeout time.Duration
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:       DefaultMaxDepth,
		Concurrency:    DefaultConcurrency,
		BatchSize:      DefaultBatchSize,
		MaxPages:       DefaultMaxPages,
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		Marker:         DefaultMarker,
		LogFormat:      LogFormatText,
		DBDir:          XDGDataDir(),
		SaveToDB:       true,
		ListenAddress:  DefaultListenAddress,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// XDGDataDir returns the XDG data directory for sitesearch.
// On Linux: ~/.local/share/sitesearch
// On macOS: ~/Library/Application Support/sitesearch
// On Windows: %LOCALAPPDATA%\sitesearch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitesearch.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the settings shared by every command and returns the
// first problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON, LogFormatConsole, "":
	default:
		return ErrInvalidLogFormat
	}

	return nil
}

// ValidateSearch runs Validate and additionally requires at least one
// target and a query, as the search command does.
func (c *Config) ValidateSearch() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Query == "" {
		return ErrNoQuery
	}

	return c.Validate()
}

// ValidateServe runs Validate and additionally checks the HTTP settings.
func (c *Config) ValidateServe() error {
	if c.ListenAddress == "" {
		return ErrNoListenAddress
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}

	return c.Validate()
}
