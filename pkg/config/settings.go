package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/NERVsystems/osmgender/pkg/osm"
)

// EnvPrefix prefixes every environment variable read by LoadSettings.
const EnvPrefix = "OSMGENDER_"

// Settings holds the process settings. Command line flags override them.
type Settings struct {
	// DataDir holds the cities/, process/ and output/ trees.
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// External services
	UserAgent     string  `env:"USER_AGENT"`
	OverpassURL   string  `env:"OVERPASS_URL"`
	WikidataURL   string  `env:"WIKIDATA_URL"`
	OverpassRPS   float64 `env:"OVERPASS_RPS"   envDefault:"0.5"`
	OverpassBurst int     `env:"OVERPASS_BURST" envDefault:"1"`
	WikidataRPS   float64 `env:"WIKIDATA_RPS"   envDefault:"5"`
	WikidataBurst int     `env:"WIKIDATA_BURST" envDefault:"5"`

	// WikidataConcurrency bounds parallel entity downloads.
	WikidataConcurrency int `env:"WIKIDATA_CONCURRENCY" envDefault:"4"`
	// CacheSize bounds the number of decoded entities kept in memory.
	CacheSize int `env:"CACHE_SIZE" envDefault:"4096"`
	// BuildConcurrency bounds parallel feature assembly, 0 means GOMAXPROCS.
	BuildConcurrency int `env:"BUILD_CONCURRENCY" envDefault:"0"`

	// MetricsFile receives a Prometheus textfile after batch commands.
	MetricsFile string `env:"METRICS_FILE"`

	// Tracing is exported over OTLP gRPC when OTLPEndpoint is set.
	OTLPEndpoint     string  `env:"OTLP_ENDPOINT"`
	Environment      string  `env:"ENVIRONMENT"        envDefault:"development"`
	TraceSampleRatio float64 `env:"TRACE_SAMPLE_RATIO" envDefault:"1"`

	// HTTP transport of the serve command
	HTTPAddr      string  `env:"HTTP_ADDR"       envDefault:":7082"`
	HTTPBaseURL   string  `env:"HTTP_BASE_URL"`
	HTTPToken     string  `env:"HTTP_TOKEN"`
	HTTPRateLimit float64 `env:"HTTP_RATE_LIMIT" envDefault:"10"`
	HTTPRateBurst int     `env:"HTTP_RATE_BURST" envDefault:"20"`
}

// LoadSettings reads the settings from the process environment.
func LoadSettings() (*Settings, error) {
	return parseSettings(env.Options{Prefix: EnvPrefix})
}

// LoadSettingsFrom reads the settings from environ instead of the process
// environment.
func LoadSettingsFrom(environ map[string]string) (*Settings, error) {
	return parseSettings(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func parseSettings(opts env.Options) (*Settings, error) {
	s := &Settings{}
	if err := env.ParseWithOptions(s, opts); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.UserAgent == "" {
		s.UserAgent = osm.UserAgent
	}
	if s.OverpassURL == "" {
		s.OverpassURL = osm.OverpassBaseURL
	}
	if s.WikidataURL == "" {
		s.WikidataURL = osm.WikidataBaseURL
	}
}

// Validate checks that limits are usable.
func (s *Settings) Validate() error {
	if s.OverpassRPS <= 0 || s.WikidataRPS <= 0 {
		return fmt.Errorf("config: rate limits must be positive")
	}
	if s.WikidataConcurrency < 1 {
		return fmt.Errorf("config: WIKIDATA_CONCURRENCY must be at least 1, got %d", s.WikidataConcurrency)
	}
	if s.HTTPRateLimit < 0 {
		return fmt.Errorf("config: HTTP_RATE_LIMIT must not be negative, got %v", s.HTTPRateLimit)
	}
	if s.TraceSampleRatio < 0 || s.TraceSampleRatio > 1 {
		return fmt.Errorf("config: TRACE_SAMPLE_RATIO must be within [0, 1], got %v", s.TraceSampleRatio)
	}
	if s.BuildConcurrency < 0 {
		return fmt.Errorf("config: BUILD_CONCURRENCY must not be negative, got %d", s.BuildConcurrency)
	}
	return nil
}
