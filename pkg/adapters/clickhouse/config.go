package clickhouse

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/etlite/pkg/core"
)

// Default ports per protocol.
const (
	nativePort = 9000
	httpPort   = 8123
)

// Params holds ClickHouse-specific configuration, decoded from the target
// params in etlite.yaml.
type Params struct {
	// Protocol is "native" (default) or "http".
	Protocol string `mapstructure:"protocol"`
	// Secure enables TLS.
	Secure bool `mapstructure:"secure"`
	// DialTimeout is a duration such as "10s".
	DialTimeout string `mapstructure:"dial_timeout"`
	// Compression is "lz4", "zstd" or empty.
	Compression string `mapstructure:"compression"`
	// Settings are sent with every query.
	Settings map[string]any `mapstructure:"settings"`
}

// ParseParams decodes raw target params.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid clickhouse params: %w", err)
	}
	return p, nil
}

// buildOptions maps the target configuration onto driver options.
func buildOptions(cfg core.AdapterConfig) (*clickhouse.Options, error) {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return nil, err
	}

	opts := &clickhouse.Options{
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
		Settings:    clickhouse.Settings{},
	}

	port := cfg.Port
	switch params.Protocol {
	case "", "native":
		opts.Protocol = clickhouse.Native
		if port == 0 {
			port = nativePort
		}
	case "http":
		opts.Protocol = clickhouse.HTTP
		if port == 0 {
			port = httpPort
		}
	default:
		return nil, fmt.Errorf("invalid clickhouse params: unknown protocol %q", params.Protocol)
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	opts.Addr = []string{fmt.Sprintf("%s:%d", host, port)}

	if params.Secure {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if params.DialTimeout != "" {
		d, err := time.ParseDuration(params.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid clickhouse params: dial_timeout: %w", err)
		}
		opts.DialTimeout = d
	}

	switch params.Compression {
	case "":
	case "lz4":
		opts.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	case "zstd":
		opts.Compression = &clickhouse.Compression{Method: clickhouse.CompressionZSTD}
	default:
		return nil, fmt.Errorf("invalid clickhouse params: unknown compression %q", params.Compression)
	}

	for k, v := range params.Settings {
		opts.Settings[k] = v
	}
	return opts, nil
}
