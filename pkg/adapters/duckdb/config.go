package duckdb

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific target options, read from target.params.
type Params struct {
	// Extensions are installed and loaded on connect ("httpfs", "json").
	Extensions []string `mapstructure:"extensions"`

	// Secrets grant access to remote storage for read_csv/read_parquet.
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings are applied with SET on connect ("threads", "memory_limit").
	Settings map[string]string `mapstructure:"settings"`

	// ReadOnly opens the database file with access_mode=READ_ONLY so a
	// grid can browse a file another process is writing.
	ReadOnly bool `mapstructure:"read_only"`
}

// SecretConfig is one CREATE SECRET statement.
type SecretConfig struct {
	Type     string `mapstructure:"type"`     // s3, gcs, r2, azure
	Provider string `mapstructure:"provider"` // config, credential_chain
	Region   string `mapstructure:"region,omitempty"`

	// Scope is a string or a list of strings.
	Scope any `mapstructure:"scope,omitempty"`

	KeyID    string `mapstructure:"key_id,omitempty"`
	Secret   string `mapstructure:"secret,omitempty"`
	Endpoint string `mapstructure:"endpoint,omitempty"`
	URLStyle string `mapstructure:"url_style,omitempty"`
	UseSSL   *bool  `mapstructure:"use_ssl,omitempty"`
}

// parseParams decodes raw target params. YAML scalars are weakly typed, so
// `threads: 4` is accepted as the string setting "4".
func parseParams(raw map[string]any) (*Params, error) {
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
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}
