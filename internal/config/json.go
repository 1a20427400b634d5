package config

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dmitrijs2005/exposurekit/internal/flagx"
)

// jsonConfig is the DTO for the JSON file. Durations accept either a
// string like "5m" or integer nanoseconds.
type jsonConfig struct {
	CDNBaseURL         string   `json:"cdn_base_url"`
	Countries          []string `json:"countries"`
	DatabaseDSN        string   `json:"database_dsn"`
	PublicKeyPath      string   `json:"public_key_path"`
	RiskRequestTimeout duration `json:"risk_request_timeout"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration value %s", string(data))
	}
}

// parseJson overlays cfg with values from the JSON file named by the -c
// or -config flag. Absent file path means no JSON is loaded. Read and
// decode errors panic; configuration is resolved once at startup and a
// broken file should be fatal.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.CDNBaseURL != "" {
		cfg.CDNBaseURL = jc.CDNBaseURL
	}
	if len(jc.Countries) > 0 {
		cfg.Countries = jc.Countries
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.PublicKeyPath != "" {
		cfg.PublicKeyPath = jc.PublicKeyPath
	}
	if jc.RiskRequestTimeout.Duration > 0 {
		cfg.RiskRequestTimeout = jc.RiskRequestTimeout.Duration
	}
}
