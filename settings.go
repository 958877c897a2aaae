package bookcache

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings is the environment-driven configuration of a Cache.
type Settings struct {
	// MaxBytes is the byte budget for cached content.
	MaxBytes int64 `env:"BOOKCACHE_MAX_BYTES,required"`

	// LoadMode is "serialized" or "coalesced".
	LoadMode LoadMode `env:"BOOKCACHE_LOAD_MODE" envDefault:"serialized"`

	// WarmConcurrency bounds parallel loads in Warm. Zero keeps the default.
	WarmConcurrency int `env:"BOOKCACHE_WARM_CONCURRENCY" envDefault:"4"`
}

// LoadSettings reads Settings from the environment.
//
// If paths are given, those .env files are loaded first and must exist.
// Otherwise a .env file in the working directory is loaded when present.
// Variables already set in the process environment win over file values.
func LoadSettings(paths ...string) (Settings, error) {
	if len(paths) > 0 {
		if err := godotenv.Load(paths...); err != nil {
			return Settings{}, fmt.Errorf("load env files: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, errors.Join(ErrParsingSettings, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports configuration errors.
func (s Settings) Validate() error {
	if s.MaxBytes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxBytes, s.MaxBytes)
	}
	if s.LoadMode != LoadSerialized && s.LoadMode != LoadCoalesced {
		return fmt.Errorf("invalid load mode: %s", s.LoadMode)
	}
	if s.WarmConcurrency < 0 {
		return fmt.Errorf("invalid warm concurrency: %d", s.WarmConcurrency)
	}
	return nil
}

// Options converts the settings into cache options.
func (s Settings) Options() []Option {
	return []Option{
		WithLoadMode(s.LoadMode),
		WithWarmConcurrency(s.WarmConcurrency),
	}
}
