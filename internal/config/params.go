package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// ErrParamsFile means the parameter override file could not be used.
var ErrParamsFile = errors.New("invalid params file")

// LoadParamOverrides reads a YAML, JSON or TOML file mapping indicator ids to
// parameter values, for example:
//
//	a1c-target:
//	  target: 0.07
//	egfr-target:
//	  min: 50
//
// An empty path yields no overrides.
func LoadParamOverrides(path string) (map[string]map[string]float64, error) {
	if path == "" {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrParamsFile, path, err)
	}

	out := make(map[string]map[string]float64)
	if err := v.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrParamsFile, path, err)
	}
	return out, nil
}
