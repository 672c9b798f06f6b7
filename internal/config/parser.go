package config

import (
	"fmt"
	"strings"
)

// Parse reads configuration content as JSONC on top of base.
//
// Empty content yields base unchanged. Anything that is not a JSON object is rejected.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}

	normalized, err := normalizeJSONC(trimmed)
	if err != nil {
		return Config{}, nil, err
	}
	if !strings.HasPrefix(strings.TrimSpace(normalized), "{") {
		return Config{}, nil, fmt.Errorf("line 1: config must be a JSON object")
	}

	return parseJSONC(content, base)
}
