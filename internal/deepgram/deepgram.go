// Package deepgram talks to the hosted speech recognition and synthesis APIs.
package deepgram

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// APIKeyEnv holds the secret for both listen and speak endpoints.
const APIKeyEnv = "DEEPGRAM_API_KEY"

// ErrMissingAPIKey indicates no credential was configured.
var ErrMissingAPIKey = errors.New("deepgram api key not found")

// APIKeyFromEnv reads the API key from the process environment.
func APIKeyFromEnv() (string, error) {
	key := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%w: set %s", ErrMissingAPIKey, APIKeyEnv)
	}
	return key, nil
}

func authHeader(apiKey string) string {
	return "Token " + apiKey
}
