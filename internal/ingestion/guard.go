package ingestion

import (
	"crypto/subtle"

	appErrors "facility-uptime-monitor/pkg/errors"
)

// Guard resolves the credential of a status report to the campus it reports for.
type Guard interface {
	Authorize(apiKey, deviceName string) (campus string, err error)
}

// APIKeyGuard accepts reports whose api_key matches a configured key. With no keys
// configured every report passes and is attributed to the default campus.
type APIKeyGuard struct {
	keys              map[string]string
	defaultCampus     string
	requireDeviceName bool
}

func NewAPIKeyGuard(keys map[string]string, defaultCampus string, requireDeviceName bool) *APIKeyGuard {
	copied := make(map[string]string, len(keys))
	for k, v := range keys {
		copied[k] = v
	}
	return &APIKeyGuard{keys: copied, defaultCampus: defaultCampus, requireDeviceName: requireDeviceName}
}

func (g *APIKeyGuard) Enabled() bool {
	return len(g.keys) > 0
}

func (g *APIKeyGuard) Authorize(apiKey, deviceName string) (string, error) {
	if !g.Enabled() {
		return g.defaultCampus, nil
	}
	if apiKey == "" {
		return "", appErrors.ErrMissingAPIKey
	}

	campus, ok := g.match(apiKey)
	if !ok {
		return "", appErrors.ErrInvalidAPIKey
	}
	if g.requireDeviceName && deviceName == "" {
		return "", &ValidationError{Field: "device_name", Message: "device_name is required"}
	}
	if campus == "" {
		campus = g.defaultCampus
	}
	return campus, nil
}

// match compares against every key in constant time.
func (g *APIKeyGuard) match(apiKey string) (string, bool) {
	var (
		campus string
		found  bool
	)
	for key, c := range g.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			campus, found = c, true
		}
	}
	return campus, found
}
