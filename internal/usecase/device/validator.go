package device

import (
	domainDevice "facility-uptime-monitor/internal/domain/device"
	appErrors "facility-uptime-monitor/pkg/errors"
	"facility-uptime-monitor/pkg/utils"
)

const (
	DefaultOutageLimit = 10
	MaxOutageLimit     = 100
)

// ParseKey builds a device key from path parameters.
func ParseKey(deviceType, deviceID string) (domainDevice.Key, error) {
	key := domainDevice.Key{
		Type:     utils.SanitizeIdentifier(deviceType),
		DeviceID: utils.SanitizeIdentifier(deviceID),
	}
	if key.Type == "" || key.DeviceID == "" {
		return domainDevice.Key{}, domainDevice.ErrInvalidKey
	}
	return key, nil
}

// ClampOutageLimit applies the default and caps the result.
func ClampOutageLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultOutageLimit
	case limit > MaxOutageLimit:
		return MaxOutageLimit
	default:
		return limit
	}
}

func validateRecipient(req *AddRecipientRequest) (string, string, error) {
	campus := utils.SanitizeIdentifier(req.Campus)
	if campus == "" {
		return "", "", appErrors.NewAppError("VALIDATION_ERROR", "campus is required", appErrors.ErrMissingRequired)
	}
	address, err := utils.ValidateAndSanitizeEmail(req.Address)
	if err != nil {
		return "", "", appErrors.NewAppError("VALIDATION_ERROR", "address is not a valid email", appErrors.ErrInvalidInput)
	}
	return campus, address, nil
}
