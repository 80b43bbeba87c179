package device

import (
	"errors"

	appErrors "facility-uptime-monitor/pkg/errors"
)

var (
	ErrDeviceNotFound = appErrors.ErrDeviceNotFound
	ErrInvalidKey     = errors.New("device type and id are required")
)
