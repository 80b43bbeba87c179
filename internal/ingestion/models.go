package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// StatusReportMessage is the wire form of a status ping, shared by HTTP and MQTT.
// The campus is never taken from the body; it follows the API key.
// Power and Alarm are pointers so a missing field can be told apart from false.
type StatusReportMessage struct {
	DeviceID   string `json:"deviceID" validate:"required,max=255"`
	Type       string `json:"type" validate:"required,max=100"`
	Power      *bool  `json:"power" validate:"required"`
	Alarm      *bool  `json:"alarm" validate:"required"`
	DeviceName string `json:"device_name" validate:"max=255"`
	APIKey     string `json:"api_key"`
}

// ParseStatusReport decodes a payload. Wrong JSON types become a ValidationError
// naming the offending field.
func ParseStatusReport(payload []byte) (*StatusReportMessage, error) {
	var msg StatusReportMessage

	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&msg); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr):
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			return nil, &ValidationError{Field: field, Message: field + " has the wrong type, expected " + typeErr.Type.String()}
		case errors.Is(err, io.EOF):
			return nil, &ValidationError{Field: "body", Message: "request body is empty"}
		default:
			return nil, &ValidationError{Field: "body", Message: "request body is not valid JSON"}
		}
	}

	msg.DeviceID = strings.TrimSpace(msg.DeviceID)
	msg.Type = strings.TrimSpace(msg.Type)
	msg.DeviceName = strings.TrimSpace(msg.DeviceName)
	msg.APIKey = strings.TrimSpace(msg.APIKey)

	return &msg, nil
}
