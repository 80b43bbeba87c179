package device

import (
	"time"

	domainDevice "facility-uptime-monitor/internal/domain/device"
)

type OutageQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

type SetMonitoredRequest struct {
	Monitored *bool `json:"monitored" binding:"required"`
}

type AddRecipientRequest struct {
	Campus  string `json:"campus" binding:"required,max=100"`
	Address string `json:"address" binding:"required,max=320"`
}

type DeviceResponse struct {
	Type                      string                      `json:"type"`
	DeviceID                  string                      `json:"deviceID"`
	DeviceName                string                      `json:"device_name,omitempty"`
	Campus                    string                      `json:"campus"`
	Power                     bool                        `json:"power"`
	Alarm                     bool                        `json:"alarm"`
	Monitored                 bool                        `json:"monitored"`
	Status                    domainDevice.Classification `json:"status"`
	LastStatusCheckTimestamp  int64                       `json:"lastStatusCheckTimestamp"`
	LastStatusChangeTimestamp int64                       `json:"lastStatusChangeTimestamp"`
	CurrentMonthUptime        *domainDevice.UptimeSummary `json:"currentMonthUptime,omitempty"`
	CreatedAt                 time.Time                   `json:"created_at"`
	UpdatedAt                 time.Time                   `json:"updated_at"`
}

// StatusCounts tallies classifications for a group of devices.
type StatusCounts struct {
	Total       int `json:"total"`
	Online      int `json:"online"`
	Offline     int `json:"offline"`
	Unmonitored int `json:"unmonitored"`
}

func (s *StatusCounts) add(class domainDevice.Classification) {
	s.Total++
	switch class {
	case domainDevice.ClassOnline:
		s.Online++
	case domainDevice.ClassOffline:
		s.Offline++
	case domainDevice.ClassUnmonitored:
		s.Unmonitored++
	}
}

type TypeGroup struct {
	Type    string           `json:"type"`
	Counts  StatusCounts     `json:"counts"`
	Devices []DeviceResponse `json:"devices"`
}

type CampusGroup struct {
	Campus string       `json:"campus"`
	Counts StatusCounts `json:"counts"`
	Types  []TypeGroup  `json:"types"`
}

type DeviceOverview struct {
	Counts   StatusCounts  `json:"counts"`
	Campuses []CampusGroup `json:"campuses"`
}

type OutageResponse struct {
	ID              string `json:"id"`
	Start           int64  `json:"start"`
	End             *int64 `json:"end"`
	Open            bool   `json:"open"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type UptimeSnapshotResponse struct {
	Period       string                     `json:"period"`
	Summary      domainDevice.UptimeSummary `json:"summary"`
	CalculatedAt int64                      `json:"calculated_at"`
}

func ToDeviceResponse(d *domainDevice.Device) DeviceResponse {
	return DeviceResponse{
		Type:                      d.Type,
		DeviceID:                  d.DeviceID,
		DeviceName:                d.DeviceName,
		Campus:                    d.Campus,
		Power:                     d.Power,
		Alarm:                     d.Alarm,
		Monitored:                 d.Monitored,
		Status:                    domainDevice.Classify(d),
		LastStatusCheckTimestamp:  d.LastStatusCheckAt,
		LastStatusChangeTimestamp: d.LastStatusChangeAt,
		CurrentMonthUptime:        d.CurrentMonthUptime,
		CreatedAt:                 d.CreatedAt,
		UpdatedAt:                 d.UpdatedAt,
	}
}

// ToOutageResponse measures open intervals up to now.
func ToOutageResponse(o *domainDevice.OutageInterval, now int64) OutageResponse {
	end := now
	if o.End != nil {
		end = *o.End
	}
	duration := end - o.Start
	if duration < 0 {
		duration = 0
	}
	return OutageResponse{
		ID:              o.ID,
		Start:           o.Start,
		End:             o.End,
		Open:            o.IsOpen(),
		DurationSeconds: duration,
	}
}
