package models

import (
	"time"
)

// DeviceModel represents the database model for devices.
type DeviceModel struct {
	Type               string    `gorm:"type:varchar(100);primaryKey"`
	DeviceID           string    `gorm:"type:varchar(255);primaryKey"`
	DeviceName         string    `gorm:"type:varchar(255)"`
	Campus             string    `gorm:"type:varchar(100);index"`
	Power              bool      `gorm:"not null"`
	Alarm              bool      `gorm:"not null"`
	Monitored          bool      `gorm:"not null"`
	LastStatusCheckAt  int64     `gorm:"column:last_status_check_ts;not null"`
	LastStatusChangeAt int64     `gorm:"column:last_status_change_ts;not null"`
	UptimeTotalHours   *float64  `gorm:"column:uptime_total_hours"`
	UptimeOfflineHours *float64  `gorm:"column:uptime_total_offline_hours"`
	UptimeHours        *float64  `gorm:"column:uptime_hours"`
	UptimePercentage   *float64  `gorm:"column:uptime_percentage"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

func (DeviceModel) TableName() string {
	return "devices"
}

// OutageIntervalModel is one row of the outage log. EndTS is NULL while open.
type OutageIntervalModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Type      string `gorm:"type:varchar(100);not null;index:idx_outage_device,priority:1"`
	DeviceID  string `gorm:"type:varchar(255);not null;index:idx_outage_device,priority:2"`
	StartTS   int64  `gorm:"column:start_ts;not null;index:idx_outage_device,priority:3"`
	EndTS     *int64 `gorm:"column:end_ts"`
	CreatedAt time.Time
}

func (OutageIntervalModel) TableName() string {
	return "outage_intervals"
}

type EmailLogModel struct {
	Type        string `gorm:"type:varchar(100);primaryKey"`
	DeviceID    string `gorm:"type:varchar(255);primaryKey"`
	LastEmailTS int64  `gorm:"column:last_email_ts;not null"`
	UpdatedAt   time.Time
}

func (EmailLogModel) TableName() string {
	return "email_logs"
}

type UptimeSnapshotModel struct {
	Type              string  `gorm:"type:varchar(100);primaryKey"`
	DeviceID          string  `gorm:"type:varchar(255);primaryKey"`
	Period            string  `gorm:"type:char(7);primaryKey"`
	TotalHours        float64 `gorm:"not null"`
	TotalOfflineHours float64 `gorm:"not null"`
	UptimeHours       float64 `gorm:"not null"`
	UptimePercentage  float64 `gorm:"not null"`
	CalculatedAt      int64   `gorm:"column:calculated_at_ts;not null"`
}

func (UptimeSnapshotModel) TableName() string {
	return "uptime_snapshots"
}

type AlertEmailModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Campus    string `gorm:"type:varchar(100);not null;uniqueIndex:idx_alert_campus_address,priority:1"`
	Address   string `gorm:"type:varchar(320);not null;uniqueIndex:idx_alert_campus_address,priority:2"`
	CreatedAt time.Time
}

func (AlertEmailModel) TableName() string {
	return "alert_emails"
}
