// Package memory is an in-process store used for tests and single-node runs without a database.
package memory

import (
	"sync"

	domainDevice "facility-uptime-monitor/internal/domain/device"
)

// Store holds all state behind one RWMutex. The repositories are views over it.
type Store struct {
	mu         sync.RWMutex
	devices    map[domainDevice.Key]*domainDevice.Device
	intervals  map[domainDevice.Key][]*domainDevice.OutageInterval
	emailLog   map[domainDevice.Key]int64
	snapshots  map[domainDevice.Key]map[string]*domainDevice.UptimeSnapshot
	recipients map[string][]string
}

func NewStore() *Store {
	return &Store{
		devices:    make(map[domainDevice.Key]*domainDevice.Device),
		intervals:  make(map[domainDevice.Key][]*domainDevice.OutageInterval),
		emailLog:   make(map[domainDevice.Key]int64),
		snapshots:  make(map[domainDevice.Key]map[string]*domainDevice.UptimeSnapshot),
		recipients: make(map[string][]string),
	}
}

func (s *Store) Devices() *DeviceRepository {
	return &DeviceRepository{s: s}
}

func (s *Store) Outages() *OutageRepository {
	return &OutageRepository{s: s}
}

func (s *Store) EmailLog() *EmailLogRepository {
	return &EmailLogRepository{s: s}
}

func (s *Store) Uptime() *UptimeRepository {
	return &UptimeRepository{s: s}
}

func (s *Store) Recipients() *RecipientRepository {
	return &RecipientRepository{s: s}
}

func copyDevice(d *domainDevice.Device) *domainDevice.Device {
	c := *d
	if d.CurrentMonthUptime != nil {
		u := *d.CurrentMonthUptime
		c.CurrentMonthUptime = &u
	}
	return &c
}

func copyInterval(o *domainDevice.OutageInterval) *domainDevice.OutageInterval {
	c := *o
	if o.End != nil {
		e := *o.End
		c.End = &e
	}
	return &c
}
