package device

import (
	"context"
	"sort"
	"time"

	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/internal/observability/metrics"

	"go.uber.org/zap"
)

// Service implements the dashboard read model and the admin operations on devices.
type Service struct {
	devices    domainDevice.StateRepository
	outages    domainDevice.OutageRepository
	uptime     domainDevice.UptimeRepository
	recipients domainDevice.RecipientRepository
	now        func() time.Time
}

func NewService(
	devices domainDevice.StateRepository,
	outages domainDevice.OutageRepository,
	uptime domainDevice.UptimeRepository,
	recipients domainDevice.RecipientRepository,
) *Service {
	return &Service{
		devices:    devices,
		outages:    outages,
		uptime:     uptime,
		recipients: recipients,
		now:        time.Now,
	}
}

// Overview groups every device by campus, then by normalized type.
func (s *Service) Overview(ctx context.Context) (*DeviceOverview, error) {
	devices, err := s.devices.List(ctx)
	if err != nil {
		return nil, err
	}

	overview := &DeviceOverview{Campuses: []CampusGroup{}}
	campusIdx := map[string]int{}
	typeIdx := map[string]map[string]int{}
	classes := map[string]int{}

	for _, d := range devices {
		resp := ToDeviceResponse(d)
		class := resp.Status
		classes[string(class)]++
		overview.Counts.add(class)

		ci, ok := campusIdx[d.Campus]
		if !ok {
			ci = len(overview.Campuses)
			campusIdx[d.Campus] = ci
			typeIdx[d.Campus] = map[string]int{}
			overview.Campuses = append(overview.Campuses, CampusGroup{Campus: d.Campus})
		}
		campus := &overview.Campuses[ci]
		campus.Counts.add(class)

		normalized := domainDevice.NormalizeType(d.Type)
		ti, ok := typeIdx[d.Campus][normalized]
		if !ok {
			ti = len(campus.Types)
			typeIdx[d.Campus][normalized] = ti
			campus.Types = append(campus.Types, TypeGroup{Type: normalized})
		}
		group := &campus.Types[ti]
		group.Counts.add(class)
		group.Devices = append(group.Devices, resp)
	}

	sort.Slice(overview.Campuses, func(i, j int) bool {
		return overview.Campuses[i].Campus < overview.Campuses[j].Campus
	})
	for i := range overview.Campuses {
		types := overview.Campuses[i].Types
		sort.Slice(types, func(a, b int) bool { return types[a].Type < types[b].Type })
		for t := range types {
			devs := types[t].Devices
			sort.Slice(devs, func(a, b int) bool { return devs[a].DeviceID < devs[b].DeviceID })
		}
	}

	metrics.SetDeviceClasses(classes)
	return overview, nil
}

func (s *Service) GetDevice(ctx context.Context, key domainDevice.Key) (*DeviceResponse, error) {
	d, err := s.devices.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	resp := ToDeviceResponse(d)
	return &resp, nil
}

// RecentOutages returns the newest intervals first. The device must exist.
func (s *Service) RecentOutages(ctx context.Context, key domainDevice.Key, limit int) ([]OutageResponse, error) {
	if _, err := s.devices.Get(ctx, key); err != nil {
		return nil, err
	}

	intervals, err := s.outages.ListRecent(ctx, key, ClampOutageLimit(limit))
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	out := make([]OutageResponse, 0, len(intervals))
	for _, interval := range intervals {
		out = append(out, ToOutageResponse(interval, now))
	}
	return out, nil
}

// UptimeHistory returns archived monthly snapshots, oldest period first.
func (s *Service) UptimeHistory(ctx context.Context, key domainDevice.Key) ([]UptimeSnapshotResponse, error) {
	if _, err := s.devices.Get(ctx, key); err != nil {
		return nil, err
	}

	snapshots, err := s.uptime.List(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make([]UptimeSnapshotResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		out = append(out, UptimeSnapshotResponse{
			Period:       snap.Period,
			Summary:      snap.Summary,
			CalculatedAt: snap.CalculatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

// SetMonitored changes only the display classification; outage accounting is unaffected.
func (s *Service) SetMonitored(ctx context.Context, key domainDevice.Key, monitored bool) (*DeviceResponse, error) {
	d, err := s.devices.SetMonitored(ctx, key, monitored)
	if err != nil {
		return nil, err
	}

	logger.WithDevice(key.Type, key.DeviceID).Info("Device monitoring changed",
		zap.String("event", "device_monitored_changed"),
		zap.Bool("monitored", monitored),
	)

	resp := ToDeviceResponse(d)
	return &resp, nil
}

func (s *Service) ListRecipients(ctx context.Context, campus string) ([]string, error) {
	return s.recipients.ListAddresses(ctx, campus)
}

func (s *Service) AddRecipient(ctx context.Context, req *AddRecipientRequest) error {
	campus, address, err := validateRecipient(req)
	if err != nil {
		return err
	}
	if err := s.recipients.AddAddress(ctx, campus, address); err != nil {
		return err
	}

	logger.Info("Alert recipient added",
		zap.String("event", "recipient_added"),
		zap.String("campus", campus),
	)
	return nil
}
