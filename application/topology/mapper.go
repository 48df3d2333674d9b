package topology

import (
	"microgrid/domain/shared"
	"microgrid/domain/topology"
)

func toTopologyResponse(t *topology.MicrogridTopology) *TopologyResponse {
	devices := t.Devices()
	conns := t.Connections()

	resp := &TopologyResponse{
		ID:              t.ID(),
		Name:            t.Name(),
		Description:     t.Description(),
		Status:          string(t.Status()),
		Version:         t.Version(),
		DeviceCount:     len(devices),
		ConnectionCount: len(conns),
		Devices:         make([]DeviceResponse, len(devices)),
		Connections:     make([]ConnectionResponse, len(conns)),
		CreatedAt:       t.CreatedAt(),
		UpdatedAt:       t.UpdatedAt(),
	}
	for i, d := range devices {
		resp.Devices[i] = toDeviceResponse(d)
	}
	for i, c := range conns {
		resp.Connections[i] = toConnectionResponse(c)
	}
	return resp
}

func toTopologySummary(t *topology.MicrogridTopology) *TopologySummary {
	return &TopologySummary{
		ID:              t.ID(),
		Name:            t.Name(),
		Description:     t.Description(),
		Status:          string(t.Status()),
		Version:         t.Version(),
		DeviceCount:     t.DeviceCount(),
		ConnectionCount: t.ConnectionCount(),
		CreatedAt:       t.CreatedAt(),
		UpdatedAt:       t.UpdatedAt(),
	}
}

func toDeviceResponse(d topology.Device) DeviceResponse {
	resp := DeviceResponse{
		ID:         d.ID(),
		Type:       string(d.Type()),
		Category:   d.Type().Category().String(),
		Properties: d.Properties().ToMap(),
		Active:     d.IsActive(),
	}
	if p, ok := d.Position(); ok {
		resp.Position = &PositionDTO{X: p.X(), Y: p.Y(), Z: p.Z()}
	}
	if l, ok := d.Location(); ok {
		resp.Location = &LocationDTO{Latitude: l.Latitude(), Longitude: l.Longitude(), Altitude: l.Altitude()}
	}
	return resp
}

func toConnectionResponse(c *topology.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:         c.ID(),
		SourceID:   c.SourceID(),
		TargetID:   c.TargetID(),
		Type:       string(c.Type()),
		Properties: c.Properties().ToMap(),
		Active:     c.IsActive(),
	}
}

func toValidationResponse(t *topology.MicrogridTopology, report topology.ValidationReport) *ValidationResponse {
	resp := &ValidationResponse{
		TopologyID: t.ID(),
		Status:     string(t.Status()),
		IsValid:    report.IsValid,
		Errors:     report.Errors,
	}
	resp.Checks.ValidTopology = report.Checks.ValidTopology
	resp.Checks.CompleteTopology = report.Checks.CompleteTopology
	resp.Checks.AllDevicesConnected = report.Checks.AllDevicesConnected
	return resp
}

func toDeviceOptions(pos *PositionDTO, loc *LocationDTO, active *bool) ([]topology.DeviceOption, error) {
	var opts []topology.DeviceOption
	if pos != nil {
		opts = append(opts, topology.WithPosition(shared.NewPosition3D(pos.X, pos.Y, pos.Z)))
	}
	if loc != nil {
		l, err := shared.NewLocation(loc.Latitude, loc.Longitude, loc.Altitude)
		if err != nil {
			return nil, err
		}
		opts = append(opts, topology.WithLocation(l))
	}
	if active != nil && !*active {
		opts = append(opts, topology.Inactive())
	}
	return opts, nil
}

func toDeviceUpdate(req UpdateDeviceRequest) (topology.DeviceUpdate, error) {
	var update topology.DeviceUpdate
	if req.Properties != nil {
		props := topology.NewProperties(req.Properties)
		update.Properties = &props
	}
	if req.Position != nil {
		p := shared.NewPosition3D(req.Position.X, req.Position.Y, req.Position.Z)
		update.Position = &p
	}
	if req.Location != nil {
		l, err := shared.NewLocation(req.Location.Latitude, req.Location.Longitude, req.Location.Altitude)
		if err != nil {
			return update, err
		}
		update.Location = &l
	}
	update.Active = req.Active
	return update, nil
}
