package topology

import (
	"context"
	"fmt"

	"microgrid/domain/shared"
)

// ValidationChecks individual verdicts behind a ValidationReport
type ValidationChecks struct {
	ValidTopology       bool `json:"valid_topology"`
	CompleteTopology    bool `json:"complete_topology"`
	AllDevicesConnected bool `json:"all_devices_connected"`
}

// ValidationReport itemized result of Validator.Validate
type ValidationReport struct {
	IsValid bool             `json:"is_valid"`
	Errors  []string         `json:"errors"`
	Checks  ValidationChecks `json:"checks"`
}

// Validator collects every failed specification instead of stopping at the
// first one. Only ValidTopology and per-connection validity decide IsValid;
// completeness and connectivity are reported as checks.
type Validator struct {
	publisher    shared.DomainEventPublisher
	connectivity *ConnectivityAnalyzer

	valid      shared.Specification[*MicrogridTopology]
	complete   shared.Specification[*MicrogridTopology]
	connection shared.Specification[*Connection]
}

// NewValidator publisher may be nil, in which case no events are sent
func NewValidator(publisher shared.DomainEventPublisher) *Validator {
	return &Validator{
		publisher:    publisher,
		connectivity: NewConnectivityAnalyzer(),
		valid:        NewValidTopologySpecification(),
		complete:     NewCompleteTopologySpecification(),
		connection:   NewConnectionValidSpecification(),
	}
}

// Validate evaluates the topology. On failure it publishes
// TopologyValidationFailed and returns the report together with a
// *TopologyValidationError; on success it publishes TopologyValidated.
func (v *Validator) Validate(ctx context.Context, t *MicrogridTopology) (ValidationReport, error) {
	report := v.Evaluate(ctx, t)

	if !report.IsValid {
		if err := v.publish(NewTopologyValidationFailedEvent(t.id, report.Errors)); err != nil {
			return report, err
		}
		return report, NewTopologyValidationError(t.id, report.Errors)
	}

	if err := v.publish(NewTopologyValidatedEvent(t.id, report)); err != nil {
		return report, err
	}
	return report, nil
}

// Evaluate computes the report without publishing anything
func (v *Validator) Evaluate(ctx context.Context, t *MicrogridTopology) ValidationReport {
	report := ValidationReport{IsValid: true, Errors: make([]string, 0)}

	report.Checks.ValidTopology = v.valid.IsSatisfiedBy(ctx, t)
	if !report.Checks.ValidTopology {
		report.IsValid = false
		report.Errors = append(report.Errors, "Topology is invalid: missing devices or invalid connections")
	}

	for _, c := range t.orderedConnections() {
		if !v.connection.IsSatisfiedBy(ctx, c) {
			report.IsValid = false
			report.Errors = append(report.Errors,
				fmt.Sprintf("Invalid connection %s: source and target devices are the same", c.id))
		}
	}

	report.Checks.CompleteTopology = v.complete.IsSatisfiedBy(ctx, t)
	report.Checks.AllDevicesConnected = v.connectivity.CheckConnectivity(t).IsFullyConnected
	return report
}

func (v *Validator) publish(event shared.DomainEvent) error {
	if v.publisher == nil {
		return nil
	}
	if err := v.publisher.Publish(event); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventName(), err)
	}
	return nil
}
