package topology

import (
	"context"

	"microgrid/domain/shared"
)

// Repository topology repository interface
type Repository interface {
	// NextIdentity Generate new topology ID
	NextIdentity() string

	// Save Insert or update the aggregate
	// Version() == 0 means create; otherwise update guarded by the version (optimistic lock)
	// Events are collected by the UoW, not by the repository
	Save(ctx context.Context, topology *MicrogridTopology) error

	// FindByID returns ErrTopologyNotFound when absent
	FindByID(ctx context.Context, id string) (*MicrogridTopology, error)

	// FindAll returns topologies satisfying spec; nil spec matches everything
	FindAll(ctx context.Context, spec shared.Specification[*MicrogridTopology]) ([]*MicrogridTopology, error)

	// Remove deletes the aggregate; ErrTopologyNotFound when absent
	Remove(ctx context.Context, id string) error
}
