package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"microgrid/domain/shared"
	"microgrid/domain/topology"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"topology not found", topology.NewTopologyNotFoundError("t1"), CodeTopologyNotFound},
		{"device not found", topology.NewDeviceNotFoundError("B1"), CodeDeviceNotFound},
		{"duplicate device", topology.NewDuplicateDeviceError("B1"), CodeDuplicateDevice},
		{"duplicate connection", topology.NewDuplicateConnectionError("c1", "same endpoints"), CodeDuplicateConn},
		{"device in use", topology.NewDeviceInUseError("B1", []string{"c1"}), CodeDeviceInUse},
		{"stale version", topology.NewConcurrentModificationError("t1"), CodeConcurrentModify},
		{"rule violation", topology.NewInvalidTopologyError("bus to bus"), CodeInvalidTopology},
		{"invalid device", topology.NewInvalidDeviceError("type", "unknown"), CodeInvalidDevice},
		{"shared not found", shared.NewNotFoundError("format", "xml"), CodeNotFound},
		{"shared conflict", shared.NewConflictError("topology", "exists"), CodeConflict},
		{"shared input", shared.NewValidationError("location", "latitude", "out of range"), CodeValidation},
		{"wrapped", fmt.Errorf("import: %w", topology.NewInvalidDeviceError("id", "empty")), CodeInvalidDevice},
		{"unknown", stdErrors.New("disk on fire"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDomainError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestFromDomainErrorValidationDetails(t *testing.T) {
	verr := topology.NewTopologyValidationError("t1", []string{"device B2 is isolated", "no bus"})

	got := FromDomainError(verr)

	assert.Equal(t, CodeTopologyValidation, got.Code)
	assert.Equal(t, "topology validation failed", got.Message)
	assert.Equal(t, []string{"device B2 is isolated", "no bus"}, got.Details)
}

func TestFromDomainErrorKeepsAppError(t *testing.T) {
	orig := New(CodeBadRequest, "missing name")
	assert.Same(t, orig, FromDomainError(fmt.Errorf("bind: %w", orig)))
	assert.Nil(t, FromDomainError(nil))
	assert.True(t, Is(orig, CodeBadRequest))
	assert.False(t, Is(stdErrors.New("x"), CodeBadRequest))
}
