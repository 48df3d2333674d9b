package mysql

import (
	"testing"

	"microgrid/domain/shared"
	"microgrid/infrastructure/persistence/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryWiresPublisherAndRetry(t *testing.T) {
	bus := shared.NewEventBus()
	f := NewUnitOfWorkFactory(nil, retry.Disabled, bus)

	uow, ok := f.New().(*UnitOfWork)
	require.True(t, ok)
	assert.Same(t, bus, uow.publisher)
	assert.False(t, uow.retry.Enabled)
	assert.NotNil(t, uow.outbox)
	assert.NotSame(t, uow, f.New(), "each call returns a fresh unit of work")
}
