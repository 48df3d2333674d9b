package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RequestIDFromContext(ctx))
	assert.Equal(t, ctx, ContextWithRequestID(ctx, ""))

	ctx = ContextWithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestInTxReusesContextTransaction(t *testing.T) {
	tx := &gorm.DB{}
	ctx := ContextWithTx(context.Background(), tx)
	assert.Same(t, tx, TxFromContext(ctx))
	assert.Same(t, tx, DBFromContext(ctx, nil))

	var got *gorm.DB
	err := InTx(ctx, nil, func(inner *gorm.DB) error {
		got = inner
		return nil
	})
	assert.NoError(t, err)
	assert.Same(t, tx, got)
}
