// Package persistence 仓储共用的 context 约定：事务句柄和请求 ID
package persistence

import (
	"context"

	"gorm.io/gorm"
)

type (
	txKey        struct{}
	requestIDKey struct{}
)

func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext 没有事务返回 nil
func TxFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

// DBFromContext UoW 内取事务，UoW 外取绑定 ctx 的连接
func DBFromContext(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}

// InTx 已在事务中则直接复用，否则开一个新事务
func InTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		return fn(tx)
	}
	return db.WithContext(ctx).Transaction(fn)
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
