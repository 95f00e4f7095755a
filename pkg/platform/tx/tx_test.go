package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("nil tx leaves context untouched", func(t *testing.T) {
		got := WithTx(ctx, nil)
		_, ok := From(got)
		assert.False(t, ok)
	})

	t.Run("stored tx is retrievable", func(t *testing.T) {
		tx := &sql.Tx{}
		got, ok := From(WithTx(ctx, tx))
		assert.True(t, ok)
		assert.Same(t, tx, got)
	})

	t.Run("run reuses ambient tx", func(t *testing.T) {
		tx := &sql.Tx{}
		called := false
		err := Run(WithTx(ctx, tx), nil, func(inner context.Context) error {
			got, ok := From(inner)
			called = ok && got == tx
			return nil
		})
		assert.NoError(t, err)
		assert.True(t, called)
	})
}
