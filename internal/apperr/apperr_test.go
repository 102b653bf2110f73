package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "plain error", err: base, want: KindInternal},
		{name: "direct", err: E(KindDataSource, "catalog.refresh", base), want: KindDataSource},
		{name: "wrapped twice", err: fmt.Errorf("outer: %w", E(KindDelivery, "send", base)), want: KindDelivery},
		{name: "stale sentinel", err: ErrStale, want: KindStaleReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestENilPassthrough(t *testing.T) {
	assert.NoError(t, E(KindDataSource, "op", nil))
	assert.False(t, Is(nil, KindInternal))
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := E(KindConfiguration, "config.validate", base)

	assert.ErrorIs(t, err, base)
	assert.Equal(t, "config.validate: configuration: boom", err.Error())
	assert.True(t, Is(err, KindConfiguration))
}
