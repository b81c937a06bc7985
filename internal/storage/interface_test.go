package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcoot/gaminghub/internal/model"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify(nil))

	wrapped := fmt.Errorf("apply: %w", model.ErrInsufficientFunds)
	assert.Same(t, wrapped, Classify(wrapped))
	assert.ErrorIs(t, Classify(model.ErrRoundNotFound), model.ErrRoundNotFound)

	err := Classify(errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "connection refused")

	assert.ErrorIs(t, Classify(context.DeadlineExceeded), model.ErrStoreUnavailable)
}
