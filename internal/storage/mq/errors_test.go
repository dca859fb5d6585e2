package mq_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/catalogops/price-sync/internal/storage/mq"
)

func TestPermanent(t *testing.T) {
	assert.Nil(t, mq.Permanent(nil))

	cause := errors.New("empty product code")
	err := mq.Permanent(cause)

	assert.True(t, mq.IsPermanent(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "permanent: empty product code", err.Error())
}

func TestIsPermanentWrapped(t *testing.T) {
	err := fmt.Errorf("handle price changed event: %w", mq.Permanent(errors.New("bad payload")))
	assert.True(t, mq.IsPermanent(err))

	assert.False(t, mq.IsPermanent(errors.New("connection refused")))
}
