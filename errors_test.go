package adwatch_test

import (
	"errors"
	"testing"

	"github.com/bkuiper/adwatch"
	"github.com/stretchr/testify/assert"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := adwatch.Errorf(adwatch.ENOTFOUND, "listing %q not found", "123")

	assert.Equal(t, adwatch.ENOTFOUND, adwatch.ErrorCode(err))
	assert.Equal(t, "listing \"123\" not found", adwatch.ErrorMessage(err))
}

func TestErrorCode_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, adwatch.ErrorCode(nil))
}

func TestErrorCode_NonApplicationError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, adwatch.EINTERNAL, adwatch.ErrorCode(errors.New("boom")))
}

func TestErrorMessage_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, adwatch.ErrorMessage(nil))
}
