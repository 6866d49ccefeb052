package utils

import (
	"errors"
	"testing"

	"github.com/Trinoooo/eggie_net/errs"
	"github.com/stretchr/testify/assert"
)

func TestSafeCall(t *testing.T) {
	err := SafeCall(func() error {
		panic("haha")
	})
	assert.EqualValues(t, errs.UnknownErrCode, errs.GetCode(err))
	assert.Contains(t, err.Error(), "haha")

	plain := errors.New("plain")
	assert.Equal(t, plain, SafeCall(func() error { return plain }))
	assert.Nil(t, SafeCall(func() error { return nil }))
}
