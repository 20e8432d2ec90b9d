package service

import (
	"errors"
	"fmt"
	"testing"

	"protectbox/internal/mission"
	"protectbox/internal/store"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("load: %w", store.ErrNotFound), CodeNotFound},
		{fmt.Errorf("save: %w", store.ErrVersionConflict), CodeVersionConflict},
		{rejected("file", "already filed"), CodeGuardRejected},
		{mission.Result{Reason: "no"}.Err(), CodeGuardRejected},
		{invalid("nunc", "is required"), CodeValidationFailed},
		{errors.New("boom"), CodeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, Code(tc.err), tc.err.Error())
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"nunc": "is required", "documentNumber": "is required"}}
	assert.Equal(t, "validation failed: documentNumber: is required; nunc: is required", err.Error())
}
