package handlers

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	appValidator "github.com/charlesng35/snippets/pkg/validator"
)

func TestValidationErrorKeysByJSONField(t *testing.T) {
	payload := struct {
		Name     string `json:"name" validate:"required"`
		Password string `json:"new_password" validate:"required,min=8"`
	}{Password: "short"}

	appErr := validationError(appValidator.ValidateStruct(payload))
	require.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	require.Equal(t, map[string]string{
		"name":         "name is required",
		"new_password": "new password must be at least 8 characters",
	}, appErr.Fields)
	require.Equal(t, "name is required; new password must be at least 8 characters", appErr.Message)
}

func TestValidationErrorForQueryValue(t *testing.T) {
	appErr := validationError(appValidator.Var("status", "maybe", "omitempty,oneof=pass warn fail"))
	require.Equal(t, "status must be one of pass, warn, fail", appErr.Fields["status"])
}

func TestValidationErrorWithoutDetails(t *testing.T) {
	appErr := validationError(stderrors.New("boom"))
	require.Equal(t, "invalid request payload", appErr.Message)
	require.Empty(t, appErr.Fields)
}
