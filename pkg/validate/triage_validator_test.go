package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint_triage/core/domain"
	"complaint_triage/pkg/apperr"
)

func validSubmission() *domain.Submission {
	return &domain.Submission{
		Key:           "web-form-1",
		CustomerEmail: "ann@example.com",
		Subject:       "Late delivery",
		Body:          "Still waiting on order #123456",
	}
}

func TestStruct_Submission(t *testing.T) {
	require.NoError(t, Struct(validSubmission()))

	t.Run("missing body", func(t *testing.T) {
		s := validSubmission()
		s.Body = ""
		err := Struct(s)
		require.Error(t, err)
		appErr := apperr.AsAppError(err)
		assert.Equal(t, apperr.CodeMissingField, appErr.Code)
		assert.Equal(t, "body", appErr.Details["field"])
	})

	t.Run("bad email", func(t *testing.T) {
		s := validSubmission()
		s.CustomerEmail = "not-an-email"
		appErr := apperr.AsAppError(Struct(s))
		assert.Equal(t, apperr.CodeValidationFailed, appErr.Code)
		assert.Contains(t, appErr.Details, "customer_email")
	})

	t.Run("key too long", func(t *testing.T) {
		s := validSubmission()
		s.Key = strings.Repeat("k", 300)
		appErr := apperr.AsAppError(Struct(s))
		assert.Equal(t, apperr.CodeValidationFailed, appErr.Code)
		assert.Contains(t, appErr.Details, "key")
	})
}

func TestCustomTags(t *testing.T) {
	type req struct {
		Status string `json:"status" validate:"required,complaint_status"`
		Team   string `json:"team" validate:"omitempty,team"`
	}

	assert.NoError(t, Struct(&req{Status: "In Progress", Team: "Billing Team"}))

	appErr := apperr.AsAppError(Struct(&req{Status: "Closed", Team: "Management"}))
	assert.Equal(t, apperr.CodeValidationFailed, appErr.Code)
	assert.Contains(t, appErr.Details, "status")
	assert.Contains(t, appErr.Details, "team")
}
