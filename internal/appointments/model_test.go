package appointments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/hsm-appointments/internal/apperrors"
	"github.com/wolfman30/hsm-appointments/internal/session"
)

func TestAuthorFor(t *testing.T) {
	got, err := AuthorFor(session.RoleProvider)
	require.NoError(t, err)
	assert.Equal(t, Author("Doctor"), got)

	got, err = AuthorFor(session.RolePatient)
	require.NoError(t, err)
	assert.Equal(t, Author("Patient"), got)

	_, err = AuthorFor("")
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusCancelled, parseStatus("Cancelled"))
	assert.Equal(t, StatusCancelled, parseStatus("canceled"))
	assert.Equal(t, StatusScheduled, parseStatus("Scheduled"))
	assert.Equal(t, StatusScheduled, parseStatus(""))
}

func TestDraftValidate(t *testing.T) {
	assert.NoError(t, (&Draft{Date: "2024-01-15", Note: "checkup"}).Validate())
	assert.ErrorIs(t, (*Draft)(nil).Validate(), apperrors.ErrValidation)
	assert.ErrorIs(t, (&Draft{Date: "2024-02-30", Note: "x"}).Validate(), apperrors.ErrValidation)
}

func TestDraftReset(t *testing.T) {
	d := &Draft{Date: "2024-01-15", Note: "checkup", ProviderName: "Dr. House"}
	d.Reset()
	assert.Equal(t, Draft{}, *d)

	var nilDraft *Draft
	nilDraft.Reset()
}
