package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator_Defaults(t *testing.T) {
	v := NewValidator(Limits{})
	assert.Equal(t, DefaultLimits(), v.Limits())
	assert.EqualValues(t, 10485760, v.Limits().MaxUploadBytes)
	assert.Equal(t, 5000, v.Limits().MaxTextChars)
}

func TestValidator_CheckUpload(t *testing.T) {
	v := NewValidator(Limits{MaxUploadBytes: 100})

	assert.NoError(t, v.CheckUpload(0))
	assert.NoError(t, v.CheckUpload(100))

	err := v.CheckUpload(101)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, CodeFileTooLarge, CodeOf(err))

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.EqualValues(t, 100, perr.Limit)
}

func TestValidator_CheckText(t *testing.T) {
	v := NewValidator(DefaultLimits())

	assert.NoError(t, v.CheckText(strings.Repeat("a", 5000)))
	// characters, not bytes
	assert.NoError(t, v.CheckText(strings.Repeat("ñ", 5000)))

	err := v.CheckText(strings.Repeat("a", 5001))
	assert.ErrorIs(t, err, ErrTextTooLong)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeTextTooLong, perr.Code)
	assert.EqualValues(t, 5000, perr.Limit)
	assert.Contains(t, perr.Message, "5000")

	for _, blank := range []string{"", "   ", "\n\t\r\n"} {
		err := v.CheckText(blank)
		assert.ErrorIs(t, err, ErrNoTextFound)
		assert.Equal(t, CodeNoTextFound, CodeOf(err))
	}
}

func TestValidator_LengthCheckedBeforeBlank(t *testing.T) {
	v := NewValidator(Limits{MaxTextChars: 3})

	err := v.CheckText("     ")
	assert.Equal(t, CodeTextTooLong, CodeOf(err))
}

func TestCodeOf_Internal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(assert.AnError))
	assert.Equal(t, CodeInternal, CodeOf(nil))
}
