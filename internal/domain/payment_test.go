package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReferenceID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ReferenceID
		wantErr bool
	}{
		{name: "session and user", raw: "sess123_user456", want: ReferenceID{SessionID: "sess123", UserID: "user456"}},
		{name: "empty", raw: "", wantErr: true},
		{name: "no separator", raw: "sess123user456", wantErr: true},
		{name: "three parts", raw: "sess_123_user456", wantErr: true},
		{name: "empty session", raw: "_user456", wantErr: true},
		{name: "empty user", raw: "sess123_", wantErr: true},
		{name: "separator only", raw: "_", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReferenceID(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewReferenceIDRejectsSeparatorInParts(t *testing.T) {
	_, err := NewReferenceID("sess_1", "user456")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewReferenceID("sess1", "user_456")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewReferenceID("", "user456")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReferenceIDRoundTrip(t *testing.T) {
	ref, err := NewReferenceID("3f1c9e2a", "user456")
	require.NoError(t, err)

	parsed, err := ParseReferenceID(ref.String())
	require.NoError(t, err)
	assert.Equal(t, ref, parsed)
}
