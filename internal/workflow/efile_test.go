package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

func TestResolveEfileNo(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		incoming string
		required bool
		want     string
		wantErr  string
	}{
		{name: "both empty optional", want: ""},
		{name: "both empty required", required: true, wantErr: "E-Office File No is required."},
		{name: "incoming sets", incoming: " EO-1 ", want: "EO-1"},
		{name: "existing wins when incoming empty", existing: "EO-1", required: true, want: "EO-1"},
		{name: "equal incoming is a no-op", existing: "EO-1", incoming: "EO-1", want: "EO-1"},
		{name: "different incoming rejected", existing: "EO-1", incoming: "EO-2", wantErr: "E-Office File No is already set. Editing is not allowed."},
		{name: "too long", incoming: strings.Repeat("x", MaxEfileLength+1), wantErr: "E-Office File No is too long."},
		{name: "limit counts characters", incoming: strings.Repeat("फ", MaxEfileLength), want: strings.Repeat("फ", MaxEfileLength)},
		{name: "multibyte over limit", incoming: strings.Repeat("फ", MaxEfileLength+1), wantErr: "E-Office File No is too long."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveEfileNo(tc.existing, tc.incoming, tc.required)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)
				assert.Equal(t, tc.wantErr, appErrors.FromError(err).Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
