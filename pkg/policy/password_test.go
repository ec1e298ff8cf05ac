package policy_test

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developforgood/cycle-orchestrator/pkg/policy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGeneratePassword(t *testing.T) {
	t.Parallel()

	alphanumeric := regexp.MustCompile(`^[A-Za-z0-9]+$`)

	cases := []struct {
		name     string
		input    int
		wantLen  int
	}{
		{"below minimum clamps to 8", 7, 8},
		{"zero clamps to 8", 0, 8},
		{"above maximum clamps to 8", 65, 8},
		{"minimum boundary", 8, 8},
		{"maximum boundary", 64, 64},
		{"mid-range", 12, 12},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			pw, err := policy.GeneratePassword(context.Background(), discardLogger(), tc.input)
			require.NoError(t, err)
			assert.Len(t, pw, tc.wantLen)
			assert.True(t, alphanumeric.MatchString(pw), "password %q has non-alphanumeric characters", pw)
		})
	}

	t.Run("successive calls differ", func(t *testing.T) {
		t.Parallel()

		a, err := policy.GeneratePassword(context.Background(), discardLogger(), 16)
		require.NoError(t, err)
		b, err := policy.GeneratePassword(context.Background(), discardLogger(), 16)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}
