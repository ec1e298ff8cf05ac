package policy_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developforgood/cycle-orchestrator/pkg/policy"
)

func TestBuildEmail(t *testing.T) {
	t.Parallel()

	validFormat := regexp.MustCompile(`^[a-z0-9]+@volunteer\.example\.org$`)

	t.Run("first and last name with separator", func(t *testing.T) {
		t.Parallel()

		email, err := policy.BuildEmail("Jane", "Doe", policy.EmailConfig{
			UseFirstAndLastName: true,
			Separator:           ".",
			Domain:              "volunteer.example.org",
		})
		require.NoError(t, err)
		assert.Equal(t, "janedoe@volunteer.example.org", email)
	})

	t.Run("first name only", func(t *testing.T) {
		t.Parallel()

		email, err := policy.BuildEmail("Jane", "Doe", policy.EmailConfig{
			UseFirstAndLastName: false,
			Domain:              "volunteer.example.org",
		})
		require.NoError(t, err)
		assert.Equal(t, "jane@volunteer.example.org", email)
	})

	t.Run("strips non-alphanumeric separator and names", func(t *testing.T) {
		t.Parallel()

		email, err := policy.BuildEmail("Jane-Anne", "O'Doe", policy.EmailConfig{
			UseFirstAndLastName: true,
			Separator:           "_",
			Domain:              "volunteer.example.org",
		})
		require.NoError(t, err)
		assert.Equal(t, "janeanneodoe@volunteer.example.org", email)
	})

	t.Run("numeric suffix in range and matches P4 shape", func(t *testing.T) {
		t.Parallel()

		// A two-digit suffix with a non-zero first digit is exactly [10, 100).
		suffixInRange := regexp.MustCompile(`^janedoe[1-9][0-9]@volunteer\.example\.org$`)

		for range 50 {
			email, err := policy.BuildEmail("Jane", "Doe", policy.EmailConfig{
				UseFirstAndLastName:    true,
				AddUniqueNumericSuffix: true,
				Domain:                 "volunteer.example.org",
			})
			require.NoError(t, err)
			require.True(t, validFormat.MatchString(email), "email %q does not match P4 shape", email)
			require.True(t, suffixInRange.MatchString(email), "email %q has no suffix in [10, 100)", email)
		}
	})

	t.Run("deterministic without suffix", func(t *testing.T) {
		t.Parallel()

		e1, err := policy.BuildEmail("Jane", "Doe", policy.EmailConfig{UseFirstAndLastName: true, Domain: "x.org"})
		require.NoError(t, err)
		e2, err := policy.BuildEmail("Jane", "Doe", policy.EmailConfig{UseFirstAndLastName: true, Domain: "x.org"})
		require.NoError(t, err)
		assert.Equal(t, e1, e2)
	})
}
