package policy

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
)

// EmailConfig shapes how BuildEmail derives a workspace handle from a
// volunteer's names. Domain is the fixed deployment suffix appended after
// the handle, e.g. "volunteer.example.org" (without the leading "@").
type EmailConfig struct {
	UseFirstAndLastName    bool
	AddUniqueNumericSuffix bool
	Separator              string
	Domain                 string
}

// BuildEmail derives a workspace email handle from firstName and lastName
// per cfg. It is deterministic except for the numeric suffix, which is
// drawn uniformly from [10, 100).
func BuildEmail(firstName, lastName string, cfg EmailConfig) (string, error) {
	first := strings.ToLower(firstName)
	last := strings.ToLower(lastName)

	var base string
	if cfg.UseFirstAndLastName {
		base = first + cfg.Separator + last
	} else {
		base = first
	}

	if cfg.AddUniqueNumericSuffix {
		suffix, err := randomSuffix()
		if err != nil {
			return "", err
		}
		base += suffix
	}

	handle := filterAlphanumeric(base)
	return handle + "@" + cfg.Domain, nil
}

// randomSuffix draws a uniform integer in [10, 100) and renders it as
// decimal text, matching the two-digit suffix the original policy used.
func randomSuffix() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90))
	if err != nil {
		return "", err
	}
	return strconv.Itoa(int(n.Int64()) + 10), nil
}

func filterAlphanumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
