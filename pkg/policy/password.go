package policy

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
)

const (
	minPasswordLength     = 8
	maxPasswordLength     = 64
	defaultPasswordLength = 8
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratePassword returns a uniformly random alphanumeric string of length
// n. If n falls outside [8, 64], a warning is logged through logger and an
// 8-character password is returned instead.
func GeneratePassword(ctx context.Context, logger *slog.Logger, n int) (string, error) {
	if n < minPasswordLength || n > maxPasswordLength {
		logger.WarnContext(ctx, "password length out of range, defaulting to 8 characters",
			slog.Int("requested_length", n),
		)
		n = defaultPasswordLength
	}

	out := make([]byte, n)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphanumeric[idx.Int64()]
	}
	return string(out), nil
}
