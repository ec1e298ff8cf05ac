// Package workspacehttp is the default HTTP implementation of
// directorygw.Gateway, talking to a Google Workspace-shaped directory
// admin API on behalf of a service account principal.
package workspacehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/pkg/directorygw"
)

// Config holds connection parameters for the default directory gateway.
type Config struct {
	BaseURL             string        `env:"DIRECTORY_API_BASE_URL" envDefault:"https://admin.googleapis.com/admin/directory/v1"`
	ServiceAccountToken string        `env:"DIRECTORY_SERVICE_ACCOUNT_TOKEN,required"`
	MaxRetries          int           `env:"DIRECTORY_API_MAX_RETRIES" envDefault:"8"`
	RetryBase           time.Duration `env:"DIRECTORY_API_RETRY_BASE" envDefault:"250ms"`
}

// Client is the default directorygw.Gateway implementation.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

var _ directorygw.Gateway = (*Client)(nil)

// New constructs a Client. httpClient defaults to http.DefaultClient if nil.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

type createUserRequest struct {
	PrimaryEmail string   `json:"primaryEmail"`
	Name         nameBody `json:"name"`
	Password     string   `json:"password"`
	ChangePasswordAtNextLogin bool `json:"changePasswordAtNextLogin"`
	RecoveryEmail string   `json:"recoveryEmail"`
	OrgUnitPath   string   `json:"orgUnitPath"`
}

type nameBody struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

// CreateUser provisions a directory account. The provider is not
// idempotent: a duplicate primary email surfaces as
// domain.ErrDirectoryConflict, returned unwrapped.
func (c *Client) CreateUser(ctx context.Context, principal string, user directorygw.CreateUserParams) error {
	body, err := json.Marshal(createUserRequest{
		PrimaryEmail:              user.PrimaryEmail,
		Name:                      nameBody{GivenName: user.GivenName, FamilyName: user.FamilyName},
		Password:                  user.Password,
		ChangePasswordAtNextLogin: user.ChangePasswordAtNextLogin,
		RecoveryEmail:             user.RecoveryEmail,
		OrgUnitPath:               user.OrgUnitPath,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDirectoryTransport, err)
	}

	u := c.cfg.BaseURL + "/users"
	return c.do(ctx, http.MethodPost, u, principal, body, http.StatusConflict, domain.ErrDirectoryConflict)
}

// DeleteUser deprovisions a directory account by primary email.
func (c *Client) DeleteUser(ctx context.Context, principal string, primaryEmail string) error {
	u := fmt.Sprintf("%s/users/%s", c.cfg.BaseURL, primaryEmail)
	return c.do(ctx, http.MethodDelete, u, principal, nil, http.StatusNotFound, domain.ErrDirectoryNotFound)
}

// do performs one request, retrying on transport errors and the
// provider's 412/429 signals, and maps sentinelStatus to sentinelErr.
func (c *Client) do(ctx context.Context, method, url, principal string, body []byte, sentinelStatus int, sentinelErr error) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt, c.cfg.RetryBase); err != nil {
				return err
			}
		}

		var reqBody *bytes.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		} else {
			reqBody = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrDirectoryTransport, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceAccountToken)
		req.Header.Set("X-Acting-Principal", principal)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusPreconditionFailed {
			c.logger.InfoContext(ctx, "retrying directory request", slog.Int("status", resp.StatusCode))
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode == sentinelStatus {
			return sentinelErr
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%w: unexpected status %d", domain.ErrDirectoryTransport, resp.StatusCode)
		}
		return nil
	}
	return fmt.Errorf("%w: exhausted retries: %w", domain.ErrDirectoryTransport, lastErr)
}

func sleepBackoff(ctx context.Context, attempt int, base time.Duration) error {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
