// Package airtablehttp is the default HTTP implementation of
// sourcegw.Gateway. It talks to an Airtable-shaped tabular SaaS API: one
// base holds a Volunteers table and a Nonprofits table, each exposing
// multiple named views, and records are listed through an offset cursor.
package airtablehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/developforgood/cycle-orchestrator/internal/domain"
	"github.com/developforgood/cycle-orchestrator/pkg/sourcegw"
)

const (
	viewVolunteers       = "All Committed Student Volunteers - Active"
	viewMentors          = "All Committed Mentor Volunteers"
	viewMentorPairings   = "All Committed Mentor Volunteers - 1:1 Mentor-Mentee Pairings"
	nonprofitViewPrefix  = "Finalized"
	nonprofitViewSuffix  = "Nonprofit Projects"
)

// Config holds the connection parameters for the default source gateway.
type Config struct {
	BaseURL    string        `env:"SOURCE_API_BASE_URL" envDefault:"https://api.airtable.com/v0"`
	Token      string        `env:"SOURCE_API_TOKEN,required"`
	MaxRetries int           `env:"SOURCE_API_MAX_RETRIES" envDefault:"5"`
	RetryBase  time.Duration `env:"SOURCE_API_RETRY_BASE" envDefault:"250ms"`
}

// Client is the default sourcegw.Gateway implementation.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger

	// nonprofitView is resolved once per base via a metadata call that
	// finds the view matching the prefix/suffix rule; cached to avoid
	// repeating schema discovery on every fetch within a single import.
	nonprofitView string
}

var _ sourcegw.Gateway = (*Client)(nil)

// New constructs a Client. httpClient defaults to http.DefaultClient if nil.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

type listRecordsResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// ValidateSchema reports whether baseID exposes the tables, fields, and
// views the import pipeline requires.
func (c *Client) ValidateSchema(ctx context.Context, baseID string) (bool, error) {
	meta, err := c.getTableMeta(ctx, baseID)
	if err != nil {
		return false, err
	}

	var volunteers, nonprofits *tableMeta
	for i := range meta.Tables {
		switch meta.Tables[i].Name {
		case "Volunteers":
			volunteers = &meta.Tables[i]
		case "Nonprofits":
			nonprofits = &meta.Tables[i]
		}
	}
	if volunteers == nil || nonprofits == nil {
		return false, nil
	}

	requiredFields := []string{
		"First Name", "Last Name", "Email", "Phone", "Gender", "Ethnicity",
		"Age Range", "Nonprofits", "Company", "Job Title", "University",
		"LGBT", "Country", "State", "FLI", "Student Stage", "Majors",
		"Minors", "Hear About",
	}
	if !volunteers.hasFields(requiredFields) {
		return false, nil
	}

	requiredViews := []string{viewVolunteers, viewMentors, viewMentorPairings}
	for _, v := range requiredViews {
		if !volunteers.hasView(v) {
			return false, nil
		}
	}

	nonprofitView, ok := nonprofits.findView(nonprofitViewPrefix, nonprofitViewSuffix)
	if !ok {
		return false, nil
	}
	c.nonprofitView = nonprofitView

	return true, nil
}

type tableMeta struct {
	Name   string      `json:"name"`
	Fields []fieldMeta `json:"fields"`
	Views  []viewMeta  `json:"views"`
}

type fieldMeta struct {
	Name string `json:"name"`
}

type viewMeta struct {
	Name string `json:"name"`
}

func (t *tableMeta) hasFields(names []string) bool {
	have := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		have[f.Name] = true
	}
	for _, n := range names {
		if !have[n] {
			return false
		}
	}
	return true
}

func (t *tableMeta) hasView(name string) bool {
	for _, v := range t.Views {
		if v.Name == name {
			return true
		}
	}
	return false
}

func (t *tableMeta) findView(prefix, suffix string) (string, bool) {
	for _, v := range t.Views {
		if len(v.Name) >= len(prefix)+len(suffix) &&
			v.Name[:len(prefix)] == prefix &&
			v.Name[len(v.Name)-len(suffix):] == suffix {
			return v.Name, true
		}
	}
	return "", false
}

type tableMetaResponse struct {
	Tables []tableMeta `json:"tables"`
}

func (c *Client) getTableMeta(ctx context.Context, baseID string) (*tableMetaResponse, error) {
	u := fmt.Sprintf("%s/meta/bases/%s/tables", c.cfg.BaseURL, url.PathEscape(baseID))
	var out tableMetaResponse
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// listAll drains every page of table for view and returns the raw
// records. The List methods decode them; a record that fails to decode
// is logged and skipped rather than aborting the whole fetch.
func (c *Client) listAll(ctx context.Context, baseID, table, view string) ([]record, error) {
	var all []record
	offset := ""
	for {
		u := fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, baseID, url.PathEscape(table))
		q := url.Values{}
		q.Set("view", view)
		if offset != "" {
			q.Set("offset", offset)
		}

		var page listRecordsResponse
		if err := c.doJSON(ctx, http.MethodGet, u+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Records...)

		if page.Offset == "" {
			break
		}
		offset = page.Offset
	}
	return all, nil
}

// ListVolunteers fully drains the volunteers view.
func (c *Client) ListVolunteers(ctx context.Context, baseID string) ([]sourcegw.VolunteerRaw, error) {
	recs, err := c.listAll(ctx, baseID, "Volunteers", viewVolunteers)
	if err != nil {
		return nil, err
	}
	out := make([]sourcegw.VolunteerRaw, 0, len(recs))
	for _, r := range recs {
		v, err := decodeVolunteer(r.Fields)
		if err != nil {
			c.logger.WarnContext(ctx, "dropping malformed volunteer record",
				slog.String("record_id", r.ID), slog.String("error", err.Error()))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// ListMentors fully drains the mentors view. Mentor-role filtering
// ("Team Mentor") is the import pipeline's job, not the gateway's.
func (c *Client) ListMentors(ctx context.Context, baseID string) ([]sourcegw.MentorRaw, error) {
	recs, err := c.listAll(ctx, baseID, "Volunteers", viewMentors)
	if err != nil {
		return nil, err
	}
	out := make([]sourcegw.MentorRaw, 0, len(recs))
	for _, r := range recs {
		m, err := decodeMentor(r.Fields)
		if err != nil {
			c.logger.WarnContext(ctx, "dropping malformed mentor record",
				slog.String("record_id", r.ID), slog.String("error", err.Error()))
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ListNonprofits fully drains the nonprofit view selected by ValidateSchema.
func (c *Client) ListNonprofits(ctx context.Context, baseID string) ([]sourcegw.NonprofitRaw, error) {
	view := c.nonprofitView
	if view == "" {
		meta, err := c.getTableMeta(ctx, baseID)
		if err != nil {
			return nil, err
		}
		for i := range meta.Tables {
			if meta.Tables[i].Name == "Nonprofits" {
				if v, ok := meta.Tables[i].findView(nonprofitViewPrefix, nonprofitViewSuffix); ok {
					view = v
				}
			}
		}
	}
	if view == "" {
		return nil, fmt.Errorf("%w: no nonprofit view matches prefix/suffix rule", domain.ErrSchemaInvalid)
	}

	recs, err := c.listAll(ctx, baseID, "Nonprofits", view)
	if err != nil {
		return nil, err
	}
	out := make([]sourcegw.NonprofitRaw, 0, len(recs))
	for _, r := range recs {
		n, err := decodeNonprofit(r.Fields)
		if err != nil {
			c.logger.WarnContext(ctx, "dropping malformed nonprofit record",
				slog.String("record_id", r.ID), slog.String("error", err.Error()))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// ListMentorMenteePairings fully drains the mentor-mentee pairings view.
func (c *Client) ListMentorMenteePairings(ctx context.Context, baseID string) ([]sourcegw.MentorMenteePairingRaw, error) {
	recs, err := c.listAll(ctx, baseID, "Volunteers", viewMentorPairings)
	if err != nil {
		return nil, err
	}
	out := make([]sourcegw.MentorMenteePairingRaw, 0, len(recs))
	for _, r := range recs {
		p, err := decodePairing(r.Fields)
		if err != nil {
			c.logger.WarnContext(ctx, "dropping malformed pairing record",
				slog.String("record_id", r.ID), slog.String("error", err.Error()))
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// doJSON performs an HTTP request with the provider's Bearer token,
// retrying on transport errors and 429 with exponential backoff, and
// decodes a successful body into out.
func (c *Client) doJSON(ctx context.Context, method, rawURL string, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := backoff(ctx, attempt, c.cfg.RetryBase); err != nil {
				return err
			}
		}

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
		if err != nil {
			return fmt.Errorf("%w: %w", sourcegw.ErrTransport, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if retryable(resp, err) {
			lastErr = err
			if resp != nil {
				resp.Body.Close()
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %w", sourcegw.ErrTransport, err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return sourcegw.ErrUnauthorized
		case http.StatusNotFound:
			return sourcegw.ErrNotFound
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%w: unexpected status %d", sourcegw.ErrTransport, resp.StatusCode)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %w", sourcegw.ErrDecode, err)
		}
		return nil
	}
	return fmt.Errorf("%w: exhausted retries: %w", sourcegw.ErrTransport, lastErr)
}
