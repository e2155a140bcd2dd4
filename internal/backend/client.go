// internal/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RawRecord is an undecoded backend record. Field extraction is the
// records package's concern; the client only moves JSON around.
type RawRecord map[string]any

// TenantToken is one entry of the refresh endpoint's token list.
type TenantToken struct {
	Tenant      string `json:"tenant"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// FilterQuery is the request body shared by the filter and find endpoints.
type FilterQuery struct {
	QueryTerm                string `json:"queryTerm"`
	RecordTemplateIdentifier string `json:"recordTemplateIdentifier"`
	Drop                     int    `json:"drop,omitempty"`
	Take                     int    `json:"take,omitempty"`
	LastChangedOnFrom        string `json:"lastChangedOnFrom"`
	LastChangedOnTo          string `json:"lastChangedOnTo"`
}

type FieldValue struct {
	Value        any    `json:"value"`
	ValuePreview string `json:"valuePreview"`
}

type FieldRow struct {
	Row    int          `json:"row"`
	Values []FieldValue `json:"values"`
}

type FieldUpdate struct {
	Identifier string     `json:"identifier"`
	Rows       []FieldRow `json:"rows"`
}

// RecordUpdate is the update endpoint's payload.
type RecordUpdate struct {
	RecordID int64         `json:"recordId"`
	Fields   []FieldUpdate `json:"fields"`
}

// StatusError is returned for any non-2xx backend response.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Detail)
}

// Client talks to the backend platform. Every call carries a bounded
// timeout via the underlying http.Client.
type Client struct {
	http *http.Client
	log  *zap.SugaredLogger
}

func NewClient(timeout time.Duration, log *zap.SugaredLogger) *Client {
	return &Client{http: &http.Client{Timeout: timeout}, log: log}
}

// RefreshTokens exchanges a refresh secret for the tenant token list.
func (c *Client) RefreshTokens(ctx context.Context, url, refreshToken string) ([]TenantToken, error) {
	var out struct {
		Tokens []TenantToken `json:"tokens"`
	}
	if err := c.putJSON(ctx, url, "", map[string]string{"refreshToken": refreshToken}, &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

// FilterRecords runs a filter query and returns the raw record page.
func (c *Client) FilterRecords(ctx context.Context, url, token string, q FilterQuery) ([]RawRecord, error) {
	var out []RawRecord
	if err := c.putJSON(ctx, url, token, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindRecords matches records by query term (barcode equality in practice).
// Same wire shape as FilterRecords, kept separate to mirror the platform API.
func (c *Client) FindRecords(ctx context.Context, url, token string, q FilterQuery) ([]RawRecord, error) {
	var out []RawRecord
	if err := c.putJSON(ctx, url, token, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRecord applies a field mutation to one record.
func (c *Client) UpdateRecord(ctx context.Context, url, token string, upd RecordUpdate) error {
	return c.putJSON(ctx, url, token, upd, nil)
}

// SignIn proxies the platform sign-in call so operators can obtain refresh
// tokens without talking to the platform directly. The response body is
// passed through untouched.
func (c *Client) SignIn(ctx context.Context, url, email, password string) (int, []byte, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

func (c *Client) putJSON(ctx context.Context, url, token string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Status: resp.StatusCode, Detail: string(detail)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
