package badges

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type SubmitResult struct {
	Badge    domain.PublicBadge `json:"badge"`
	IsUpdate bool               `json:"isUpdate"`
}

type Verdict struct {
	Valid  bool                `json:"valid"`
	Reason domain.RejectReason `json:"reason,omitempty"`
	Detail string              `json:"detail,omitempty"`
	DID    string              `json:"did"`
	Tier   string              `json:"tier,omitempty"`
}

// APIError is a non-2xx answer from the badge service. It unwraps to the
// matching domain error so callers can use errors.Is.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("badge service: status %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("badge service: %s: %s", e.Code, e.Message)
}

var codeErrors = map[string]error{
	"MALFORMED_CLAIM":       domain.ErrMalformedClaim,
	"IDENTIFIER_MISMATCH":   domain.ErrIdentifierMismatch,
	"SIGNATURE_INVALID":     domain.ErrSignatureInvalid,
	"STALE_SUBMISSION":      domain.ErrStaleSubmission,
	"UNKNOWN_GROUP":         domain.ErrUnknownGroup,
	"GROUP_INELIGIBLE":      domain.ErrGroupIneligible,
	"DID_MISMATCH":          domain.ErrDIDMismatch,
	"ACCOUNT_HASH_MISMATCH": domain.ErrAccountHashMismatch,
	"NOT_FOUND":             domain.ErrNotFound,
	"RATE_LIMITED":          domain.ErrRateLimited,
	"STORAGE_UNAVAILABLE":   domain.ErrStorageUnavailable,
}

func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}

// Submit posts a signed claim. The server answers with the stored public
// projection and whether an existing badge was updated.
func (c *Client) Submit(ctx context.Context, claim domain.Claim) (SubmitResult, error) {
	var out SubmitResult
	err := c.do(ctx, http.MethodPost, "/badges", claim, &out)
	return out, err
}

// Replace overwrites the signed figures of the badge stored for claim.DID.
func (c *Client) Replace(ctx context.Context, claim domain.Claim) (domain.PublicBadge, error) {
	var out struct {
		Badge domain.PublicBadge `json:"badge"`
	}
	err := c.do(ctx, http.MethodPut, "/badges/"+escapeDID(claim.DID), claim, &out)
	return out.Badge, err
}

func (c *Client) Get(ctx context.Context, did string) (domain.PublicBadge, error) {
	var out struct {
		Badge domain.PublicBadge `json:"badge"`
	}
	err := c.do(ctx, http.MethodGet, "/badges/"+escapeDID(did), nil, &out)
	return out.Badge, err
}

func (c *Client) List(ctx context.Context, group domain.GroupTag) ([]domain.PublicBadge, error) {
	path := "/badges"
	if group != "" {
		path += "?group=" + url.QueryEscape(string(group))
	}
	var out struct {
		Badges []domain.PublicBadge `json:"badges"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Badges, err
}

// Verify asks the server to check a claim without storing it.
func (c *Client) Verify(ctx context.Context, claim domain.Claim) (Verdict, error) {
	var out Verdict
	err := c.do(ctx, http.MethodPost, "/badges/verify", claim, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c == nil {
		return fmt.Errorf("badges client is nil")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("badge service base URL is required")
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	var payload struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Code == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	apiErr.Code = payload.Code
	apiErr.Message = payload.Message
	if retryable, ok := payload.Details["retryable"].(bool); ok {
		apiErr.Retryable = retryable
	}
	return apiErr
}

// escapeDID makes a did safe as one path segment. Base64 dids may contain
// "/" and "+".
func escapeDID(did string) string {
	return url.PathEscape(did)
}

// IsRetryable reports whether err is a server-side failure worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}
