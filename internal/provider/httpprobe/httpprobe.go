// Package httpprobe probes HTTP-based providers exposing a health endpoint.
package httpprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ratelens/ratelens/internal/core"
	"github.com/ratelens/ratelens/internal/provider"
)

const (
	defaultHealthPath = "/health"
	defaultInfoPath   = "/version"
	defaultTimeout    = 10 * time.Second
)

// Probe checks an HTTP provider endpoint. The zero value is not usable;
// BaseURL is required.
type Probe struct {
	Client     *http.Client
	BaseURL    string
	HealthPath string
	InfoPath   string

	// AuthToken is sent as a bearer credential when set.
	AuthToken string
	UserAgent string
}

// HealthCheck issues a GET against the provider's health path and classifies
// the response. Transport failures and non-success codes never surface as
// errors; they are folded into the returned status.
func (p *Probe) HealthCheck(ctx context.Context) (*provider.CheckResult, error) {
	if p == nil || strings.TrimSpace(p.BaseURL) == "" {
		return nil, errors.New("http probe is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	resp, err := p.get(ctx, p.healthPath())
	elapsed := time.Since(start)

	if err != nil {
		return &provider.CheckResult{
			Status:       provider.StatusUnreachable,
			ResponseTime: elapsed,
			Message:      err.Error(),
		}, nil
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	result := &provider.CheckResult{ResponseTime: elapsed}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		result.Status = provider.StatusAuthFailed
		result.Message = fmt.Sprintf("authentication rejected (%d)", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		result.Status = provider.StatusEndpointMissing
		result.Message = "health endpoint not found"
	case resp.StatusCode == http.StatusTooManyRequests:
		result.Status = provider.StatusOK
		if wait := RetryAfter(resp); wait > 0 {
			result.Message = fmt.Sprintf("rate limited, retry in %s", wait.Round(time.Second))
		} else {
			result.Message = "rate limited"
		}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Status = provider.StatusOK
		result.Message = healthMessage(resp)
	default:
		result.Status = provider.StatusUnreachable
		result.Message = fmt.Sprintf("unexpected health response (%d)", resp.StatusCode)
	}

	return result, nil
}

// ProviderInfo fetches version metadata from the provider's info path.
func (p *Probe) ProviderInfo(ctx context.Context) (*provider.Info, error) {
	if p == nil || strings.TrimSpace(p.BaseURL) == "" {
		return nil, errors.New("http probe is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := p.get(ctx, p.infoPath())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected info response (%d)", resp.StatusCode)
	}

	var payload struct {
		Version      string   `json:"version"`
		Capabilities []string `json:"capabilities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode info response: %w", err)
	}

	return &provider.Info{
		Version:      payload.Version,
		Capabilities: payload.Capabilities,
	}, nil
}

func (p *Probe) get(ctx context.Context, path string) (*http.Response, error) {
	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.ResolveReference(&url.URL{Path: path}).String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.AuthToken)
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return client.Do(req)
}

func (p *Probe) healthPath() string {
	if p.HealthPath != "" {
		return p.HealthPath
	}
	return defaultHealthPath
}

func (p *Probe) infoPath() string {
	if p.InfoPath != "" {
		return p.InfoPath
	}
	return defaultInfoPath
}

func healthMessage(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}

	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Status
}

// RetryAfter parses a Retry-After header as either seconds or an HTTP date.
func RetryAfter(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := resp.Header.Get("Retry-After")
	if retry == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retry); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}

	return 0
}

// PenaltyFromResponse builds the rate-limit signal for a throttled provider
// response, carrying any Retry-After hint.
func PenaltyFromResponse(resp *http.Response) core.PenaltyResponse {
	return core.PenaltyResponse{RetryAfter: RetryAfter(resp)}
}
