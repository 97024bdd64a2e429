// Package rdapprobe probes RDAP registry services via their help endpoint.
package rdapprobe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openrdap/rdap"

	"github.com/ratelens/ratelens/internal/provider"
)

// Probe checks an RDAP server. The help query is the lightest request an
// RDAP service answers, so it doubles as a connectivity and auth check.
type Probe struct {
	Client    *rdap.Client
	ServerURL string
	Timeout   time.Duration
}

// HealthCheck issues an RDAP help request and classifies the outcome.
func (p *Probe) HealthCheck(ctx context.Context) (*provider.CheckResult, error) {
	if p == nil || strings.TrimSpace(p.ServerURL) == "" {
		return nil, errors.New("rdap probe is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serverURL, err := url.Parse(p.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid rdap server url: %w", err)
	}

	client := p.Client
	if client == nil {
		client = &rdap.Client{}
	}

	req := rdap.NewHelpRequest().WithServer(serverURL)
	if p.Timeout > 0 {
		req.Timeout = p.Timeout
	}
	req = req.WithContext(ctx)

	start := time.Now()
	resp, reqErr := client.Do(req)
	elapsed := time.Since(start)

	result := &provider.CheckResult{ResponseTime: elapsed}
	statusCode := responseStatus(resp)

	switch {
	case reqErr == nil:
		result.Status = provider.StatusOK
		result.Message = "rdap help answered"
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		result.Status = provider.StatusAuthFailed
		result.Message = fmt.Sprintf("rdap authentication rejected (%d)", statusCode)
	case statusCode == http.StatusNotFound || isNotFound(reqErr):
		result.Status = provider.StatusEndpointMissing
		result.Message = "rdap help endpoint not found"
	default:
		result.Status = provider.StatusUnreachable
		result.Message = reqErr.Error()
	}

	return result, nil
}

// ProviderInfo reports the server's advertised RDAP conformance levels.
func (p *Probe) ProviderInfo(ctx context.Context) (*provider.Info, error) {
	if p == nil || strings.TrimSpace(p.ServerURL) == "" {
		return nil, errors.New("rdap probe is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serverURL, err := url.Parse(p.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid rdap server url: %w", err)
	}

	client := p.Client
	if client == nil {
		client = &rdap.Client{}
	}

	req := rdap.NewHelpRequest().WithServer(serverURL)
	if p.Timeout > 0 {
		req.Timeout = p.Timeout
	}
	req = req.WithContext(ctx)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	info := &provider.Info{Version: "rdap"}
	if help, ok := resp.Object.(*rdap.Help); ok && len(help.Conformance) > 0 {
		info.Capabilities = append([]string(nil), help.Conformance...)
		info.Version = help.Conformance[0]
	}

	return info, nil
}

func responseStatus(resp *rdap.Response) int {
	if resp == nil || len(resp.HTTP) == 0 || resp.HTTP[0] == nil || resp.HTTP[0].Response == nil {
		return 0
	}
	return resp.HTTP[0].Response.StatusCode
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	clientErr, ok := err.(*rdap.ClientError)
	if !ok {
		return false
	}

	return clientErr.Type == rdap.ObjectDoesNotExist
}
