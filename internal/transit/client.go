package transit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"bustiming.sgbus.dev/internal/config"
	"bustiming.sgbus.dev/internal/metrics"
	"bustiming.sgbus.dev/internal/models"
	"bustiming.sgbus.dev/internal/report"
)

const (
	arrivalPath = "/api/bus-arrival"
	stopsPath   = "/api/bus-stops"

	// maxBodyBytes caps how much of a proxy response is read; a full stops
	// page is well under 200 KiB.
	maxBodyBytes = 4 << 20
)

var validate = validator.New()

// Client talks to the proxy on behalf of the controller and the stop directory.
type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	Session      *Session
	Policy       config.FallbackPolicy
	Logger       *slog.Logger
	StopsRetries int
	Now          func() time.Time
}

func NewClient(baseURL string, httpClient *http.Client, session *Session, policy config.FallbackPolicy, logger *slog.Logger) *Client {
	if session == nil {
		session = NewSession("")
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTPClient:   httpClient,
		Session:      session,
		Policy:       policy,
		Logger:       logger,
		StopsRetries: 3,
		Now:          time.Now,
	}
}

// FetchArrivals returns the arrivals at stopCode, optionally narrowed to one
// service. When the request fails and the fallback policy allows it, demo data
// is returned instead with Demo set.
func (c *Client) FetchArrivals(ctx context.Context, stopCode, serviceNo string) (*models.ArrivalsResult, error) {
	code, err := NormalizeStopCode(stopCode)
	if err != nil {
		return nil, err
	}

	resp, err := c.fetchArrivals(ctx, code, serviceNo)
	if err == nil {
		metrics.ArrivalFetches.WithLabelValues("live").Inc()
		return &models.ArrivalsResult{BusArrivalResponse: *resp}, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if !c.shouldFallback(err) {
		metrics.ArrivalFetches.WithLabelValues("error").Inc()
		return nil, err
	}

	reason := fallbackReason(err)
	metrics.ArrivalFetches.WithLabelValues("demo").Inc()
	metrics.DemoFallbacks.WithLabelValues(reason).Inc()
	c.Logger.Warn("using demo arrivals", "stop_code", code, "reason", reason, "error", err)
	return DemoArrivals(code, c.Now()), nil
}

func (c *Client) fetchArrivals(ctx context.Context, stopCode, serviceNo string) (*models.BusArrivalResponse, error) {
	q := url.Values{}
	q.Set("BusStopCode", stopCode)
	if serviceNo != "" {
		q.Set("ServiceNo", serviceNo)
	}

	req, err := c.newRequest(ctx, arrivalPath, q)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch arrivals for %s: %w", stopCode, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read arrivals for %s: %w", stopCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ue := upstreamErrorFromBody(resp.StatusCode, body)
		if resp.StatusCode >= 500 {
			report.ReportUpstreamError(ue, "bus_arrival", stopCode)
		}
		return nil, ue
	}

	var decoded models.BusArrivalResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if err := validate.Struct(decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if len(decoded.Services) == 0 {
		return nil, ErrNoServices
	}
	if decoded.BusStopCode == "" {
		decoded.BusStopCode = stopCode
	}
	return &decoded, nil
}

// FetchStopsPage returns the stop directory page starting at skip. Transient
// failures are retried with backoff.
func (c *Client) FetchStopsPage(ctx context.Context, skip int) ([]models.BusStop, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))

	req, err := c.newRequest(ctx, stopsPath, q)
	if err != nil {
		return nil, err
	}

	resp, err := config.DoWithBackoff(ctx, c.HTTPClient, req, c.StopsRetries)
	if err != nil {
		return nil, fmt.Errorf("fetch stops page %d: %w", skip, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read stops page %d: %w", skip, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamErrorFromBody(resp.StatusCode, body)
	}

	var page models.BusStopsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if err := validate.Struct(page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return page.Value, nil
}

func (c *Client) newRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if key := c.Session.APIKey(); key != "" {
		req.Header.Set("AccountKey", key)
	}
	return req, nil
}

func (c *Client) shouldFallback(err error) bool {
	switch c.Policy {
	case config.FallbackNever:
		return false
	case config.FallbackCredentialOnly:
		return IsCredentialFailure(err)
	default:
		return true
	}
}

func fallbackReason(err error) string {
	switch {
	case IsCredentialFailure(err):
		return "credential"
	case errors.Is(err, ErrNoServices):
		return "no_services"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "network"
	}
}

func upstreamErrorFromBody(status int, body []byte) *UpstreamError {
	var eb models.ErrorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return newUpstreamError(status, eb.Error)
	}
	return newUpstreamError(status, "")
}
