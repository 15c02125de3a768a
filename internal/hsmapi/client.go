package hsmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/wolfman30/hsm-appointments/internal/apperrors"
	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

const (
	defaultBaseURL   = "http://127.0.0.1:5000"
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "hsm-appointments-client/0.1"
	maxResponseBytes = 1 << 20
)

// Config controls how the appointment service client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // requests per second; <= 0 disables limiting
	Burst      int
	HTTPClient *http.Client
	Logger     *logging.Logger
	Tracer     trace.Tracer
	UserAgent  string
}

// Client talks to the appointment/login/signup HTTP service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
	tracer     trace.Tracer
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("hsmapi: base url must be http(s): %q", baseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("hsm.internal.hsmapi")
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
		tracer:     tracer,
		userAgent:  userAgent,
	}, nil
}

// Login verifies credentials for the given user type and returns the
// service's greeting message.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var out messageResponse
	if _, err := c.invoke(ctx, "login", http.MethodPost, "/login", creds, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Signup registers a new user. The service answers 201 on success.
func (c *Client) Signup(ctx context.Context, creds Credentials) (string, error) {
	var out messageResponse
	if _, err := c.invoke(ctx, "signup", http.MethodPost, "/signup", creds, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ListAppointments returns every appointment the service knows about.
func (c *Client) ListAppointments(ctx context.Context) ([]Appointment, error) {
	var out []Appointment
	if _, err := c.invoke(ctx, "list appointments", http.MethodGet, "/appointments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelAppointment asks the service to cancel an appointment. A 200 answer
// with success=false is reported as a failure carrying the service message.
func (c *Client) CancelAppointment(ctx context.Context, id int64) error {
	const op = "cancel appointment"
	var out cancelResponse
	status, err := c.invoke(ctx, op, http.MethodPut, "/appointments/"+strconv.FormatInt(id, 10)+"/cancel", nil, &out)
	if err != nil {
		return err
	}
	if !out.Success {
		reason := firstNonEmpty(out.Message, out.Error, "cancellation was not accepted")
		return &apperrors.FetchError{Op: op, StatusCode: status, Reason: reason}
	}
	return nil
}

// AddNote appends a note to an appointment.
func (c *Client) AddNote(ctx context.Context, id int64, req AddNoteRequest) error {
	_, err := c.invoke(ctx, "add note", http.MethodPost, "/appointments/"+strconv.FormatInt(id, 10)+"/add-note", req, nil)
	return err
}

// CreateAppointment books a new appointment. The returned record is nil when
// the service acknowledges the booking without echoing the created record.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*Appointment, error) {
	const op = "create appointment"
	var raw json.RawMessage
	if _, err := c.invoke(ctx, op, http.MethodPost, "/appointments", req, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var created Appointment
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, &apperrors.FetchError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if created.ID == 0 {
		return nil, nil
	}
	return &created, nil
}

func (c *Client) invoke(ctx context.Context, op, method, path string, in, out any) (int, error) {
	ctx, span := c.tracer.Start(ctx, "hsmapi."+strings.ReplaceAll(op, " ", "_"))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	status, err := c.do(ctx, op, method, path, in, out)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("appointment service call failed", "op", op, "status", status, "error", err)
		return status, err
	}
	c.logger.Debug("appointment service call", "op", op, "status", status)
	return status, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, &apperrors.FetchError{Op: op, Err: err}
		}
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, &apperrors.FetchError{Op: op, Err: fmt.Errorf("marshal body: %w", err)}
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, &apperrors.FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &apperrors.FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, &apperrors.FetchError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, decodeAPIError(op, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, &apperrors.FetchError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.StatusCode, nil
}

func decodeAPIError(op string, status int, body []byte) error {
	fe := &apperrors.FetchError{Op: op, StatusCode: status}
	var parsed messageResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		fe.Reason = firstNonEmpty(parsed.Error, parsed.Message)
	}
	if fe.Reason == "" {
		fe.Err = errors.New(firstNonEmpty(http.StatusText(status), "unexpected response"))
	}
	return fe
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
