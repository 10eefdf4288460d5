package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newthinker/archivist/internal/core"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPConfig holds metadata API client settings
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// RequestsPerSecond throttles calls to the API; zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// HTTPTracker implements Tracker over the metadata service HTTP API
type HTTPTracker struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// metadata is the JSON document served at /objects/{id}/metadata
type metadata struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ObjectKey string `json:"object-key"`
	FilePath  string `json:"filepath"`
}

// NewHTTP creates a new HTTP tracker client
func NewHTTP(cfg HTTPConfig, logger *zap.Logger) (*HTTPTracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("tracker base url %q", cfg.BaseURL))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	t := &HTTPTracker{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "tracker")),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return t, nil
}

func (t *HTTPTracker) GetObject(ctx context.Context, id string) (core.ManagedObject, error) {
	var obj core.ManagedObject

	resp, err := t.do(ctx, http.MethodGet, id, "metadata")
	if err != nil {
		return obj, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return obj, core.WrapError(core.ErrObjectUnknown, fmt.Errorf("object %s", id))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return obj, core.WrapError(core.ErrTrackerRequestFailed, statusError(resp))
	}

	ct := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err != nil || !strings.Contains(mt, "json") {
		return obj, core.WrapError(core.ErrTrackerBadResponse, fmt.Errorf("content type %q is not JSON", ct))
	}

	var m metadata
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return obj, core.WrapError(core.ErrTrackerBadResponse, fmt.Errorf("decoding metadata: %w", err))
	}
	if m.ID != "" && m.ID != id {
		return obj, core.WrapError(core.ErrTrackerBadResponse, fmt.Errorf("asked for %s, got %s", id, m.ID))
	}

	status, err := core.ParseStatus(m.Status)
	if err != nil {
		return obj, err
	}

	t.logger.Debug("object metadata fetched",
		zap.String("object_id", id),
		zap.String("status", string(status)),
	)

	return core.ManagedObject{
		ID:     id,
		Status: status,
		Location: core.Location{
			FilePath:  m.FilePath,
			ObjectKey: m.ObjectKey,
		},
	}, nil
}

func (t *HTTPTracker) SetStatus(ctx context.Context, id string, status core.Status) error {
	var action string
	switch status {
	case core.StatusArchived:
		action = "archive"
	case core.StatusProcessed:
		action = "unarchive"
	default:
		return core.WrapError(core.ErrUnknownStatus, fmt.Errorf("status %q", status))
	}

	resp, err := t.do(ctx, http.MethodPost, id, action)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.WrapError(core.ErrTrackerRequestFailed, statusError(resp))
	}
	return nil
}

func (t *HTTPTracker) do(ctx context.Context, method, id, action string) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, core.WrapError(core.ErrTrackerRequestFailed, fmt.Errorf("rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, t.endpoint(id, action), nil)
	if err != nil {
		return nil, core.WrapError(core.ErrTrackerRequestFailed, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			// keep the api key out of logs
			uerr.URL, _, _ = strings.Cut(uerr.URL, "?")
		}
		return nil, core.WrapError(core.ErrTrackerRequestFailed, fmt.Errorf("%s %s: %w", method, action, err))
	}
	return resp, nil
}

func (t *HTTPTracker) endpoint(id, action string) string {
	u := t.baseURL + "/objects/" + url.PathEscape(id) + "/" + action
	if t.apiKey != "" {
		u += "?" + url.Values{"key": {t.apiKey}}.Encode()
	}
	return u
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
}
