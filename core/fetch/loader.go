package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"livesync/core/auth"
	"livesync/core/codec"
	"livesync/core/reconcile"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// maxBodyBytes bounds a snapshot response.
const maxBodyBytes = 64 << 20

// Loader fetches the full snapshot of a feed.
type Loader interface {
	FetchSnapshot(ctx context.Context) ([]reconcile.Entity, error)
}

// Config holds the REST endpoint of one feed's snapshot.
type Config struct {
	// URL is the list endpoint, e.g. http://localhost:8080/api/users.
	URL string
	// PageSize is sent as the size query parameter. Zero omits paging params.
	PageSize int
	// ItemsField names the array field when the list is wrapped in an object.
	ItemsField string
	// Timeout bounds a single fetch.
	Timeout time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("snapshot request failed with status %d: %s", e.Code, e.Body)
}

// HTTPLoader is a Loader backed by a REST list endpoint.
type HTTPLoader struct {
	cfg    Config
	creds  auth.Credentials
	client *http.Client
	logger *zap.Logger
	sf     singleflight.Group
}

// NewHTTPLoader creates a loader. A nil client uses http.DefaultClient.
func NewHTTPLoader(cfg Config, creds auth.Credentials, client *http.Client, logger *zap.Logger) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPLoader{cfg: cfg, creds: creds, client: client, logger: logger}
}

// FetchSnapshot performs the GET. Concurrent callers share one in-flight request.
func (l *HTTPLoader) FetchSnapshot(ctx context.Context) ([]reconcile.Entity, error) {
	result, err, shared := l.sf.Do(l.cfg.URL, func() (interface{}, error) {
		return l.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.logger.Debug("Snapshot fetch coalesced", zap.String("url", l.cfg.URL))
	}
	return result.([]reconcile.Entity), nil
}

func (l *HTTPLoader) fetch(ctx context.Context) ([]reconcile.Entity, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	target, err := l.requestURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h := l.creds.Header(); h != "" {
		req.Header.Set("Authorization", h)
	}

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: msg}
	}

	entities, err := codec.DecodeSnapshot(body, l.cfg.ItemsField)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Snapshot fetched",
		zap.String("url", l.cfg.URL),
		zap.Int("entities", len(entities)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return entities, nil
}

func (l *HTTPLoader) requestURL() (string, error) {
	u, err := url.Parse(l.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid snapshot url: %w", err)
	}
	if l.cfg.PageSize > 0 {
		q := u.Query()
		q.Set("page", "0")
		q.Set("size", strconv.Itoa(l.cfg.PageSize))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
