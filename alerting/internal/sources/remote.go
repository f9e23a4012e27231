package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"weaponwatch/alerting/internal/models"
)

// TransportError reports a failed exchange with the detection backend:
// either the request never completed or it returned a non-2xx status.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteID accepts both numeric and string identifiers.
type RemoteID string

func (id *RemoteID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RemoteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("remote id: %w", err)
	}
	*id = RemoteID(n.String())
	return nil
}

// RemoteAlert is one record of the backend's GET /alerts feed.
type RemoteAlert struct {
	ID         RemoteID `json:"id"`
	Weapon     string   `json:"weapon"`
	Confidence float64  `json:"confidence"`
	Timestamp  string   `json:"timestamp"`
	Camera     string   `json:"camera,omitempty"`
	Location   string   `json:"location,omitempty"`
}

// RemoteClient talks to the detection backend.
type RemoteClient struct {
	httpClient *resty.Client
	baseURL    string
	logger     *zap.Logger
}

func NewRemoteClient(baseURL string, timeout time.Duration, logger *zap.Logger) *RemoteClient {
	baseURL = strings.TrimRight(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &RemoteClient{httpClient: client, baseURL: baseURL, logger: logger}
}

// FetchAlerts returns the backend's alert feed, newest first.
func (c *RemoteClient) FetchAlerts(ctx context.Context) ([]RemoteAlert, error) {
	resp, err := c.httpClient.R().SetContext(ctx).Get("/alerts")
	if err != nil {
		return nil, &TransportError{Op: "GET", URL: c.baseURL + "/alerts", Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{Op: "GET", URL: c.baseURL + "/alerts", StatusCode: resp.StatusCode()}
	}

	var records []RemoteAlert
	if err := json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, &TransportError{Op: "GET", URL: c.baseURL + "/alerts", Err: fmt.Errorf("decode alerts: %w", err)}
	}
	return records, nil
}

// Acknowledge relays an acknowledgement for a remote alert.
func (c *RemoteClient) Acknowledge(ctx context.Context, remoteID string) error {
	path := "/alerts/" + url.PathEscape(remoteID) + "/acknowledge"
	resp, err := c.httpClient.R().SetContext(ctx).Post(path)
	if err != nil {
		return &TransportError{Op: "POST", URL: c.baseURL + path, Err: err}
	}
	if resp.IsError() {
		return &TransportError{Op: "POST", URL: c.baseURL + path, StatusCode: resp.StatusCode()}
	}

	c.logger.Info("Remote alert acknowledged", zap.String("remote_id", remoteID))
	return nil
}

// RemotePoller turns the head of the backend feed into a candidate when it
// differs from the last accepted remote id.
type RemotePoller struct {
	client   *RemoteClient
	camera   string
	location string
	now      func() time.Time
	logger   *zap.Logger

	mu        sync.Mutex
	watermark string
}

func NewRemotePoller(client *RemoteClient, camera, location string, logger *zap.Logger) *RemotePoller {
	return &RemotePoller{
		client:   client,
		camera:   camera,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
}

func (p *RemotePoller) Name() string {
	return models.SourceRemote
}

func (p *RemotePoller) Poll(ctx context.Context) ([]models.Candidate, error) {
	records, err := p.client.FetchAlerts(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	// only the head of a newest-first feed is considered
	head := records[0]
	id := string(head.ID)
	if id == "" {
		return nil, fmt.Errorf("remote alert without id")
	}

	p.mu.Lock()
	seen := id == p.watermark
	p.mu.Unlock()
	if seen {
		return nil, nil
	}

	camera, location := head.Camera, head.Location
	if camera == "" {
		camera, location = p.camera, p.location
	}

	return []models.Candidate{{
		Source:     models.SourceRemote,
		SourceID:   id,
		Weapon:     head.Weapon,
		Confidence: head.Confidence,
		Timestamp:  p.timestampOf(head.Timestamp),
		Camera:     camera,
		Location:   location,
	}}, nil
}

// Commit advances the watermark.
func (p *RemotePoller) Commit(c models.Candidate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watermark = c.SourceID
}

func (p *RemotePoller) Watermark() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

// Acknowledge lets the poller act as the acknowledgement relay.
func (p *RemotePoller) Acknowledge(ctx context.Context, remoteID string) error {
	return p.client.Acknowledge(ctx, remoteID)
}

var remoteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts ISO-8601 with or without a zone; zoneless values
// are taken as UTC. Epoch seconds are accepted too.
func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range remoteTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Unix(0, int64(secs*float64(time.Second))).UTC(), true
	}
	return time.Time{}, false
}

func (p *RemotePoller) timestampOf(raw string) time.Time {
	if t, ok := parseTimestamp(raw); ok {
		return t
	}
	p.logger.Warn("Unparseable remote timestamp, using receive time", zap.String("timestamp", raw))
	return p.now()
}
