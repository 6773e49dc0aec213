// Package remote is the HTTP client for a mailpane message server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mailpane/mailpane/internal/mailbox"
)

// DefaultTimeout bounds every request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

// Store talks to the message server's REST endpoints. It implements
// mailbox.Store.
type Store struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ mailbox.Store = (*Store)(nil)

// Config holds configuration for creating a remote store.
type Config struct {
	URL           string
	APIKey        string
	AllowInsecure bool
	Timeout       time.Duration
	Logger        *slog.Logger
}

// New creates a new remote store.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("remote URL is required")
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %s", parsedURL.Scheme)
	}

	// Enforce HTTPS unless AllowInsecure is set
	if parsedURL.Scheme == "http" && !cfg.AllowInsecure {
		return nil, fmt.Errorf("HTTPS required for remote connections\n\n" +
			"Options:\n" +
			"  1. Use HTTPS: [remote] url = \"https://mail.example.com\"\n" +
			"  2. For trusted networks: add 'allow_insecure = true' to [remote] in config.toml")
	}

	if parsedURL.Host == "" {
		return nil, fmt.Errorf("remote URL must include a host (e.g., http://localhost:8080)")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// BaseURL returns the server address requests are sent to.
func (s *Store) BaseURL() string { return s.baseURL }

// Close is a no-op for HTTP client.
func (s *Store) Close() error {
	return nil
}

// do performs an authenticated request and returns the body of a successful
// response. Non-2xx statuses come back as *Error with Kind KindHTTP.
func (s *Store) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	op := method + " " + path

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, eris.Wrapf(err, "encode %s", op)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, eris.Wrapf(err, "create request %s", op)
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: eris.Wrap(err, "request failed")}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(op, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: eris.Wrap(err, "read response")}
	}
	return data, nil
}

// apiError is the JSON error body the server sends.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorFromResponse turns a non-success response into an *Error, keeping the
// server's explanation when the body carries one.
func errorFromResponse(op string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &Error{Kind: KindHTTP, Op: op, Status: resp.StatusCode}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Message != "" {
			e.Message = apiErr.Message
			return e
		}
		if apiErr.Error != "" {
			e.Message = apiErr.Error
			return e
		}
	}
	e.Body = strings.TrimSpace(string(body))
	return e
}

// decode parses a successful body into v and reports whether it did. A body
// that fails to parse is logged; the request itself still succeeded, so the
// caller falls back to an empty payload.
func (s *Store) decode(op string, data []byte, v any) bool {
	if len(bytes.TrimSpace(data)) == 0 {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		perr := &Error{Kind: KindParse, Op: op, Err: eris.Wrap(err, "decode response")}
		s.logger.Warn("ignoring malformed response body", "op", op, "error", perr)
		return false
	}
	return true
}

// summaryResponse matches the server's mailbox listing entries.
type summaryResponse struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
	Archived  bool   `json:"archived"`
}

// messageResponse matches the server's message detail format.
type messageResponse struct {
	summaryResponse
	Recipients []string `json:"recipients"`
	Body       string   `json:"body"`
}

// timestampLayouts are tried in order. The last one is what Django-era
// servers emit ("Jan 2 2006, 3:04 PM").
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"Jan 2 2006, 3:04 PM",
}

// parseTime parses the timestamp formats servers are known to send.
// Unknown formats yield the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func toSummary(r summaryResponse) mailbox.Summary {
	return mailbox.Summary{
		ID:        r.ID,
		Sender:    r.Sender,
		Subject:   r.Subject,
		Timestamp: parseTime(r.Timestamp),
		Read:      r.Read,
		Archived:  r.Archived,
	}
}

// ListMailbox fetches the summaries of one mailbox, newest first.
func (s *Store) ListMailbox(ctx context.Context, mb mailbox.MailboxID) ([]mailbox.Summary, error) {
	path := "/messages/" + url.PathEscape(string(mb))
	data, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var rows []summaryResponse
	if !s.decode(http.MethodGet+" "+path, data, &rows) {
		rows = nil
	}

	out := make([]mailbox.Summary, len(rows))
	for i, r := range rows {
		out[i] = toSummary(r)
	}
	return out, nil
}

// GetMessage fetches a single message. A successful response whose body
// cannot be parsed yields a nil message and no error.
func (s *Store) GetMessage(ctx context.Context, id int64) (*mailbox.Message, error) {
	path := "/messages/" + strconv.FormatInt(id, 10)
	data, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var mr *messageResponse
	if !s.decode(http.MethodGet+" "+path, data, &mr) || mr == nil {
		return nil, nil
	}

	sum := toSummary(mr.summaryResponse)
	return &mailbox.Message{
		ID:         sum.ID,
		Sender:     sum.Sender,
		Recipients: mr.Recipients,
		Subject:    sum.Subject,
		Timestamp:  sum.Timestamp,
		Body:       mr.Body,
		Read:       sum.Read,
		Archived:   sum.Archived,
	}, nil
}

// sendRequest is the compose payload. Recipients are a single comma
// separated string.
type sendRequest struct {
	Recipients string `json:"recipients"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// SendMessage creates a message from draft.
func (s *Store) SendMessage(ctx context.Context, draft mailbox.Draft) error {
	_, err := s.do(ctx, http.MethodPost, "/messages", sendRequest{
		Recipients: strings.Join(mailbox.ParseRecipients(draft.Recipients), ", "),
		Subject:    draft.Subject,
		Body:       draft.Body,
	})
	return err
}

// UpdateMessage sets the read and archived flags present in patch.
func (s *Store) UpdateMessage(ctx context.Context, id int64, patch mailbox.Patch) error {
	path := "/messages/" + strconv.FormatInt(id, 10)
	_, err := s.do(ctx, http.MethodPut, path, patch)
	return err
}

// Counts fetches the mailbox sizes.
func (s *Store) Counts(ctx context.Context) (mailbox.Counts, error) {
	const path = "/counts"
	data, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return mailbox.Counts{}, err
	}

	var c mailbox.Counts
	if !s.decode(http.MethodGet+" "+path, data, &c) {
		return mailbox.Counts{}, nil
	}
	return c, nil
}

// Health checks that the server is reachable.
func (s *Store) Health(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, "/health", nil)
	return err
}
