package arcadedb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/depgraph/pkg/store"
)

const headerSessionID = "arcadedb-session-id"

const (
	languageSQL       = "sql"
	languageSQLScript = "sqlscript"
	languageGremlin   = "gremlin"
)

type commandRequest struct {
	Language string         `json:"language"`
	Command  string         `json:"command"`
	Params   map[string]any `json:"params"`
}

type commandResponse struct {
	Result json.RawMessage `json:"result"`
}

// client speaks the ArcadeDB HTTP API for one database.
type client struct {
	http     *http.Client
	baseURL  string
	database string
	username string
	password string
}

// post sends one request to /{operation}/{database}. A nil req sends an
// empty body, as begin, commit and rollback expect.
func (c *client) post(ctx context.Context, operation string, s store.Session, req *commandRequest) (*http.Response, []byte, error) {
	var payload []byte
	var body io.Reader = http.NoBody
	if req != nil {
		var err error
		payload, err = json.Marshal(req)
		if err != nil {
			return nil, nil, &store.BackendError{Operation: operation, Session: s, Err: err}
		}
		body = bytes.NewReader(payload)
	}

	fail := func(status int, response string, err error) error {
		return &store.BackendError{
			Operation: operation,
			Session:   s,
			Payload:   string(payload),
			Response:  response,
			Status:    status,
			Err:       err,
		}
	}

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, operation, c.database)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, nil, fail(0, "", err)
	}
	httpReq.SetBasicAuth(c.username, c.password)
	httpReq.Header.Set("Content-Type", "application/json")
	if s != "" {
		httpReq.Header.Set(headerSessionID, string(s))
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, nil, fail(0, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fail(resp.StatusCode, "", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, nil, fail(resp.StatusCode, string(raw), errors.New(http.StatusText(resp.StatusCode)))
	}
	return resp, raw, nil
}

// run executes a command or query and decodes the result rows into out.
func (c *client) run(ctx context.Context, operation string, s store.Session, req *commandRequest, out any) error {
	_, raw, err := c.post(ctx, operation, s, req)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 || out == nil {
		return nil
	}

	var resp commandResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return c.malformed(operation, s, req, raw, err)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return c.malformed(operation, s, req, raw, err)
	}
	return nil
}

func (c *client) malformed(operation string, s store.Session, req *commandRequest, raw []byte, err error) error {
	payload, _ := json.Marshal(req)
	return &store.BackendError{
		Operation: operation,
		Session:   s,
		Payload:   string(payload),
		Response:  string(raw),
		Status:    http.StatusOK,
		Err:       fmt.Errorf("%w: %v", store.ErrMalformedResponse, err),
	}
}

func (c *client) begin(ctx context.Context) (store.Session, error) {
	resp, _, err := c.post(ctx, "begin", "", nil)
	if err != nil {
		return "", err
	}
	id := resp.Header.Get(headerSessionID)
	if id == "" {
		return "", &store.BackendError{Operation: "begin", Err: errors.New("no session created")}
	}
	return store.Session(id), nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
