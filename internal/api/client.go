package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/devboot/internal/detect"
	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/event"
	"github.com/Iron-Ham/devboot/internal/history"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/project"
	"github.com/Iron-Ham/devboot/internal/supervisor"
)

// Client talks to a running `devboot serve`.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for addr, which may be "host:port" or a full
// URL.
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{base: base, http: &http.Client{}}
}

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() string {
	return c.base
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
	}
	return apiErr
}

func projectPath(id string, rest ...string) string {
	p := "/api/projects/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// Ping checks that the server is reachable, waiting at most timeout.
func (c *Client) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var out HealthResponse
	return c.do(ctx, http.MethodGet, "/api/health", nil, &out)
}

// Projects lists every project with its status.
func (c *Client) Projects(ctx context.Context) ([]ProjectView, error) {
	var out []ProjectView
	err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out)
	return out, err
}

// Project returns one project with its status.
func (c *Client) Project(ctx context.Context, id string) (ProjectView, error) {
	var out ProjectView
	err := c.do(ctx, http.MethodGet, projectPath(id), nil, &out)
	return out, err
}

// AddProject creates a project.
func (c *Client) AddProject(ctx context.Context, p project.Project) (ProjectView, error) {
	var out ProjectView
	err := c.do(ctx, http.MethodPost, "/api/projects", p, &out)
	return out, err
}

// UpdateProject replaces a project's definition.
func (c *Client) UpdateProject(ctx context.Context, p project.Project) (ProjectView, error) {
	var out ProjectView
	err := c.do(ctx, http.MethodPut, projectPath(p.ID), p, &out)
	return out, err
}

// DeleteProject stops and removes a project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, projectPath(id), nil, nil)
}

func (c *Client) action(ctx context.Context, id, action string, body any) (supervisor.Status, error) {
	var out supervisor.Status
	err := c.do(ctx, http.MethodPost, projectPath(id, action), body, &out)
	return out, err
}

// Start starts a project.
func (c *Client) Start(ctx context.Context, id string) (supervisor.Status, error) {
	return c.action(ctx, id, "start", nil)
}

// Stop stops a project.
func (c *Client) Stop(ctx context.Context, id string) (supervisor.Status, error) {
	return c.action(ctx, id, "stop", nil)
}

// Restart restarts a project.
func (c *Client) Restart(ctx context.Context, id string) (supervisor.Status, error) {
	return c.action(ctx, id, "restart", nil)
}

// Interrupt sends SIGINT to a project's foreground command.
func (c *Client) Interrupt(ctx context.Context, id string) (supervisor.Status, error) {
	return c.action(ctx, id, "interrupt", nil)
}

// SendInput writes a line to a project's shell.
func (c *Client) SendInput(ctx context.Context, id, text string) error {
	_, err := c.action(ctx, id, "input", InputRequest{Text: text})
	return err
}

// Status returns a project's status.
func (c *Client) Status(ctx context.Context, id string) (supervisor.Status, error) {
	var out supervisor.Status
	err := c.do(ctx, http.MethodGet, projectPath(id, "status"), nil, &out)
	return out, err
}

// Logs returns a project's captured lines. tail > 0 keeps only the last
// tail lines.
func (c *Client) Logs(ctx context.Context, id string, tail int) ([]logbuffer.Line, error) {
	path := projectPath(id, "logs")
	if tail > 0 {
		path += "?tail=" + strconv.Itoa(tail)
	}
	var out []logbuffer.Line
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ExportLogs streams a project's log export in format to w.
func (c *Client) ExportLogs(ctx context.Context, id string, format logbuffer.Format, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+projectPath(id, "logs")+"?format="+url.QueryEscape(string(format)), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return errors.NewIOError("failed to write export", err)
	}
	return nil
}

// ClearLogs empties a project's log buffer.
func (c *Client) ClearLogs(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, projectPath(id, "logs"), nil, nil)
}

// Detect asks the server to inspect path.
func (c *Client) Detect(ctx context.Context, path string) (detect.Result, error) {
	var out detect.Result
	err := c.do(ctx, http.MethodPost, "/api/detect", DetectRequest{Path: path}, &out)
	return out, err
}

// History returns journaled events for a project, newest first.
func (c *Client) History(ctx context.Context, id string, limit int) ([]history.Record, error) {
	path := projectPath(id, "history")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []history.Record
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Events follows the server's event stream, calling fn for each event
// until ctx is done, the server closes the stream, or fn returns an error.
// projectID and types narrow the stream when non-empty.
func (c *Client) Events(ctx context.Context, projectID string, types []string, fn func(event.Payload) error) error {
	q := url.Values{}
	if projectID != "" {
		q.Set("project", projectID)
	}
	if len(types) > 0 {
		q.Set("types", strings.Join(types, ","))
	}
	path := "/api/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return err
	}

	reader := bufio.NewReader(resp.Body)
	var data strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var p event.Payload
			if err := json.Unmarshal([]byte(data.String()), &p); err != nil {
				return fmt.Errorf("invalid event payload: %w", err)
			}
			data.Reset()
			if err := fn(p); err != nil {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}
