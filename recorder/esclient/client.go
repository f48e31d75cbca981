// Package esclient talks to the engine-simulation service over HTTP/JSON.
//
// Every instance is addressed as /instances/{id}/...; see Client for the
// endpoints. The service's own success flags travel in the response body;
// non-2xx responses and transport failures are returned as errors.
package esclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/esrecorder/esrecorder/recorder"
)

// Client implements recorder.Service.
//
//	POST /instances/{id}/compile     {"asset": path}  -> {"ok": bool}
//	POST /instances/{id}/initialize                   -> {"ok": bool}
//	GET  /instances/{id}/state                        -> {"state": name, "progress": 0..100}
//	GET  /instances/{id}/engine                       -> {"name", "redline", "displacement"}
//	POST /instances/{id}/record      SamplePoint      -> SampleOutcome
//	GET  /instances/{id}/error-log                    -> {"log": text}
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ recorder.Service = (*Client)(nil)

// New creates a client for the service at baseURL. A zero timeout waits
// indefinitely; sample recording can take minutes at high prerun counts.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}

type okResponse struct {
	OK bool `json:"ok"`
}

type stateResponse struct {
	State    string `json:"state"`
	Progress int    `json:"progress"`
}

type engineResponse struct {
	Name         string  `json:"name"`
	Redline      float64 `json:"redline"`
	Displacement float64 `json:"displacement"`
}

type errorLogResponse struct {
	Log string `json:"log"`
}

func (c *Client) do(ctx context.Context, method string, id int, action string, in, out any) error {
	path := fmt.Sprintf("/instances/%d/%s", id, action)
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", action, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	logrus.Debugf("%s %s -> %d in %s", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}

// Compile compiles the engine definition at assetPath on instance id.
func (c *Client) Compile(ctx context.Context, id int, assetPath string) (bool, error) {
	var out okResponse
	err := c.do(ctx, http.MethodPost, id, "compile", map[string]string{"asset": assetPath}, &out)
	return out.OK, err
}

// Initialize prepares a compiled instance for recording.
func (c *Client) Initialize(ctx context.Context, id int) (bool, error) {
	var out okResponse
	err := c.do(ctx, http.MethodPost, id, "initialize", nil, &out)
	return out.OK, err
}

// State returns the simulation state and its progress.
func (c *Client) State(ctx context.Context, id int) (recorder.EngineState, int, error) {
	var out stateResponse
	if err := c.do(ctx, http.MethodGet, id, "state", nil, &out); err != nil {
		return recorder.EngineIdle, 0, err
	}
	state, err := recorder.ParseEngineState(out.State)
	if err != nil {
		return recorder.EngineIdle, 0, err
	}
	return state, out.Progress, nil
}

func (c *Client) engine(ctx context.Context, id int) (engineResponse, error) {
	var out engineResponse
	err := c.do(ctx, http.MethodGet, id, "engine", nil, &out)
	return out, err
}

// EngineName returns the loaded engine's name.
func (c *Client) EngineName(ctx context.Context, id int) (string, error) {
	e, err := c.engine(ctx, id)
	return e.Name, err
}

// EngineRedline returns the loaded engine's redline in RPM.
func (c *Client) EngineRedline(ctx context.Context, id int) (float64, error) {
	e, err := c.engine(ctx, id)
	return e.Redline, err
}

// EngineDisplacement returns the loaded engine's displacement in litres.
func (c *Client) EngineDisplacement(ctx context.Context, id int) (float64, error) {
	e, err := c.engine(ctx, id)
	return e.Displacement, err
}

// RecordSample warms the instance up at the point and records it.
func (c *Client) RecordSample(ctx context.Context, id int, point recorder.SamplePoint) (recorder.SampleOutcome, error) {
	var out recorder.SampleOutcome
	err := c.do(ctx, http.MethodPost, id, "record", point, &out)
	return out, err
}

// ErrorLog returns the service's error log for id.
func (c *Client) ErrorLog(ctx context.Context, id int) (string, error) {
	var out errorLogResponse
	err := c.do(ctx, http.MethodGet, id, "error-log", nil, &out)
	return out.Log, err
}
