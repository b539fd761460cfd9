// Package rest is the HTTP client of the remote loom backend, implementing
// remote.Gateway.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loomml/loom/pkg/configs/profile"
	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/domain/remote"
	"github.com/loomml/loom/pkg/domain/task"
	"github.com/loomml/loom/pkg/utils/loop"
	"github.com/loomml/loom/pkg/xerrors"
)

var (
	// ErrTokenExpired is returned by New when the profile carries an
	// already-expired token.
	ErrTokenExpired = errors.New("token is expired")

	// ErrExecutionFailed is returned when the backend reports an execution
	// as failed.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrExecutionRunning is returned by Load for a not-yet-finished
	// execution.
	ErrExecutionRunning = errors.New("execution is still running")
)

type Client struct {
	httpclient   *http.Client
	api          string
	app          string
	token        string
	pollInterval time.Duration
}

var _ remote.Gateway = &Client{}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpclient = hc }
}

// WithPollInterval sets the interval of execution status polling in
// waiting Predict calls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// New creates a Client for the profile.
//
// When the profile carries a token shaped as a JWT, its expiry is checked
// here, before any request is made. The signature is not verified; that is
// the backend's business.
func New(prof *profile.Profile, opts ...Option) (*Client, error) {
	c := &Client{
		httpclient:   new(http.Client),
		api:          strings.TrimSuffix(prof.Endpoint, "/"),
		app:          prof.App,
		token:        prof.Token,
		pollInterval: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if prof.Token != "" {
		if claims, err := tokenClaims(prof.Token); err == nil {
			if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(time.Now()) {
				return nil, fmt.Errorf("%w: at %s", ErrTokenExpired, exp.Format(time.RFC3339))
			}
		}
		// not a JWT: pass it through opaquely.
	}

	return c, nil
}

func tokenClaims(token string) (jwt.Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	return parsed.Claims, nil
}

// build URL with path
func (c *Client) apipath(path ...string) string {
	return strings.Join(append([]string{c.api}, path...), "/")
}

func (c *Client) do(ctx context.Context, method string, url string, payload any, result any) error {
	var body *bytes.Buffer
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return xerrors.Wrap(err)
		}
		body = bytes.NewBuffer(buf)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return xerrors.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return xerrors.Wrap(err)
	}
	defer resp.Body.Close()

	return unmarshalJsonResponse(resp, result)
}

// Deploy implements remote.Gateway.
func (c *Client) Deploy(ctx context.Context, version string) error {
	return c.do(
		ctx, http.MethodPost, c.apipath("apps", c.app, "deployments"),
		deploymentRequest{Version: version}, nil,
	)
}

// Train implements remote.Gateway. It submits a training execution and
// returns without waiting.
func (c *Client) Train(ctx context.Context, version string, inputs task.Inputs) (remote.Execution, error) {
	created := executionCreated{}
	if err := c.do(
		ctx, http.MethodPost, c.apipath("apps", c.app, "executions"),
		executionRequest{Task: "train", Version: version, Inputs: inputs},
		&created,
	); err != nil {
		return remote.Execution{}, err
	}
	return remote.Execution{ID: created.ID, App: c.app}, nil
}

// Load implements remote.Gateway. The execution must be finished; a still
// running one yields ErrExecutionRunning.
func (c *Client) Load(ctx context.Context, exec remote.Execution) (*domain.Artifact, error) {
	status, err := c.getExecution(ctx, exec.ID)
	if err != nil {
		return nil, err
	}

	switch status.Status {
	case statusDone:
		// pass
	case statusFailed:
		return nil, fmt.Errorf("%w: %s: %s", ErrExecutionFailed, exec.ID, status.Error)
	default:
		return nil, fmt.Errorf("%w: %s", ErrExecutionRunning, exec.ID)
	}

	if status.Result == nil {
		return nil, fmt.Errorf("%w: execution %s has no result", domain.ErrNoArtifact, exec.ID)
	}

	modelObject, err := domain.DecodeModelObject(bytes.NewReader(status.Result.ModelObject))
	if err != nil {
		return nil, err
	}
	return &domain.Artifact{ModelObject: modelObject, Metrics: status.Result.Metrics}, nil
}

// Predict implements remote.Gateway. With wait, it polls the execution
// until it finishes and returns the predictions.
func (c *Client) Predict(ctx context.Context, version string, wait bool, inputs task.Inputs) (any, *remote.Execution, error) {
	created := executionCreated{}
	if err := c.do(
		ctx, http.MethodPost, c.apipath("apps", c.app, "executions"),
		executionRequest{Task: "predict", Version: version, Inputs: inputs},
		&created,
	); err != nil {
		return nil, nil, err
	}

	exec := remote.Execution{ID: created.ID, App: c.app}
	if !wait {
		return nil, &exec, nil
	}

	predictions, err := loop.Start(
		ctx, any(nil),
		func(ctx context.Context, _ any) (any, loop.Next) {
			status, err := c.getExecution(ctx, exec.ID)
			if err != nil {
				return nil, loop.Break(err)
			}

			switch status.Status {
			case statusDone:
				if status.Result == nil {
					return nil, loop.Break(fmt.Errorf("execution %s has no result", exec.ID))
				}
				var predictions any
				if err := json.Unmarshal(status.Result.Predictions, &predictions); err != nil {
					return nil, loop.Break(xerrors.Wrap(err))
				}
				return predictions, loop.Break(nil)
			case statusFailed:
				return nil, loop.Break(fmt.Errorf(
					"%w: %s: %s", ErrExecutionFailed, exec.ID, status.Error,
				))
			}

			return nil, loop.Continue(c.pollInterval)
		},
	)
	if err != nil {
		return nil, nil, err
	}
	return predictions, nil, nil
}

func (c *Client) getExecution(ctx context.Context, id string) (executionStatus, error) {
	status := executionStatus{}
	if err := c.do(
		ctx, http.MethodGet, c.apipath("executions", id), nil, &status,
	); err != nil {
		return executionStatus{}, err
	}
	return status, nil
}
