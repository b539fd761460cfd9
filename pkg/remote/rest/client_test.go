package rest_test

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/loomml/loom/pkg/configs/profile"
	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/domain/remote"
	"github.com/loomml/loom/pkg/domain/task"
	"github.com/loomml/loom/pkg/remote/rest"
	"github.com/loomml/loom/pkg/utils/blob64"
	"github.com/loomml/loom/pkg/utils/try"
)

type stubModel struct {
	Coef float64
}

func init() {
	gob.Register(&stubModel{})
}

// backend is an in-memory stand-in for the workflow engine API.
type backend struct {
	mux sync.Mutex

	deployments []string
	executions  map[string]*execution

	// pollsUntilDone delays completion by this many status reads.
	pollsUntilDone int
}

type execution struct {
	task   string
	inputs map[string]any
	polls  int
	failed bool
}

func (b *backend) handler(t *testing.T, token string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /apps/{app}/deployments", func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, `{"message": "unauthorized"}`, http.StatusUnauthorized)
			return
		}
		req := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad deployment request: %v", err)
		}

		b.mux.Lock()
		defer b.mux.Unlock()
		b.deployments = append(b.deployments, req["version"].(string))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})

	mux.HandleFunc("POST /apps/{app}/executions", func(w http.ResponseWriter, r *http.Request) {
		req := struct {
			Task    string         `json:"task"`
			Version string         `json:"version"`
			Inputs  map[string]any `json:"inputs"`
		}{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad execution request: %v", err)
		}

		id := uuid.NewString()
		b.mux.Lock()
		defer b.mux.Unlock()
		if b.executions == nil {
			b.executions = map[string]*execution{}
		}
		b.executions[id] = &execution{task: req.Task, inputs: req.Inputs}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": id})
	})

	mux.HandleFunc("GET /executions/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mux.Lock()
		defer b.mux.Unlock()

		exec, ok := b.executions[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"message": "no such execution"}`, http.StatusNotFound)
			return
		}

		status := map[string]any{"id": r.PathValue("id")}
		switch {
		case exec.failed:
			status["status"] = "failed"
			status["error"] = "trainer returned an error"
		case exec.polls < b.pollsUntilDone:
			exec.polls += 1
			status["status"] = "running"
		default:
			status["status"] = "done"

			buf := bytes.NewBuffer(nil)
			artifact := domain.Artifact{ModelObject: &stubModel{Coef: 2.5}}
			if err := artifact.Encode(buf); err != nil {
				t.Fatal(err)
			}
			status["result"] = map[string]any{
				"model_object": blob64.New(buf.Bytes()),
				"metrics":      map[string]any{"train": 1.0, "test": 0.95},
				"predictions":  []float64{0, 1, 1},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	return mux
}

func newClient(t *testing.T, b *backend, token string) *rest.Client {
	t.Helper()

	server := httptest.NewServer(b.handler(t, token))
	t.Cleanup(server.Close)

	return try.To(rest.New(
		&profile.Profile{Endpoint: server.URL, Token: token, App: "digits"},
		rest.WithPollInterval(time.Millisecond),
	)).OrFatal(t)
}

func TestNew(t *testing.T) {
	t.Run("an expired token is rejected before any request", func(t *testing.T) {
		expired := try.To(jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(-1 * time.Hour).Unix(),
		}).SignedString([]byte("secret"))).OrFatal(t)

		_, err := rest.New(&profile.Profile{
			Endpoint: "https://loom.example.com", Token: expired, App: "digits",
		})
		if !errors.Is(err, rest.ErrTokenExpired) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("a live token is accepted", func(t *testing.T) {
		live := try.To(jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(1 * time.Hour).Unix(),
		}).SignedString([]byte("secret"))).OrFatal(t)

		if _, err := rest.New(&profile.Profile{
			Endpoint: "https://loom.example.com", Token: live, App: "digits",
		}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("an opaque token passes through", func(t *testing.T) {
		if _, err := rest.New(&profile.Profile{
			Endpoint: "https://loom.example.com", Token: "not-a-jwt", App: "digits",
		}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDeploy(t *testing.T) {
	t.Run("it registers the app version, sending the token", func(t *testing.T) {
		b := &backend{}
		c := newClient(t, b, "opaque-token")

		if err := c.Deploy(context.Background(), "v1"); err != nil {
			t.Fatal(err)
		}
		if len(b.deployments) != 1 || b.deployments[0] != "v1" {
			t.Errorf("unmatch deployments: %v", b.deployments)
		}
	})

	t.Run("a server rejection surfaces its message", func(t *testing.T) {
		b := &backend{}
		server := httptest.NewServer(b.handler(t, "expected-token"))
		t.Cleanup(server.Close)

		c := try.To(rest.New(
			&profile.Profile{Endpoint: server.URL, Token: "wrong", App: "digits"},
		)).OrFatal(t)

		err := c.Deploy(context.Background(), "v1")
		if err == nil || !strings.Contains(err.Error(), "unauthorized") {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestTrainAndLoad(t *testing.T) {
	t.Run("train submits inputs and load restores the artifact", func(t *testing.T) {
		b := &backend{}
		c := newClient(t, b, "")
		ctx := context.Background()

		exec := try.To(c.Train(ctx, "v1", task.Inputs{
			task.InputHyperparameters: map[string]any{"C": 1.0},
		})).OrFatal(t)
		if exec.App != "digits" || exec.ID == "" {
			t.Errorf("unmatch execution: %+v", exec)
		}

		submitted := b.executions[exec.ID]
		if submitted.task != "train" {
			t.Errorf("unmatch task: %s", submitted.task)
		}
		hp := submitted.inputs["hyperparameters"].(map[string]any)
		if hp["C"] != 1.0 {
			t.Errorf("unmatch inputs: %v", submitted.inputs)
		}

		artifact := try.To(c.Load(ctx, exec)).OrFatal(t)
		if m, ok := artifact.ModelObject.(*stubModel); !ok || m.Coef != 2.5 {
			t.Errorf("unmatch model object: %+v", artifact.ModelObject)
		}
		if artifact.Metrics["test"] != 0.95 {
			t.Errorf("unmatch metrics: %v", artifact.Metrics)
		}
	})

	t.Run("load on a running execution fails", func(t *testing.T) {
		b := &backend{pollsUntilDone: 100}
		c := newClient(t, b, "")
		ctx := context.Background()

		exec := try.To(c.Train(ctx, "v1", nil)).OrFatal(t)
		if _, err := c.Load(ctx, exec); !errors.Is(err, rest.ErrExecutionRunning) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("load on a failed execution carries the backend's reason", func(t *testing.T) {
		b := &backend{}
		c := newClient(t, b, "")
		ctx := context.Background()

		exec := try.To(c.Train(ctx, "v1", nil)).OrFatal(t)
		b.executions[exec.ID].failed = true

		_, err := c.Load(ctx, exec)
		if !errors.Is(err, rest.ErrExecutionFailed) {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(err.Error(), "trainer returned an error") {
			t.Errorf("error drops the reason: %v", err)
		}
	})

	t.Run("load on an unknown execution fails", func(t *testing.T) {
		b := &backend{}
		c := newClient(t, b, "")

		if _, err := c.Load(context.Background(), remote.Execution{
			ID: uuid.NewString(), App: "digits",
		}); err == nil {
			t.Error("error is expected")
		}
	})
}

func TestPredict(t *testing.T) {
	t.Run("waiting, it polls until done and returns predictions", func(t *testing.T) {
		b := &backend{pollsUntilDone: 3}
		c := newClient(t, b, "")

		preds, exec, err := c.Predict(context.Background(), "v1", true, task.Inputs{
			"features": map[string]any{"columns": []string{"x"}, "data": [][]float64{{1}, {2}, {3}}},
		})
		if err != nil {
			t.Fatal(err)
		}
		if exec != nil {
			t.Errorf("waiting predict should not return a handle: %+v", exec)
		}

		got, ok := preds.([]any)
		if !ok || len(got) != 3 {
			t.Fatalf("unmatch predictions: %v", preds)
		}
		if got[0] != 0.0 || got[1] != 1.0 || got[2] != 1.0 {
			t.Errorf("unmatch predictions: %v", got)
		}
	})

	t.Run("not waiting, it returns a handle for later polling", func(t *testing.T) {
		b := &backend{pollsUntilDone: 100}
		c := newClient(t, b, "")

		preds, exec, err := c.Predict(context.Background(), "v1", false, nil)
		if err != nil {
			t.Fatal(err)
		}
		if preds != nil || exec == nil || exec.ID == "" {
			t.Errorf("unmatch: (predictions, execution) = (%v, %+v)", preds, exec)
		}
	})

	t.Run("waiting is cut short by context cancellation", func(t *testing.T) {
		b := &backend{pollsUntilDone: 1000000}
		c := newClient(t, b, "")

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, _, err := c.Predict(ctx, "v1", true, nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
