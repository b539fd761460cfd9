// Package serve exposes a trained model over HTTP.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/domain/model"
)

type predictRequest struct {
	// Features is kept raw and decoded into the model's declared feature
	// type.
	Features json.RawMessage `json:"features"`
}

type predictResponse struct {
	Predictions any `json:"predictions"`
}

type healthResponse struct {
	Name    string `json:"name"`
	Trained bool   `json:"trained"`
}

// PredictHandler serves predictions over pre-extracted features.
//
// The request body is {"features": ...} where the features' JSON shape is
// whatever the model's parser declares as its feature type.
func PredictHandler(m *model.Model) echo.HandlerFunc {
	return func(c echo.Context) error {
		featureType, err := m.FeatureType()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		req := predictRequest{}
		if err := c.Bind(&req); err != nil {
			return err
		}
		if len(req.Features) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, `"features" is required`)
		}

		features := reflect.New(featureType)
		if err := json.Unmarshal(req.Features, features.Interface()); err != nil {
			return echo.NewHTTPError(
				http.StatusBadRequest,
				fmt.Sprintf(`"features" do not fit the model: %s`, err),
			)
		}

		predictions, err := m.PredictFromFeatures(
			c.Request().Context(), features.Elem().Interface(),
		)
		if err != nil {
			return asHTTPError(err)
		}

		return c.JSON(http.StatusOK, predictResponse{Predictions: predictions})
	}
}

// HealthHandler reports the model's name and whether it can predict.
func HealthHandler(m *model.Model) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthResponse{
			Name:    m.Name(),
			Trained: m.Artifact() != nil,
		})
	}
}

func asHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNoArtifact):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no trained model is loaded")
	case errors.Is(err, domain.ErrPipeline), errors.Is(err, domain.ErrInvalidHyperparameters):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// Register mounts the model's routes on e.
func Register(e *echo.Echo, m *model.Model) {
	e.GET("/health", HealthHandler(m))
	e.POST("/predict", PredictHandler(m))
}

// New builds an echo server with the model's routes mounted.
func New(m *model.Model) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(log.INFO)
	Register(e, m)
	return e
}

// Start runs e on the port until ctx is canceled, then shuts it down
// within gracefulPeriod.
func Start(ctx context.Context, e *echo.Echo, port int, gracefulPeriod time.Duration) error {
	errch := make(chan error, 1)
	go func() {
		errch <- e.Start(fmt.Sprintf(":%d", port))
	}()

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), gracefulPeriod)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return err
	}

	if err := <-errch; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
