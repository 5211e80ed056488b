package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"servingd/internal/manager"
	"servingd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Serve(ctx context.Context, name string, version int) (manager.ServeResult, error)
	Kill(name string, version int) (manager.KillResult, error)
	SweepExpired() manager.SweepReport
	ListEndpoints() []types.EndpointInfo
	Predict(ctx context.Context, name string, version int, payload []byte) ([]byte, error)
	Status() types.StatusResponse
	Ready() bool
}

// ActivitySource exposes recent lifecycle events.
type ActivitySource interface {
	Events() []manager.Event
}

func NewMux(svc Service, activity ActivitySource) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(AccessLog)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: orDefault(corsAllowedMethods, []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Authorization", "Content-Type", "X-Request-Id"}),
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/serving", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/serve/{name}/{version}", serveHandler(svc))
		r.Post("/kill/{name}/{version}", killHandler(svc))
		r.Get("/endpoints", endpointsHandler(svc))
		r.Post("/predict/{name}/{version}", predictHandler(svc))
		r.Post("/sweep", sweepHandler(svc))
		r.Get("/activity", activityHandler(activity))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("shutting down"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// modelParams reads and validates the {name} and {version} path segments.
func modelParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	raw := chi.URLParam(r, "version")
	version, err := strconv.Atoi(raw)
	if name == "" || err != nil || version < 0 {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid model version %q", raw))
		return "", 0, false
	}
	return name, version, true
}

// @Summary      Serve a model version
// @Description  Spawns the model server if needed and returns its port.
// @Tags         serving
// @Produce      json
// @Param        name     path  string  true  "Registered model name"
// @Param        version  path  int     true  "Model version"
// @Success      200  {object}  types.Outcome{data=types.ServeData}
// @Failure      400  {object}  types.Outcome
// @Failure      404  {object}  types.Outcome
// @Failure      503  {object}  types.Outcome
// @Router       /serving/serve/{name}/{version} [post]
func serveHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, version, ok := modelParams(w, r)
		if !ok {
			return
		}
		res, err := svc.Serve(r.Context(), name, version)
		if err != nil {
			code := statusFor(err)
			writeOutcome(w, code, statusClass(code), fmt.Sprintf("Could not start REST endpoint service for model with name '%s' and version '%d': %v", name, version, err), nil)
			return
		}
		msg := fmt.Sprintf("Serving (%s, %d): (%d, %d, %d)", name, version, res.Port, res.PID, res.LastAccess.Unix())
		writeOutcome(w, http.StatusOK, types.StatusSuccess, msg, types.ServeData{Port: res.Port})
	}
}

// @Summary      Kill a live model
// @Tags         serving
// @Produce      json
// @Param        name     path  string  true  "Registered model name"
// @Param        version  path  int     true  "Model version"
// @Success      200  {object}  types.Outcome{data=types.KillData}
// @Failure      404  {object}  types.Outcome
// @Failure      500  {object}  types.Outcome
// @Router       /serving/kill/{name}/{version} [post]
func killHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, version, ok := modelParams(w, r)
		if !ok {
			return
		}
		res, err := svc.Kill(name, version)
		data := types.KillData{ModelName: name, ModelVersion: version, Port: res.Port, PID: res.PID}
		if !res.LastAccess.IsZero() {
			data.LastAccess = res.LastAccess.Unix()
		}
		switch {
		case manager.IsNotFound(err):
			writeJSONError(w, http.StatusNotFound, "Could not get live model port.")
		case err != nil:
			writeOutcome(w, http.StatusInternalServerError, types.StatusException,
				fmt.Sprintf("Could not kill REST endpoint service for model with name '%s' and version '%d': %v", name, version, err), data)
		default:
			writeOutcome(w, http.StatusOK, types.StatusSuccess, fmt.Sprintf("Killed live model (%s, %d): (%d, %d)", name, version, res.Port, res.PID), data)
		}
	}
}

// @Summary      List live model endpoints
// @Tags         serving
// @Produce      json
// @Success      200  {object}  types.Outcome{data=types.EndpointsData}
// @Router       /serving/endpoints [get]
func endpointsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eps := svc.ListEndpoints()
		data := types.EndpointsData{ActiveEndpoints: make(map[string]types.EndpointInfo, len(eps))}
		for _, ep := range eps {
			key := types.ModelKey{Name: ep.ModelName, Version: ep.ModelVersion}
			data.ActiveEndpoints[key.String()] = ep
		}
		writeOutcome(w, http.StatusOK, types.StatusSuccess, "Successfully fetched live models endpoints", data)
	}
}

// @Summary      Predict with a model version
// @Description  Forwards a split-orient payload to the model server, spawning it on demand.
// @Tags         serving
// @Accept       json
// @Produce      json
// @Param        name     path  string               true  "Registered model name"
// @Param        version  path  int                  true  "Model version"
// @Param        body     body  types.PredictRequest true  "Split-orient payload"
// @Success      200  {object}  types.Outcome
// @Failure      400  {object}  types.Outcome
// @Failure      406  {object}  types.Outcome{data=types.PredictionFailure}
// @Failure      502  {object}  types.Outcome{data=types.PredictionFailure}
// @Router       /serving/predict/{name}/{version} [post]
func predictHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, version, ok := modelParams(w, r)
		if !ok {
			return
		}
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				IncrementRejection("body_too_large")
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeJSONError(w, http.StatusBadRequest, "could not read body")
			return
		}
		var req types.PredictRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if msg := validatePredictRequest(req); msg != "" {
			writeJSONError(w, http.StatusBadRequest, msg)
			return
		}
		if maxBatchSize > 0 && len(req.Data) > maxBatchSize {
			IncrementRejection("batch_too_large")
			writeJSONError(w, http.StatusNotAcceptable, "Failed to perform prediction. Batch size is too big!")
			return
		}

		ctx, cancel := predictContext(r)
		defer cancel()
		out, err := svc.Predict(ctx, name, version, compactJSON(body))
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writePredictError(w, r, name, version, err)
			return
		}
		writeOutcome(w, http.StatusOK, types.StatusSuccess,
			fmt.Sprintf("Successfully performed predictions using model (%s, %d)", name, version), json.RawMessage(out))
	}
}

func writePredictError(w http.ResponseWriter, r *http.Request, name string, version int, err error) {
	code := statusFor(err)
	failure := types.PredictionFailure{ModelName: name, ModelVersion: version, RequestID: middleware.GetReqID(r.Context())}
	var (
		me *manager.ModelExecutionError
		re *manager.RetriesExhaustedError
	)
	switch {
	case errors.As(err, &me):
		failure.ErrorCode, failure.ErrorMessage = me.Code, me.Message
		writeOutcome(w, code, types.StatusNotAcceptable,
			fmt.Sprintf("Failed to perform predictions using model (%s, %d)", name, version), failure)
	case errors.As(err, &re):
		failure.Attempts = re.Attempts
		writeOutcome(w, code, types.StatusException,
			fmt.Sprintf("Failed to perform prediction for model (%s, %d)", name, version), failure)
	default:
		writeOutcome(w, code, statusClass(code), err.Error(), nil)
	}
}

// validatePredictRequest checks the split-orient shape; it returns a message
// for the first problem found.
func validatePredictRequest(req types.PredictRequest) string {
	if len(req.Data) == 0 {
		return "data must contain at least one row"
	}
	if req.Index != nil && len(req.Index) != len(req.Data) {
		return "index length must match the number of rows"
	}
	if len(req.Columns) == 0 {
		return ""
	}
	for i, row := range req.Data {
		if len(row) != len(req.Columns) {
			return fmt.Sprintf("row %d has %d values, expected %d", i, len(row), len(req.Columns))
		}
	}
	return ""
}

// compactJSON strips insignificant whitespace; the body has already been validated.
func compactJSON(b []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return b
	}
	return buf.Bytes()
}

// @Summary      Evict idle models now
// @Tags         serving
// @Produce      json
// @Success      200  {object}  types.Outcome{data=types.SweepData}
// @Router       /serving/sweep [post]
func sweepHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := svc.SweepExpired()
		data := types.SweepData{Evicted: make([]string, 0, len(rep.Evicted))}
		for _, k := range rep.Evicted {
			data.Evicted = append(data.Evicted, k.String())
		}
		if len(rep.Failed) > 0 {
			data.Failed = make(map[string]string, len(rep.Failed))
			for k, err := range rep.Failed {
				data.Failed[k.String()] = err.Error()
			}
		}
		writeOutcome(w, http.StatusOK, types.StatusSuccess, fmt.Sprintf("Evicted %d idle models", len(data.Evicted)), data)
	}
}

// @Summary      Recent lifecycle events
// @Tags         serving
// @Produce      json
// @Success      200  {object}  types.Outcome{data=[]types.ActivityEvent}
// @Router       /serving/activity [get]
func activityHandler(src ActivitySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := []types.ActivityEvent{}
		if src != nil {
			for _, e := range src.Events() {
				out = append(out, types.ActivityEvent{At: e.At.UnixMilli(), Name: e.Name, Model: e.Model, Fields: e.Fields})
			}
		}
		writeOutcome(w, http.StatusOK, types.StatusSuccess, fmt.Sprintf("%d events", len(out)), out)
	}
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
