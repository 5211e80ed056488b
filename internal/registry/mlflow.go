package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"servingd/pkg/types"
)

const (
	mlflowLookupTimeout  = 10 * time.Second
	mlflowMaxReplyBytes  = 1 << 20
	mlflowLogModelTag    = "mlflow.log-model.history"
	mlflowNotFoundCode   = "RESOURCE_DOES_NOT_EXIST"
	mlflowStatusReady    = "READY"
	mlflowPyfuncFlavor   = "python_function"
	mlflowModelVersionEP = "/api/2.0/mlflow/model-versions/get"
	mlflowRunEP          = "/api/2.0/mlflow/runs/get"
)

// MLflowResolver serves registered models through the MLflow CLI:
//
//	mlflow models serve -m models:/NAME/VERSION -h {host} -p {port} --env-manager MANAGER
//
// When TrackingURI is an http(s) URL the model version is looked up in the
// registry first, so unknown versions fail with ErrNotFound instead of
// spawning a process that exits at once. Other tracking URIs (databricks,
// file stores) are left to the CLI.
type MLflowResolver struct {
	// Bin is the mlflow executable; default "mlflow".
	Bin string
	// EnvManager is passed to --env-manager; default "local".
	EnvManager  string
	TrackingURI string
	// Workers sets --workers when > 0.
	Workers int
	// ExtraArgs are appended verbatim.
	ExtraArgs []string
	// Client queries the tracking server; nil uses a client with a 10s timeout.
	Client *http.Client
}

func (r *MLflowResolver) Resolve(ctx context.Context, key types.ModelKey) (types.LaunchPlan, error) {
	if err := ctx.Err(); err != nil {
		return types.LaunchPlan{}, err
	}
	if strings.TrimSpace(key.Name) == "" {
		return types.LaunchPlan{}, errors.New("mlflow: model name is empty")
	}
	if key.Version < 1 {
		return types.LaunchPlan{}, notFound(key)
	}
	bin := r.Bin
	if bin == "" {
		bin = "mlflow"
	}
	envManager := r.EnvManager
	if envManager == "" {
		envManager = "local"
	}
	uri := fmt.Sprintf("models:/%s/%d", key.Name, key.Version)
	runtime := types.RuntimeDescriptor{EnvManager: envManager, ModelURI: uri}
	if base, ok := r.restBase(); ok {
		if err := r.describe(ctx, base, key, &runtime); err != nil {
			return types.LaunchPlan{}, err
		}
	}

	cmd := []string{bin, "models", "serve", "-m", uri, "-h", "{host}", "-p", "{port}", "--env-manager", envManager}
	if r.Workers > 0 {
		cmd = append(cmd, "--workers", strconv.Itoa(r.Workers))
	}
	cmd = append(cmd, r.ExtraArgs...)
	var env []string
	if r.TrackingURI != "" {
		env = append(env, "MLFLOW_TRACKING_URI="+r.TrackingURI)
	}
	return types.LaunchPlan{Command: cmd, Env: env, Runtime: runtime}, nil
}

// restBase returns the REST root of the tracking server, if it has one.
func (r *MLflowResolver) restBase() (string, bool) {
	u, err := url.Parse(strings.TrimSpace(r.TrackingURI))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return strings.TrimRight(u.String(), "/"), true
}

// describe checks that key is registered and ready, and fills rt from the
// registry. Flavor and Python version come from the producing run and are
// best effort.
func (r *MLflowResolver) describe(ctx context.Context, base string, key types.ModelKey, rt *types.RuntimeDescriptor) error {
	q := url.Values{"name": {key.Name}, "version": {strconv.Itoa(key.Version)}}
	status, body, err := r.get(ctx, base+mlflowModelVersionEP+"?"+q.Encode())
	if err != nil {
		return fmt.Errorf("mlflow: lookup %s: %w", key, err)
	}
	if code := gjson.GetBytes(body, "error_code").String(); code == mlflowNotFoundCode {
		return notFound(key)
	}
	if status != http.StatusOK {
		return fmt.Errorf("mlflow: lookup %s: http %d: %s", key, status, gjson.GetBytes(body, "message").String())
	}
	mv := gjson.GetBytes(body, "model_version")
	if !mv.IsObject() {
		return fmt.Errorf("mlflow: lookup %s: response has no model_version", key)
	}
	if st := mv.Get("status").String(); st != "" && st != mlflowStatusReady {
		return fmt.Errorf("mlflow: model version %s is %s", key, st)
	}
	rt.Source = mv.Get("source").String()
	rt.RunID = mv.Get("run_id").String()
	if rt.RunID != "" {
		r.describeRun(ctx, base, rt)
	}
	return nil
}

// describeRun reads the flavors logged with the model from the run's
// log-model history tag.
func (r *MLflowResolver) describeRun(ctx context.Context, base string, rt *types.RuntimeDescriptor) {
	status, body, err := r.get(ctx, base+mlflowRunEP+"?"+url.Values{"run_id": {rt.RunID}}.Encode())
	if err != nil || status != http.StatusOK {
		return
	}
	hist := gjson.GetBytes(body, `run.data.tags.#(key=="`+mlflowLogModelTag+`").value`)
	if !hist.Exists() {
		return
	}
	entries := gjson.Parse(hist.String()).Array()
	if len(entries) == 0 {
		return
	}
	logged := entries[len(entries)-1]
	for _, e := range entries {
		if p := e.Get("artifact_path").String(); p != "" && strings.HasSuffix(rt.Source, "/"+p) {
			logged = e
		}
	}
	flavors := logged.Get("flavors")
	rt.PythonVersion = flavors.Get(mlflowPyfuncFlavor + ".python_version").String()
	flavors.ForEach(func(name, _ gjson.Result) bool {
		if name.String() != mlflowPyfuncFlavor {
			rt.Flavor = name.String()
			return false
		}
		return true
	})
	if rt.Flavor == "" && flavors.Get(mlflowPyfuncFlavor).Exists() {
		rt.Flavor = mlflowPyfuncFlavor
	}
}

func (r *MLflowResolver) get(ctx context.Context, target string) (int, []byte, error) {
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: mlflowLookupTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, mlflowMaxReplyBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
