package types

import "strconv"

// ModelKey identifies a servable model version.
type ModelKey struct {
	// Registered model name.
	// example: ElasticNet
	Name string `json:"model_name" example:"ElasticNet"`
	// Registered model version.
	// example: 3
	Version int `json:"model_version" example:"3"`
}

// String renders the key as name_version, the form used in endpoint listings.
func (k ModelKey) String() string {
	return k.Name + "_" + strconv.Itoa(k.Version)
}

// RuntimeDescriptor describes how a model version runs. It is opaque to the
// orchestrator and only surfaced for diagnostics.
type RuntimeDescriptor struct {
	// Model flavor recorded by the registry.
	// example: sklearn
	Flavor string `json:"flavor,omitempty" yaml:"flavor" toml:"flavor" example:"sklearn"`
	// Environment manager used to materialize dependencies.
	// example: local
	EnvManager string `json:"env_manager,omitempty" yaml:"env_manager" toml:"env_manager" example:"local"`
	// Artifact URI the process loads.
	// example: models:/ElasticNet/3
	ModelURI string `json:"model_uri,omitempty" yaml:"model_uri" toml:"model_uri" example:"models:/ElasticNet/3"`
	// Python version pinned by the model environment, when known.
	// example: 3.10.12
	PythonVersion string `json:"python_version,omitempty" yaml:"python_version" toml:"python_version" example:"3.10.12"`
	// Storage location of the registered artifacts, when the registry reports it.
	// example: s3://mlflow/1/0a1b2c/artifacts/model
	Source string `json:"source,omitempty" yaml:"source" toml:"source" example:"s3://mlflow/1/0a1b2c/artifacts/model"`
	// Run that produced the model version.
	// example: 0a1b2c
	RunID string `json:"run_id,omitempty" yaml:"run_id" toml:"run_id" example:"0a1b2c"`
}

// LaunchPlan is what an artifact resolver returns for a model version: the
// command that starts an HTTP scoring server and the runtime it belongs to.
// Command arguments may contain the {port} and {host} placeholders, which are
// substituted by the orchestrator once a port is allocated.
type LaunchPlan struct {
	Command []string
	Env     []string
	Dir     string
	Runtime RuntimeDescriptor
}
