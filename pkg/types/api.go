package types

// PredictRequest is a tabular payload in split orientation.
type PredictRequest struct {
	// Column names, one per feature.
	// example: ["alcohol","chlorides"]
	Columns []string `json:"columns" example:"alcohol,chlorides"`
	// Optional row index labels.
	Index []any `json:"index,omitempty"`
	// Rows of feature values; every row has len(columns) entries.
	Data [][]any `json:"data"`
}

// Outcome statuses used by every control endpoint.
const (
	StatusSuccess           = "success"
	StatusBadRequest        = "bad_request"
	StatusUnauthorized      = "unauthorized"
	StatusForbidden         = "forbidden"
	StatusNotFound          = "not_found"
	StatusNotAcceptable     = "not_acceptable"
	StatusResourceExhausted = "resource_exhausted"
	StatusException         = "exception"
)

// Outcome is the uniform response envelope of the control surface.
type Outcome struct {
	// Status classification.
	// example: success
	Status string `json:"status" example:"success"`
	// Human readable message.
	// example: Serving ElasticNet_3 on port 5001
	Message string `json:"message" example:"Serving ElasticNet_3 on port 5001"`
	// Operation specific payload; null on most failures.
	Data any `json:"data"`
}

// ServeData is returned by POST /serving/serve.
type ServeData struct {
	// Port the model process listens on.
	// example: 5001
	Port int `json:"port" example:"5001"`
}

// KillData is returned by POST /serving/kill.
type KillData struct {
	ModelName    string `json:"model_name" example:"ElasticNet"`
	ModelVersion int    `json:"model_version" example:"3"`
	// example: 5001
	Port int `json:"port" example:"5001"`
	// example: 12345
	PID int `json:"pid" example:"12345"`
	// Last time the model was served (unix seconds).
	// example: 1700000000
	LastAccess int64 `json:"timestamp" example:"1700000000"`
}

// EndpointInfo describes one live model process.
type EndpointInfo struct {
	ModelName    string `json:"model_name" example:"ElasticNet"`
	ModelVersion int    `json:"model_version" example:"3"`
	// example: 5001
	Port int `json:"port" example:"5001"`
	// example: 12345
	PID int `json:"pid" example:"12345"`
	// Last access time (unix seconds).
	// example: 1700000000
	LastAccess int64 `json:"last_access_unix" example:"1700000000"`
	// Spawn time (unix seconds).
	// example: 1699999000
	StartedAt int64             `json:"started_at_unix" example:"1699999000"`
	Runtime   RuntimeDescriptor `json:"runtime"`
}

// EndpointsData is returned by GET /serving/endpoints, keyed by name_version.
type EndpointsData struct {
	ActiveEndpoints map[string]EndpointInfo `json:"active_endpoints"`
}

// SweepData is returned by POST /serving/sweep.
type SweepData struct {
	// Keys (name_version) evicted by this sweep.
	Evicted []string `json:"evicted"`
	// Keys that could not be evicted, with the reason.
	Failed map[string]string `json:"failed,omitempty"`
}

// ActivityEvent is one entry of GET /serving/activity.
type ActivityEvent struct {
	// Unix milliseconds.
	// example: 1700000000000
	At int64 `json:"at_unix_ms" example:"1700000000000"`
	// example: kill
	Name string `json:"name" example:"kill"`
	// example: ElasticNet_3
	Model  string         `json:"model,omitempty" example:"ElasticNet_3"`
	Fields map[string]any `json:"fields,omitempty"`
}

// PredictionFailure carries the model's own error payload when it rejects a request.
type PredictionFailure struct {
	ModelName    string `json:"model_name"`
	ModelVersion int    `json:"model_version"`
	// example: BAD_REQUEST
	ErrorCode    string `json:"error_code,omitempty" example:"BAD_REQUEST"`
	ErrorMessage string `json:"error_message,omitempty"`
	// Attempts performed before giving up.
	Attempts int `json:"attempts,omitempty"`
	// Request id assigned by the HTTP layer.
	RequestID string `json:"request_id,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// example: 2
	LiveModels int `json:"live_models" example:"2"`
	// 0 means uncapped.
	// example: 5
	MaxConcurrentModels int `json:"max_concurrent_models" example:"5"`
	// example: 997
	FreePorts int `json:"free_ports" example:"997"`
	// example: 5001
	MinPort int `json:"min_port" example:"5001"`
	// example: 5999
	MaxPort int `json:"max_port" example:"5999"`
	// example: 300
	TTLSeconds int64 `json:"ttl_seconds" example:"300"`
	// example: 6
	MaxRetries int `json:"max_retries" example:"6"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// example: 12
	SpawnsTotal uint64 `json:"spawns_total" example:"12"`
	// example: 5
	EvictionsTotal uint64         `json:"evictions_total" example:"5"`
	Endpoints      []EndpointInfo `json:"endpoints"`
}
