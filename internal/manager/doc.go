// Package manager owns the lifecycle of model serving processes. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, readiness and small accessors.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: ServingRecord and the results returned by Serve/Kill/Sweep.
//   - errors.go: error types and helpers (IsResourceExhausted, IsNotFound, ...).
//   - ports.go: PortPool, the free-list of TCP ports handed to processes.
//   - records.go: ProcessRegistry, the key -> live process table.
//   - launcher.go, procgroup_*.go: Launcher/Process capability and the exec-based default.
//   - ensure.go: Serve, the ensure-and-spawn path.
//   - unload.go: Kill and StopAll.
//   - evict.go: LRU eviction at capacity and TTL sweeps.
//   - sweeper.go: periodic TTL sweeper.
//   - predict.go, invoke.go: prediction proxy with bounded retries and backoff.
//   - status_report.go: ListEndpoints and Status.
//   - events.go, eventpub_ring.go, metrics.go: observability.
//
// All state lives in a Manager value; there are no package-level singletons
// apart from the Prometheus collectors.
package manager
