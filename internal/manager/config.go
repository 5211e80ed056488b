package manager

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultHost          = "127.0.0.1"
	defaultMinPort       = 5001
	defaultMaxPort       = 5999
	defaultTTL           = 300 * time.Second
	defaultMaxRetries    = 6
	defaultBackoffBase   = time.Second
	defaultInvokeTimeout = 60 * time.Second
	defaultKillGrace     = 5 * time.Second
)

// MaxRetriesLimit is the largest accepted MaxRetries.
const MaxRetriesLimit = 20

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Resolver turns a model key into a launch plan. Required.
	Resolver ArtifactResolver
	// Launcher starts processes; defaults to an ExecLauncher.
	Launcher  Launcher
	Publisher EventPublisher
	Logger    *zerolog.Logger

	// Host model processes bind to and are invoked on.
	Host    string
	MinPort int
	MaxPort int
	// TTL is the idle time after which a process is swept.
	TTL time.Duration
	// MaxConcurrentModels caps live processes; 0 means uncapped.
	MaxConcurrentModels int
	// MaxRetries is the number of invocation attempts per prediction; 0
	// selects the default and values above MaxRetriesLimit are rejected.
	MaxRetries    int
	BackoffBase   time.Duration
	InvokeTimeout time.Duration
	KillGrace     time.Duration
	HTTPClient    *http.Client
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) (*Manager, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("manager: resolver is required")
	}
	if cfg.MaxConcurrentModels < 0 {
		return nil, errors.New("manager: max concurrent models must be >= 0")
	}
	if cfg.MaxRetries < 0 || cfg.MaxRetries > MaxRetriesLimit {
		return nil, fmt.Errorf("manager: max retries must be in 0..%d", MaxRetriesLimit)
	}
	// Apply defaults if unset
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = defaultHost
	}
	if cfg.MinPort == 0 && cfg.MaxPort == 0 {
		cfg.MinPort, cfg.MaxPort = defaultMinPort, defaultMaxPort
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = defaultInvokeTimeout
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = defaultKillGrace
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.Launcher == nil {
		cfg.Launcher = NewExecLauncher(cfg.Logger)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	if cfg.HTTPClient == nil {
		// Timeout stays 0: every invocation carries its own deadline.
		cfg.HTTPClient = &http.Client{Timeout: 0}
	}
	ports, err := NewPortPool(cfg.MinPort, cfg.MaxPort)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:       cfg,
		log:       *cfg.Logger,
		ports:     ports,
		records:   NewProcessRegistry(),
		publisher: cfg.Publisher,
		spawns:    &singleflight.Group{},
		now:       time.Now,
		sleep:     sleepCtx,
	}
	m.startTime = m.now()
	updateGauges(m)
	return m, nil
}
