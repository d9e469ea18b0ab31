// Package bootstrap assembles services from project configuration. It is the
// only place that knows which adapter backs which port.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/openkraft/keeper/internal/adapters/outbound/builder"
	"github.com/openkraft/keeper/internal/adapters/outbound/config"
	"github.com/openkraft/keeper/internal/adapters/outbound/fixer"
	"github.com/openkraft/keeper/internal/adapters/outbound/forge"
	"github.com/openkraft/keeper/internal/adapters/outbound/gitvcs"
	"github.com/openkraft/keeper/internal/adapters/outbound/history"
	"github.com/openkraft/keeper/internal/adapters/outbound/metrics"
	"github.com/openkraft/keeper/internal/adapters/outbound/notify"
	"github.com/openkraft/keeper/internal/adapters/outbound/probe"
	"github.com/openkraft/keeper/internal/adapters/outbound/scanner"
	"github.com/openkraft/keeper/internal/application"
	"github.com/openkraft/keeper/internal/domain"
)

// LoadConfig reads .keeper.yaml with environment overrides.
func LoadConfig(projectPath string) (domain.ProjectConfig, error) {
	return config.New().Load(projectPath)
}

// NewScanService wires every scan probe for cfg.
func NewScanService(cfg domain.ProjectConfig, logger *zap.Logger) *application.ScanService {
	fs := scanner.New(cfg)
	return application.NewScanService(fs, fs.Probes(), logger)
}

// NewRouter builds a router that probes local providers over HTTP. recorder
// may be nil.
func NewRouter(cfg domain.RouterConfig, recorder domain.DecisionRecorder, logger *zap.Logger) *application.RouterService {
	r := application.NewRouterService(cfg, probe.New(nil), logger)
	if recorder != nil {
		r.WithRecorder(recorder)
	}
	return r
}

// OpenHistory opens the project's run history database.
func OpenHistory(projectPath string, cfg domain.ProjectConfig) (*history.Store, error) {
	return history.Open(projectPath, cfg.EffectiveHistoryDB())
}

// Maintenance is a wired maintenance service plus the resources it holds.
type Maintenance struct {
	Service    *application.MaintainService
	Registry   *prometheus.Registry
	Collectors *metrics.Collectors
	history    *history.Store
}

// Close releases the history database.
func (m *Maintenance) Close() error {
	if m.history != nil {
		return m.history.Close()
	}
	return nil
}

// NewMaintenance wires the full pipeline. Optional collaborators are left
// out when their configuration is absent: no api_base means no HTTP metrics
// or notifications, and a directory outside git gets no workspace or publisher.
func NewMaintenance(projectPath string, cfg domain.ProjectConfig, opts application.MaintainOptions, logger *zap.Logger) (*Maintenance, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fs := scanner.New(cfg)
	reg := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(reg)

	deps := application.MaintainDeps{
		Scanner: application.NewScanService(fs, fs.Probes(), logger),
		Fixer:   fixer.New(projectPath, fs, logger),
		Build:   builder.New(projectPath, cfg, logger),
		Logger:  logger,
	}
	m := &Maintenance{Registry: reg, Collectors: collectors}

	// 1. Version control
	if gitvcs.IsGitRepo(projectPath) {
		token := os.Getenv(cfg.EffectiveTokenEnv())
		var opener gitvcs.PROpener
		if token != "" {
			gh := forge.NewGitHub(token)
			if cfg.Publish.APIURL != "" {
				var err error
				if gh, err = gh.WithBaseURL(cfg.Publish.APIURL); err != nil {
					return nil, fmt.Errorf("publish.api_url: %w", err)
				}
			}
			opener = gh
		} else if opts.Publish && !opts.DryRun {
			logger.Warn("no forge token; branch will be pushed without a pull request",
				zap.String("env", cfg.EffectiveTokenEnv()))
		}
		repo := gitvcs.New(projectPath, gitvcs.OptionsFrom(cfg, token), opener, logger)
		deps.Workspace = repo
		if opts.Publish {
			deps.Publisher = repo
		}
	} else {
		logger.Debug("not a git repository; publish disabled", zap.String("path", projectPath))
	}

	// 2. History, also the first metrics sink
	sinks := metrics.Multi{collectors}
	if store, err := OpenHistory(projectPath, cfg); err == nil {
		m.history = store
		deps.History = store
		sinks = append(sinks, store)
	} else {
		logger.Warn("run history unavailable", zap.Error(err))
	}

	// 3. Remote metrics and notifications
	if base := cfg.Maintenance.APIBase; base != "" {
		sinks = append(sinks, metrics.NewHTTPSink(base, nil))
		deps.Notifier = notify.New(base, opts.AgentName, nil)
	}
	if url := cfg.Metrics.PushgatewayURL; url != "" {
		sinks = append(sinks, metrics.NewPushSink(url, "keeper", collectors, reg))
	}
	deps.Metrics = sinks

	m.Service = application.NewMaintainService(deps, opts)
	return m, nil
}
