/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Command admitgate runs a demo HTTP service protected by the multi-stage admission checker.
// Window logs are shared through Redis when it's enabled, otherwise an in-process store is used.
package main

import (
	"context"
	"flag"
	"fmt"
	golog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-admitgate/admission"
	"github.com/acronis/go-admitgate/httpserver"
	"github.com/acronis/go-admitgate/httpserver/middleware"
	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/lrucache"
	"github.com/acronis/go-admitgate/profserver"
	"github.com/acronis/go-admitgate/restapi"
	"github.com/acronis/go-admitgate/service"
	"github.com/acronis/go-admitgate/store"
	"github.com/acronis/go-admitgate/store/memstore"
	"github.com/acronis/go-admitgate/store/redisstore"
)

const errDomain = "AdmitGate"

const healthCheckKey = "admitgate:healthz"

func main() {
	cfgPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := runApp(*cfgPath); err != nil {
		golog.Fatal(err)
	}
}

func runApp(cfgPath string) error {
	cfg, err := loadAppConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerClose := log.NewLogger(cfg.Log)
	defer loggerClose()

	metrics := newMetricsRegisterers(restapi.NewResponseErrorsMetrics(""))

	st, storeClose, err := makeStore(cfg.Redis, logger, metrics)
	if err != nil {
		return err
	}
	defer storeClose()

	gate, err := makeGate(cfg.Admission, st, logger, metrics)
	if err != nil {
		return err
	}

	serviceUnits := []service.Unit{
		service.NewWorkerUnitWithOpts(gate.persister, service.WorkerUnitOpts{
			MetricsRegisterer:   metrics,
			GracefulStopTimeout: time.Duration(cfg.Admission.Persist.DrainTimeout + cfg.Admission.Persist.WriteTimeout),
		}),
		service.NewWorkerUnit(service.NewPeriodicWorkerWithOpts(
			gate.sweep, time.Duration(cfg.Admission.Sweep.Interval), logger, service.PeriodicWorkerOpts{Name: "sweeper"})),
		makeHTTPServer(cfg, gate.checker, st, logger),
	}
	if cfg.ProfServer.Enabled {
		serviceUnits = append(serviceUnits, profserver.New(cfg.ProfServer, logger, profserver.Opts{
			DebugHandlers: map[string]http.Handler{"admission/stats": newCacheStatsHandler(gate.checker)},
		}))
	}

	return service.New(logger, service.NewCompositeUnit(serviceUnits...)).Start()
}

func makeStore(cfg *redisstore.Config, logger log.FieldLogger, metrics *metricsRegisterers) (store.Store, func(), error) {
	if cfg.Enabled {
		rs, err := redisstore.Connect(context.Background(), cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("window logs are shared through redis", log.String("address", cfg.Address))
		return rs, func() {
			if closeErr := rs.Close(); closeErr != nil {
				logger.Error("redis client closing error", log.Error(closeErr))
			}
		}, nil
	}

	cacheMetrics := lrucache.NewPrometheusMetricsWithOpts(
		lrucache.PrometheusMetricsOpts{ConstLabels: prometheus.Labels{"cache": "memstore"}})
	metrics.add(cacheMetrics)
	ms, err := memstore.New(memstore.Opts{MetricsCollector: cacheMetrics})
	if err != nil {
		return nil, nil, fmt.Errorf("create in-memory store: %w", err)
	}
	logger.Warn("redis is disabled, window logs are kept in process memory")
	return ms, func() {}, nil
}

type gate struct {
	checker   *admission.Checker
	persister *admission.Persister
	sweep     service.Worker
}

func makeGate(cfg *admission.Config, st store.Store, logger log.FieldLogger, metrics *metricsRegisterers) (*gate, error) {
	admissionMetrics := admission.NewMetricsCollector("")
	cacheMetrics := lrucache.NewPrometheusMetricsWithOpts(
		lrucache.PrometheusMetricsOpts{ConstLabels: prometheus.Labels{"cache": "windows"}})
	metrics.add(admissionMetrics, cacheMetrics)

	suppressor, err := admission.NewWriteSuppressor(st, logger, admission.WriteSuppressorOpts{
		Threshold:        cfg.WriteThreshold,
		MarkerTTL:        time.Duration(cfg.BatchMarkerTTL),
		MetricsCollector: admissionMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create write suppressor: %w", err)
	}

	persister, err := admission.NewPersister(st, suppressor, logger, admission.PersisterOpts{
		Workers:              cfg.Persist.Workers,
		QueueSize:            cfg.Persist.QueueSize,
		MaxWritesPerSecond:   cfg.Persist.MaxWritesPerSecond,
		Burst:                cfg.Persist.Burst,
		RetryAttempts:        cfg.Persist.RetryAttempts,
		RetryInitialInterval: time.Duration(cfg.Persist.RetryInitialInterval),
		WriteTimeout:         time.Duration(cfg.Persist.WriteTimeout),
		DrainTimeout:         time.Duration(cfg.Persist.DrainTimeout),
		MetricsCollector:     admissionMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create persister: %w", err)
	}

	checker, err := admission.NewChecker(cfg.StagesTable(), logger, admission.CheckerOpts{
		Store:                 st,
		Persister:             persister,
		CacheTTL:              time.Duration(cfg.Cache.TTL),
		CacheMaxEntries:       cfg.Cache.MaxEntries,
		StoreReadTimeout:      time.Duration(cfg.Store.ReadTimeout),
		SweepPercent:          cfg.Sweep.Percent,
		MetricsCollector:      admissionMetrics,
		CacheMetricsCollector: cacheMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create admission checker: %w", err)
	}
	logger.Info("admission checker is configured", log.String("stages", cfg.StagesTable().String()),
		log.Bool("dry_run", cfg.DryRun))

	sweeper := checker.Sweeper()
	sweep := service.WorkerFunc(func(ctx context.Context) error {
		if err := sweeper.Run(ctx); err != nil {
			return err
		}
		if ms, ok := st.(*memstore.MemStore); ok {
			if removed := ms.RemoveExpired(); removed > 0 {
				logger.Debug("expired keys removed from in-memory store", log.Int("removed", removed))
			}
		}
		return nil
	})

	return &gate{checker: checker, persister: persister, sweep: sweep}, nil
}

func makeHTTPServer(cfg *AppConfig, checker *admission.Checker, st store.Store, logger log.FieldLogger) *httpserver.HTTPServer {
	admissionMw := middleware.AdmissionWithOpts(checker, errDomain, middleware.AdmissionOpts{
		BypassIdentities: cfg.Admission.BypassIdentities,
		DryRun:           cfg.Admission.DryRun,
		InstanceID:       log.InstanceID(),
	})
	return httpserver.New(cfg.Server, logger, httpserver.Opts{
		ErrorDomain: errDomain,
		HealthCheck: newStoreHealthCheck(st),
		Admission:   admissionMw,
		Routes: func(router chi.Router) {
			router.Get("/", func(rw http.ResponseWriter, r *http.Request) {
				restapi.RespondJSON(rw, map[string]string{
					"message":  "admitted",
					"identity": middleware.GetClientIdentityFromContext(r.Context()),
				}, middleware.GetLoggerFromContext(r.Context()))
			})
		},
	})
}

// newStoreHealthCheck reports whether the store answers. Admission works without it, so only the component is failed.
func newStoreHealthCheck(st store.Store) httpserver.HealthCheck {
	return func(ctx context.Context) (httpserver.HealthCheckResult, error) {
		status := httpserver.HealthCheckStatusOK
		if _, _, err := st.Get(ctx, healthCheckKey); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			status = httpserver.HealthCheckStatusFail
		}
		return httpserver.HealthCheckResult{"store": status}, nil
	}
}

func newCacheStatsHandler(checker *admission.Checker) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		restapi.RespondJSON(rw, checker.CacheStats(time.Now()), middleware.GetLoggerFromContext(r.Context()))
	})
}

type prometheusRegisterer interface {
	MustRegister()
	Unregister()
}

// metricsRegisterers registers all collectors of the process at service start.
type metricsRegisterers struct {
	items []prometheusRegisterer
}

var _ service.MetricsRegisterer = (*metricsRegisterers)(nil)

func newMetricsRegisterers(items ...prometheusRegisterer) *metricsRegisterers {
	return &metricsRegisterers{items: items}
}

func (m *metricsRegisterers) add(items ...prometheusRegisterer) {
	m.items = append(m.items, items...)
}

func (m *metricsRegisterers) MustRegisterMetrics() {
	for _, item := range m.items {
		item.MustRegister()
	}
}

func (m *metricsRegisterers) UnregisterMetrics() {
	for _, item := range m.items {
		item.Unregister()
	}
}
