package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/titiler-go/internal/cfg"
	"github.com/keithlinneman/titiler-go/internal/health"
	"github.com/keithlinneman/titiler-go/internal/httpmw"
	"github.com/keithlinneman/titiler-go/internal/httpserver"
	"github.com/keithlinneman/titiler-go/internal/log"
	"github.com/keithlinneman/titiler-go/internal/metrics"
	"github.com/keithlinneman/titiler-go/internal/mosaic"
	"github.com/keithlinneman/titiler-go/internal/opshttp"
	"github.com/keithlinneman/titiler-go/internal/otelx"
	"github.com/keithlinneman/titiler-go/internal/prof"
	"github.com/keithlinneman/titiler-go/internal/ratelimit"
	"github.com/keithlinneman/titiler-go/internal/secrets"
	"github.com/keithlinneman/titiler-go/internal/tiler"
	v "github.com/keithlinneman/titiler-go/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:             v.AppName,
		Version:         vi.Version,
		Level:           lvl,
		StacktraceLevel: stackLvl,
		JSONFormat:      conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	log.SetDefault(lg)
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"root_path", conf.RootPath,
		"cachecontrol", conf.CacheControl,
		"access_token_enabled", conf.AccessToken != "" || conf.AccessTokenSSMParam != "",
		"debug", conf.Debug,
		"lower_case_query_parameters", conf.LowerCaseQueryParameters,
		"cors_origins", conf.CORSOrigins,
		"mosaic_backends", conf.MosaicBackends,
		"renderer_url", conf.RendererURL,
	)

	// Setup pyroscope profiling
	stopProf, profErr := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"source":    "go-agent",
		},
	})
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	// Insecure because the collector runs on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:  conf.EnableTracing,
		Endpoint: conf.OTLPEndpoint,
		Insecure: true,
		Sample:   conf.TraceSample,
		Service:  v.AppName,
		Version:  vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)
	m.SetProfilingActive(conf.EnablePyroscope && profErr == nil)

	// AWS config is only loaded when an s3:// mosaic or an SSM token is used
	awsConfig := sync.OnceValues(func() (aws.Config, error) {
		return config.LoadDefaultConfig(context.Background())
	})

	token, err := secrets.ResolveAccessToken(ctx, conf.AccessToken, conf.AccessTokenSSMParam,
		func(ctx context.Context) (secrets.SSMAPI, error) {
			c, err := awsConfig()
			if err != nil {
				return nil, err
			}
			return ssm.NewFromConfig(c), nil
		})
	if err != nil {
		// a configured token that cannot be read is fatal
		L.Error(ctx, err, "failed to resolve access token", "ssm_param", conf.AccessTokenSSMParam)
		os.Exit(1)
	}

	pipeline, err := conf.Pipeline(token)
	if err != nil {
		L.Error(ctx, err, "invalid pipeline config")
		os.Exit(1)
	}

	store := mosaic.NewStore(mosaic.Options{
		S3: func(ctx context.Context) (mosaic.S3API, error) {
			c, err := awsConfig()
			if err != nil {
				return nil, err
			}
			return s3.NewFromConfig(c), nil
		},
		Backends: cfg.List(conf.MosaicBackends),
		MaxBytes: conf.MosaicMaxBytes,
		ObserveLoad: func(backend string, d time.Duration) {
			m.ObserveMosaicLoad(backend, d.Seconds())
		},
		Logger: L.With("component", "mosaic"),
	})

	var renderer tiler.Renderer = tiler.Unavailable{}
	if conf.RendererURL != "" {
		rr, err := tiler.NewRemoteRenderer(tiler.RemoteOptions{
			BaseURL: conf.RendererURL,
			Timeout: time.Duration(conf.RendererTimeout) * time.Second,
		})
		if err != nil {
			L.Error(ctx, err, "failed to create renderer client")
			os.Exit(1)
		}
		renderer = rr
	} else {
		L.Warn(ctx, "no renderer configured, dataset endpoints will answer 501")
	}

	api := tiler.NewAPI(tiler.Options{
		Renderer:      renderer,
		Mosaics:       store,
		Title:         conf.Name,
		Version:       vi.Version,
		RootPath:      conf.RootPath,
		DisableCOG:    conf.DisableCOG,
		DisableSTAC:   conf.DisableSTAC,
		DisableMosaic: conf.DisableMosaic,
		OnError:       m.IncRendererError,
		OnTile:        m.IncTile,
	})

	var gate health.ShutdownGate
	readiness := health.All(gate.Probe(), health.Dependency("renderer", rendererProbeTimeout,
		func(ctx context.Context) error {
			_, err := renderer.Versions(ctx)
			return err
		}))

	var rateLimitMW func(next http.Handler) http.Handler
	if conf.RateLimitRPS > 0 {
		limiter := ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
			ratelimit.WithOnDenied(func(ip string) {
				m.IncRateLimitDenied()
			}),
			// logged once per ip until it is evicted
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
			ratelimit.WithOnCapacity(func() {
				m.IncRateLimitCapacity()
				L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
			}),
		)
		rateLimitMW = limiter.Middleware
	}

	httpStop, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		Pipeline:     pipeline,
		Routes:       func(r chi.Router) { api.RegisterRoutes(r) },
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		OnAccessDenied: func(_ *http.Request, d httpmw.Decision) {
			m.IncAccessDenied(d.Reason)
		},
		MetricsMW:    m.Middleware,
		RateLimitMW:  rateLimitMW,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		MaxBodyBytes: conf.MaxBodyBytes,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = httpStop(context.Background()) }()

	// admin listener rejects public peers in middleware as well
	opsStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness so the load balancer drains us
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining", "drain", drainPeriod)

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(drainPeriod):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := httpStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "http server shutdown")
	}
	if err := opsStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
	os.Exit(0)
}

const (
	drainPeriod          = 15 * time.Second
	rendererProbeTimeout = 2 * time.Second
)

func notifySystemd() error {
	// NOTIFY_SOCKET is set when started by systemd with Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
