// Package prof starts continuous profiling and tags profile samples with
// the kind of raster work being done.
package prof

import (
	"context"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/titiler-go/internal/log"
	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

type Options struct {
	Enabled              bool
	AppName              string
	ServerAddress        string
	AuthToken            string
	TenantID             string
	Tags                 map[string]string
	ProfileMutexFraction int
	BlockProfileRate     int
}

// Start returns a stop func that is always safe to call, even on error.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)
	noop := func() {}

	if !opts.Enabled {
		L.Info(ctx, "pyroscope disabled")
		return noop, nil
	}
	if opts.ServerAddress == "" {
		err := xerrors.Newf("invalid server address (%q)", opts.ServerAddress)
		L.Error(ctx, err, "pyroscope options")
		return noop, err
	}

	if opts.ProfileMutexFraction > 0 {
		runtime.SetMutexProfileFraction(opts.ProfileMutexFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}

	cfg := pyroscope.Config{
		ApplicationName: opts.AppName,
		ServerAddress:   opts.ServerAddress,
		AuthToken:       opts.AuthToken,
		TenantID:        opts.TenantID,
		Tags:            opts.Tags,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		},
	}

	profiler, err := pyroscope.Start(cfg)
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "server_address", opts.ServerAddress, "app_name", opts.AppName)
		return noop, xerrors.Wrap(err, "start pyroscope")
	}
	L.Info(ctx, "pyroscope started", "server_address", opts.ServerAddress, "app_name", opts.AppName)

	return func() {
		_ = profiler.Stop()
		L.Info(context.Background(), "pyroscope stopped", "server_address", opts.ServerAddress)
	}, nil
}

// Do runs fn with pprof labels for the dataset kind and operation.
func Do(ctx context.Context, kind, op string, fn func(context.Context)) {
	pyroscope.TagWrapper(ctx, pyroscope.Labels("dataset_kind", kind, "operation", op), fn)
}
