// Copyright 2026 The Rewofs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dsiroky/rewofs/internal/clock"
	"github.com/dsiroky/rewofs/internal/config"
	"github.com/dsiroky/rewofs/internal/endpoint"
	"github.com/dsiroky/rewofs/internal/heartbeat"
	"github.com/dsiroky/rewofs/internal/kbridge"
	"github.com/dsiroky/rewofs/internal/loader"
	"github.com/dsiroky/rewofs/internal/server"
	"github.com/dsiroky/rewofs/internal/transport"
	"github.com/dsiroky/rewofs/internal/vfs"
	"github.com/dsiroky/rewofs/internal/watcher"
	"github.com/dsiroky/rewofs/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case config.ModeServer:
		return runServer(ctx, cfg, logger)
	case config.ModeClient:
		return runClient(ctx, cfg, logger)
	default:
		return fmt.Errorf("unreachable: unknown mode %q", cfg.Mode)
	}
}

// runServer listens on cfg.ListenURI and serves cfg.ServeDir to every
// connection it accepts, one server.Server plus one watcher.Watcher
// per connection, until ctx is cancelled.
func runServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ep, err := endpoint.Parse(cfg.ListenURI)
	if err != nil {
		return fmt.Errorf("parsing --listen: %w", err)
	}

	listener, err := net.Listen(ep.Network, ep.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", ep, err)
	}
	logger.Info("rewofs server listening", "endpoint", ep, "dir", cfg.ServeDir)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accepting connection: %w", err)
			}
		}
		logger.Info("client connected", "remote", conn.RemoteAddr())
		go serveConnection(ctx, conn, cfg, logger)
	}
}

func serveConnection(ctx context.Context, conn net.Conn, cfg config.Config, logger *slog.Logger) {
	defer conn.Close()

	clk := clock.Real()
	ser := transport.NewSerializer()
	ignores := watcher.NewTemporalIgnores(watcher.DefaultIgnoreDuration)

	srv := server.New(cfg.ServeDir, ser, ignores, clk, logger)
	if cfg.NumWorkers > 0 {
		srv.SetNumWorkers(cfg.NumWorkers)
	}
	w := watcher.New(cfg.ServeDir, ignores, ser, clk, logger)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- srv.Serve(connCtx, conn) }()
	go func() { errs <- w.Run(connCtx) }()

	if err := <-errs; err != nil {
		logger.Warn("connection ended", "remote", conn.RemoteAddr(), "error", err)
	}
	cancel()
	<-errs
}

// runClient dials cfg.ConnectURI and mounts the remote filesystem at
// cfg.Mountpoint until ctx is cancelled.
func runClient(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ep, err := endpoint.Parse(cfg.ConnectURI)
	if err != nil {
		return fmt.Errorf("parsing --connect: %w", err)
	}

	netConn, err := net.Dial(ep.Network, ep.Address)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", ep, err)
	}
	logger.Info("connected to rewofs server", "endpoint", ep)

	ser := transport.NewSerializer()
	deser := transport.NewDeserializer()
	dist := transport.NewDistributor()
	conn := transport.NewConn(netConn, ser, deser, dist, true, logger)

	remote := vfs.NewRemoteVfs(ser, deser)
	cached := vfs.NewCachedVfs(remote)

	ld := loader.New(ser, deser, cached.Cache(), cfg.PreloadPatterns, logger)
	hb := heartbeat.New(ser, deser, clock.Real(), cfg.HeartbeatPeriod, cfg.HeartbeatTimeout)
	hb.OnChange = func(connected bool) {
		logger.Info("connection state changed", "connected", connected)
		if connected {
			ld.Invalidate()
		}
	}
	dist.Register(wire.KindNotifyChanged, func(wire.Frame) {
		ld.Invalidate()
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Transport threads first, then the background loader and
	// heartbeat, and only once all three are running does the kernel
	// bridge start accepting requests — a FUSE call must never reach
	// CachedVfs/RemoteVfs before the connection is actually reading and
	// writing frames.
	errs := make(chan error, 3)
	go func() { errs <- conn.Run(ctx) }()
	go func() { errs <- ld.Run(ctx) }()
	go func() { errs <- hb.Run(ctx) }()

	ld.Invalidate()

	fuseServer, err := kbridge.Mount(kbridge.Options{
		Mountpoint: cfg.Mountpoint,
		Vfs:        cached,
		AllowOther: cfg.AllowOther,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("mounting FUSE filesystem: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := fuseServer.Unmount(); err != nil {
			logger.Error("failed to unmount FUSE filesystem", "error", err)
		} else {
			logger.Info("FUSE filesystem unmounted", "mountpoint", cfg.Mountpoint)
		}
	}()

	fuseServer.Wait()
	cancel()

	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil && ctx.Err() == nil {
			logger.Warn("background task ended", "error", err)
		}
	}
	return nil
}
