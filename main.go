package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/wfunc/blockroom/broadcast"
	"github.com/wfunc/blockroom/config"
	"github.com/wfunc/blockroom/logger"
	"github.com/wfunc/blockroom/monitor"
	"github.com/wfunc/blockroom/persistence"
	"github.com/wfunc/blockroom/puzzle"
	"github.com/wfunc/blockroom/room"
	"github.com/wfunc/blockroom/rpc"
	"github.com/wfunc/blockroom/server"
	"github.com/wfunc/blockroom/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Development)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Room directory
	dir, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to open room directory: %v", err)
	}
	defer dir.Close()
	logger.Log.Infof("Room directory: %s", cfg.Database.Driver)

	mon := monitor.NewMonitor("blockroom")
	metrics := mon.Metrics()

	rooms := room.NewRoomManager(ctx, room.Options{
		Mode:        room.Mode(cfg.Room.Mode),
		InboxSize:   cfg.Room.InboxSize,
		Broadcaster: broadcast.NewRoomBroadcaster(metrics.BroadcastsSent, metrics.BroadcastFailures),
		Recorder:    mon,
		Rules: puzzle.Rules{
			LinesPerLevel:       cfg.Game.LinesPerLevel,
			RerollGameOverProbe: cfg.Game.RerollGameOverProbe,
		},
		Seed:            cfg.Game.Seed,
		MinTickInterval: cfg.Game.MinTickInterval,
		ServerLocation:  cfg.Server.ServerLocation,
	}, cfg.Room.IdleTimeout)

	roomService := services.NewRoomService(dir, cfg.Room.Mode, cfg.Room.RequireRegistered)
	gameServer := server.NewGameServer(cfg.Server, rooms, roomService, mon)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gameServer.Run(gctx) })
	g.Go(func() error { return rooms.RunSweeper(gctx, cfg.Room.SweepInterval) })

	if cfg.Server.RPCAddress != "" {
		rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
		if err != nil {
			logger.Log.Fatalf("Failed to create RPC server: %v", err)
		}
		if err := rpcServer.Register(rpc.NewRoomAdmin(rooms, 0)); err != nil {
			logger.Log.Fatalf("Failed to register RPC service: %v", err)
		}
		g.Go(rpcServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			rpcServer.Stop()
			return nil
		})
	}

	if cfg.Server.GRPCAddress != "" {
		health, err := rpc.NewHealthServer(cfg.Server.GRPCAddress)
		if err != nil {
			logger.Log.Fatalf("Failed to create gRPC health server: %v", err)
		}
		health.SetServing(true)
		g.Go(health.Start)
		g.Go(func() error {
			<-gctx.Done()
			health.SetServing(false)
			health.Stop()
			return nil
		})
	}

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := g.Wait(); err != nil {
		logger.Log.Errorf("Server stopped: %v", err)
	}
	rooms.Shutdown()
	logger.Log.Info("Shutdown complete.")
}
