package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/OCharnyshevich/hexworld/internal/sim"
	"github.com/OCharnyshevich/hexworld/internal/sim/config"
)

func main() {
	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "config file (yaml, json or toml)")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "world seed")
	flag.IntVar(&cfg.FrameRate, "frame-rate", cfg.FrameRate, "frames per second")
	flag.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "entities considered per scheduler tick")
	flag.IntVar(&cfg.Population, "population", cfg.Population, "units spawned at start")
	flag.IntVar(&cfg.RenderDistance, "render-distance", cfg.RenderDistance, "visible window radius in chunks")
	flag.IntVar(&cfg.ChunkCacheSize, "chunk-cache", cfg.ChunkCacheSize, "maximum loaded chunks")
	flag.IntVar(&cfg.PathWorkers, "path-workers", cfg.PathWorkers, "pathfinding workers (0 plans inline)")
	flag.BoolVar(&cfg.FogEnabled, "fog", cfg.FogEnabled, "enable fog of war")
	flag.BoolVar(&cfg.CullingEnabled, "culling", cfg.CullingEnabled, "skip entities outside the visible window")
	flag.StringVar(&cfg.PresetDir, "presets", cfg.PresetDir, "directory containing types.json")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "also write logs to this rotating file")
	flag.Parse()

	bootLog := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		bootLog.Error("load .env", "error", err)
		os.Exit(1)
	}

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fromFile := config.DefaultConfig()
	if err := config.Load(*configPath, fromFile); err != nil {
		bootLog.Error("load config", "error", err)
		os.Exit(1)
	}
	config.Merge(cfg, fromFile, explicit)

	level, err := cfg.Level()
	if err != nil {
		bootLog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		defer rotator.Close()
		out = io.MultiWriter(os.Stdout, rotator)
	}
	log := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := sim.New(cfg, log)
	if err != nil {
		log.Error("create simulation", "error", err)
		os.Exit(1)
	}
	if err := s.Run(ctx); err != nil {
		log.Error("simulation error", "error", err)
		os.Exit(1)
	}
}
