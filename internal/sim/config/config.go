package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. HEXSIM_BATCH_SIZE.
const EnvPrefix = "HEXSIM"

var ErrInvalid = errors.New("invalid config")

// Config holds the simulation configuration.
type Config struct {
	Seed      int64 `mapstructure:"seed" json:"seed"`
	FrameRate int   `mapstructure:"frame_rate" json:"frame_rate"`

	ScheduleInterval    time.Duration `mapstructure:"schedule_interval" json:"schedule_interval"`
	BatchSize           int           `mapstructure:"batch_size" json:"batch_size"`
	DefaultMoveInterval time.Duration `mapstructure:"default_move_interval" json:"default_move_interval"`
	WanderMin           int           `mapstructure:"wander_min" json:"wander_min"`
	WanderMax           int           `mapstructure:"wander_max" json:"wander_max"`
	Population          int           `mapstructure:"population" json:"population"`

	ChunkCacheSize  int   `mapstructure:"chunk_cache_size" json:"chunk_cache_size"`
	RenderDistance  int   `mapstructure:"render_distance" json:"render_distance"` // window radius in chunks
	FogEnabled      bool  `mapstructure:"fog_enabled" json:"fog_enabled"`
	CullingEnabled  bool  `mapstructure:"culling_enabled" json:"culling_enabled"`
	GenQueue        int   `mapstructure:"gen_queue" json:"gen_queue"`
	OracleCacheSize int64 `mapstructure:"oracle_cache_size" json:"oracle_cache_size"` // 0 disables

	PathWorkers int `mapstructure:"path_workers" json:"path_workers"` // 0 plans inline
	PathQueue   int `mapstructure:"path_queue" json:"path_queue"`
	MaxPathCost int `mapstructure:"max_path_cost" json:"max_path_cost"`

	CameraSpeed float64       `mapstructure:"camera_speed" json:"camera_speed"` // pixels per second
	StatsEvery  time.Duration `mapstructure:"stats_every" json:"stats_every"`
	PresetDir   string        `mapstructure:"preset_dir" json:"preset_dir"`

	LogLevel   string `mapstructure:"log_level" json:"log_level"`
	LogFile    string `mapstructure:"log_file" json:"log_file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		FrameRate:           30,
		ScheduleInterval:    500 * time.Millisecond,
		BatchSize:           50,
		DefaultMoveInterval: 3 * time.Second,
		WanderMin:           2,
		WanderMax:           8,
		Population:          200,
		ChunkCacheSize:      100,
		RenderDistance:      3,
		FogEnabled:          true,
		CullingEnabled:      true,
		GenQueue:            64,
		OracleCacheSize:     1 << 16,
		PathWorkers:         2,
		PathQueue:           256,
		MaxPathCost:         64,
		CameraSpeed:         40,
		StatsEvery:          10 * time.Second,
		LogLevel:            "info",
		MaxSizeMB:           50,
		MaxBackups:          3,
		MaxAgeDays:          14,
	}
}

// Load reads the file at path into cfg and applies HEXSIM_* environment
// overrides. Fields absent from both keep their current value. An empty
// path only applies the environment.
func Load(path string, cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults(cfg) {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func defaults(c *Config) map[string]any {
	return map[string]any{
		"seed":                  c.Seed,
		"frame_rate":            c.FrameRate,
		"schedule_interval":     c.ScheduleInterval,
		"batch_size":            c.BatchSize,
		"default_move_interval": c.DefaultMoveInterval,
		"wander_min":            c.WanderMin,
		"wander_max":            c.WanderMax,
		"population":            c.Population,
		"chunk_cache_size":      c.ChunkCacheSize,
		"render_distance":       c.RenderDistance,
		"fog_enabled":           c.FogEnabled,
		"culling_enabled":       c.CullingEnabled,
		"gen_queue":             c.GenQueue,
		"oracle_cache_size":     c.OracleCacheSize,
		"path_workers":          c.PathWorkers,
		"path_queue":            c.PathQueue,
		"max_path_cost":         c.MaxPathCost,
		"camera_speed":          c.CameraSpeed,
		"stats_every":           c.StatsEvery,
		"preset_dir":            c.PresetDir,
		"log_level":             c.LogLevel,
		"log_file":              c.LogFile,
		"max_size_mb":           c.MaxSizeMB,
		"max_backups":           c.MaxBackups,
		"max_age_days":          c.MaxAgeDays,
	}
}

// Merge replaces cfg with fromFile, then puts back every field whose flag
// name appears in explicitFlags. Flags given on the command line therefore
// win over the file and the environment.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	flags := *cfg
	*cfg = *fromFile

	if explicitFlags["seed"] {
		cfg.Seed = flags.Seed
	}
	if explicitFlags["frame-rate"] {
		cfg.FrameRate = flags.FrameRate
	}
	if explicitFlags["batch-size"] {
		cfg.BatchSize = flags.BatchSize
	}
	if explicitFlags["population"] {
		cfg.Population = flags.Population
	}
	if explicitFlags["render-distance"] {
		cfg.RenderDistance = flags.RenderDistance
	}
	if explicitFlags["chunk-cache"] {
		cfg.ChunkCacheSize = flags.ChunkCacheSize
	}
	if explicitFlags["path-workers"] {
		cfg.PathWorkers = flags.PathWorkers
	}
	if explicitFlags["fog"] {
		cfg.FogEnabled = flags.FogEnabled
	}
	if explicitFlags["culling"] {
		cfg.CullingEnabled = flags.CullingEnabled
	}
	if explicitFlags["presets"] {
		cfg.PresetDir = flags.PresetDir
	}
	if explicitFlags["log-level"] {
		cfg.LogLevel = flags.LogLevel
	}
	if explicitFlags["log-file"] {
		cfg.LogFile = flags.LogFile
	}
}

// Validate reports the first setting that cannot run.
func (c *Config) Validate() error {
	switch {
	case c.FrameRate <= 0:
		return fmt.Errorf("frame_rate %d: %w", c.FrameRate, ErrInvalid)
	case c.ScheduleInterval <= 0:
		return fmt.Errorf("schedule_interval %s: %w", c.ScheduleInterval, ErrInvalid)
	case c.BatchSize <= 0:
		return fmt.Errorf("batch_size %d: %w", c.BatchSize, ErrInvalid)
	case c.DefaultMoveInterval <= 0:
		return fmt.Errorf("default_move_interval %s: %w", c.DefaultMoveInterval, ErrInvalid)
	case c.ChunkCacheSize <= 0:
		return fmt.Errorf("chunk_cache_size %d: %w", c.ChunkCacheSize, ErrInvalid)
	case c.RenderDistance < 0:
		return fmt.Errorf("render_distance %d: %w", c.RenderDistance, ErrInvalid)
	case c.WanderMin < 0 || c.WanderMin > c.WanderMax:
		return fmt.Errorf("wander band %d..%d: %w", c.WanderMin, c.WanderMax, ErrInvalid)
	case c.PathWorkers < 0:
		return fmt.Errorf("path_workers %d: %w", c.PathWorkers, ErrInvalid)
	case c.Population < 0:
		return fmt.Errorf("population %d: %w", c.Population, ErrInvalid)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", c.LogLevel, ErrInvalid)
	}
	return l, nil
}
