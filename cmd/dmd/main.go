package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	get "github.com/hashicorp/go-getter"

	"github.com/OCharnyshevich/hexworld/internal/sim/config"
	"github.com/OCharnyshevich/hexworld/internal/sim/entity"
	"github.com/OCharnyshevich/hexworld/internal/sim/preset"
	"github.com/OCharnyshevich/hexworld/internal/sim/terrain"
)

func main() {
	var (
		base   = flag.String("base", "https://github.com/OCharnyshevich/hexworld-presets.git", "base url")
		bundle = flag.String("bundle", "default", "preset bundle name")
		out    = flag.String("o", "./presets", "output dir path")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if *out == "" {
		log.Error("output dir path required")
		os.Exit(2)
	}
	if *bundle == "" {
		log.Error("bundle required")
		os.Exit(2)
	}

	path := filepath.Join(*out, *bundle)
	if err := os.RemoveAll(path); err != nil {
		log.Error("clean output", "path", path, "error", err)
		os.Exit(1)
	}

	log.Info("start downloading presets", "path", path)

	url := fmt.Sprintf("git::%s//bundles/%s", *base, *bundle)
	if err := get.Get(path, url); err != nil {
		log.Error("download presets", "url", url, "error", err)
		os.Exit(1)
	}

	store, err := preset.New(path, log)
	if err != nil {
		log.Error("open presets", "error", err)
		os.Exit(1)
	}
	types, err := store.Load()
	if err != nil {
		log.Error("load presets", "error", err)
		os.Exit(1)
	}
	cfg := config.DefaultConfig()
	def := entity.TypeInfo{
		Class:        terrain.ClassLand,
		MoveInterval: cfg.DefaultMoveInterval,
		WanderMin:    cfg.WanderMin,
		WanderMax:    cfg.WanderMax,
	}
	if _, err := preset.Table(types, def); err != nil {
		log.Error("invalid presets", "error", err)
		os.Exit(1)
	}
	// Rewrite in canonical form.
	if err := store.Save(types); err != nil {
		log.Error("save presets", "error", err)
		os.Exit(1)
	}

	log.Info("done downloading presets", "path", path, "types", len(types))
}
