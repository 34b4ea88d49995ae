// hilowcreate rebuilds the high/low summary database from the archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/chrissnell/wxrollup/internal/app"
	"github.com/chrissnell/wxrollup/internal/hilow"
	"github.com/chrissnell/wxrollup/internal/log"
	"github.com/chrissnell/wxrollup/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	output := flag.String("output", "", "HILOW database to create (default: hilow-path from the configuration)")
	dump := flag.Bool("dump", false, "Print every bucket after rebuilding")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filename, _ := filepath.Abs(*cfgFile)
	cfg, err := config.Load(config.NewYAMLProvider(filename))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *output != "" {
		cfg.Storage.HiLowPath = *output
	}
	if err := run(cfg, *dump); err != nil {
		log.Errorf("HILOW rebuild failed: %v", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.ConfigData, dump bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	logger := log.GetSugaredLogger()

	arch, err := app.OpenArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer arch.Close()

	hl, err := hilow.Open(ctx, cfg.Storage.HiLowPath, arch, loc, logger)
	if err != nil {
		return err
	}
	defer hl.Close()

	start := time.Now()
	if err := hl.Rebuild(ctx, start); err != nil {
		return err
	}
	log.Infof("rebuilt %s in %v", cfg.Storage.HiLowPath, time.Since(start).Round(time.Millisecond))

	if dump {
		out, err := hl.Dump(ctx)
		if err != nil {
			return err
		}
		fmt.Print(out)
	}
	return nil
}
