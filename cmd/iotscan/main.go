package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kroeungcyber/iotscan/internal/adapter/logger"
	"github.com/kroeungcyber/iotscan/internal/authz"
	"github.com/kroeungcyber/iotscan/internal/catalog"
	"github.com/kroeungcyber/iotscan/internal/config"
	"github.com/kroeungcyber/iotscan/internal/domain"
	"github.com/kroeungcyber/iotscan/internal/ops"
	"github.com/kroeungcyber/iotscan/internal/orchestrate"
	"github.com/kroeungcyber/iotscan/internal/store"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

const legalNotice = "LEGAL WARNING: Only test devices you own or have explicit permission to scan. Unauthorized testing may be illegal."

func main() {
	var (
		target      = flag.String("target", "", "Target address: IPv4, IPv6, or hostname (required)")
		opName      = flag.String("op", "", "Named operation to run (see -list)")
		profileName = flag.String("profile", "", "Scan profile to run instead of a named operation")
		deviceHint  = flag.String("device-hint", "", "Declared device vendor hint (e.g. hikvision)")
		configPath  = flag.String("config", "", "Path to YAML config file")
		outPath     = flag.String("out", "", "Write the JSON report to a file instead of stdout")
		listOps     = flag.Bool("list", false, "List named operations and profiles")
		versionFlag = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("iotscan v%s (%s)\n", version, commit)
		return
	}
	if *listOps {
		listOperations()
		return
	}

	if *target == "" {
		fmt.Fprintf(os.Stderr, "Error: -target is required\n\n")
		flag.Usage()
		os.Exit(2)
	}
	if (*opName == "") == (*profileName == "") {
		fmt.Fprintf(os.Stderr, "Error: exactly one of -op or -profile is required\n\n")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		log.WithError(err).Fatal("Failed to load signature catalog")
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.WithError(err).Fatal("Failed to open result store")
	}
	defer st.Close()

	gate := authz.New(authz.Config{
		AllowLocal:        cfg.Authz.AllowLocal,
		ResolveHostnames:  cfg.Authz.ResolveHostnames,
		MaxScansPerWindow: cfg.Authz.MaxScansPerWindow,
		Window:            cfg.Authz.Window(),
	})

	orchestrator := orchestrate.New(log, gate, cat, st)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(os.Stderr, legalNotice)

	tgt := domain.Target{Address: *target, DeviceHint: *deviceHint}
	payload, err := runScan(ctx, orchestrator, *opName, *profileName, tgt)
	if err != nil {
		log.WithError(err).Error("Scan failed")
		os.Exit(1)
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, append(payload, '\n'), 0o644); err != nil {
			log.WithError(err).Fatal("Failed to write report")
		}
		log.WithField("path", *outPath).Info("Report written")
		return
	}
	fmt.Println(string(payload))
}

func runScan(ctx context.Context, orchestrator *orchestrate.Orchestrator, opName, profileName string, target domain.Target) ([]byte, error) {
	if opName != "" {
		return ops.Dispatch(ctx, orchestrator, opName, target)
	}

	profile, err := domain.ParseProfile(profileName)
	if err != nil {
		return nil, err
	}
	result, err := orchestrator.Scan(ctx, domain.ScanRequest{
		Target:      target,
		Profile:     profile,
		RequestedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return ops.Encode(result)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

func listOperations() {
	fmt.Println("Named operations:")
	for _, op := range ops.Operations() {
		fmt.Printf("  %-34s %-16s %s\n", op.Name, op.Profile, op.Description)
	}
	fmt.Println("\nProfiles:")
	for _, p := range domain.Profiles() {
		fmt.Printf("  %s\n", p)
	}
}
