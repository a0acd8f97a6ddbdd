// Caninana
// Copyright (c) 2026, Caninana contributors

// Command caninana is a signature-based file scanner: it inspects files
// for known-bad content, quarantines threats, and keeps its signature
// database up to date.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/NeowayLabs/wabbit"
	"github.com/NeowayLabs/wabbit/amqp"
	log "github.com/sirupsen/logrus"

	"github.com/caninana/caninana/engine"
	"github.com/caninana/caninana/fileanalyzer"
	"github.com/caninana/caninana/logging"
	"github.com/caninana/caninana/quarantine"
	"github.com/caninana/caninana/scancache"
	"github.com/caninana/caninana/signature"
	"github.com/caninana/caninana/updater"
	"github.com/caninana/caninana/verdictbus"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: caninana <scan|quarantine|restore|list|update> [flags] [args]")
	flag.PrintDefaults()
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := logging.OpenDefault()
	defer logger.Close()

	switch os.Args[1] {
	case "scan":
		runScan(logger, os.Args[2:])
	case "quarantine":
		runQuarantine(logger, os.Args[2:])
	case "restore":
		runRestore(logger, os.Args[2:])
	case "list":
		runList(logger, os.Args[2:])
	case "update":
		runUpdate(logger, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func loadEngine(dbPath string, logger *logging.Logger) *engine.Engine {
	store := signature.New()
	if err := store.Load(dbPath); err != nil {
		log.Fatalf("failed to load signature database %s: %v", dbPath, err)
	}
	return engine.New(store, logger)
}

func runScan(logger *logging.Logger, args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	dbPath := fs.String("db", "signatures.json", "Path to the signature database")
	cachePath := fs.String("cache", "", "Path to the scan result cache (disabled if empty)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: caninana scan [flags] <path>")
		os.Exit(2)
	}
	path := fs.Arg(0)

	e := loadEngine(*dbPath, logger)
	cache := openCache(*cachePath)
	if cache != nil {
		defer cache.Close()
	}

	result, err := e.ScanPath(path, cache)
	if err != nil {
		log.Fatalf("failed to scan %s: %v", path, err)
	}
	printResult(path, result)

	if result.ThreatDetected {
		os.Exit(1)
	}
}

// openCache opens the scan result cache at path, or returns nil if path is
// empty (caching disabled).
func openCache(path string) *scancache.Cache {
	if path == "" {
		return nil
	}
	cache, err := scancache.Open(path)
	if err != nil {
		log.Fatalf("failed to open scan cache %s: %v", path, err)
	}
	return cache
}

func printResult(path string, result engine.ScanResult) {
	fmt.Printf("%s: %s threat_detected=%v signatures=%v severity=%d\n",
		path, result.Status, result.ThreatDetected, result.DetectedSignatures, result.MaxSeverity)
}

func newPublisher(amqpURI string, logger *logging.Logger) verdictbus.Publisher {
	if amqpURI == "" {
		return verdictbus.NullPublisher{}
	}
	pub, err := verdictbus.NewAMQPPublisher(amqpURI, "caninana", "caninana", "caninana", logger,
		func(url string) (wabbit.Conn, string, error) {
			conn, err := amqp.Dial(url)
			return conn, "fanout", err
		})
	if err != nil {
		log.Warnf("could not connect to verdict bus at %s: %v", amqpURI, err)
		return verdictbus.NullPublisher{}
	}
	return pub
}

func runQuarantine(logger *logging.Logger, args []string) {
	fs := flag.NewFlagSet("quarantine", flag.ExitOnError)
	dbPath := fs.String("db", "signatures.json", "Path to the signature database")
	root := fs.String("root", "", "Quarantine root directory (defaults to $HOME/.caninana)")
	cachePath := fs.String("cache", "", "Path to the scan result cache (disabled if empty)")
	amqpURI := fs.String("amqp", "", "AMQP broker address for verdict publishing (disabled if empty)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: caninana quarantine [flags] <path>")
		os.Exit(2)
	}
	path := fs.Arg(0)

	e := loadEngine(*dbPath, logger)
	cache := openCache(*cachePath)
	if cache != nil {
		defer cache.Close()
	}

	result, err := e.ScanPath(path, cache)
	if err != nil {
		log.Fatalf("failed to scan %s: %v", path, err)
	}

	info, err := fileanalyzer.New().Analyze(path)
	if err != nil {
		log.Fatalf("failed to analyze %s: %v", path, err)
	}

	publisher := newPublisher(*amqpURI, logger)
	defer publisher.Close()
	_ = publisher.Publish(verdictbus.VerdictEvent{
		Path:       path,
		FileInfo:   info,
		ScanResult: result,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})

	if !result.ThreatDetected {
		fmt.Println("clean, nothing to quarantine")
		return
	}

	mgr, err := quarantine.New(*root, quarantine.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to initialize quarantine: %v", err)
	}
	entry, err := mgr.Quarantine(path, result)
	if err != nil {
		log.Fatalf("quarantine failed: %v", err)
	}
	fmt.Printf("quarantined %s as %s (threat: %s)\n", path, entry.QuarantineID, entry.ThreatName)
}

func runRestore(logger *logging.Logger, args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	root := fs.String("root", "", "Quarantine root directory (defaults to $HOME/.caninana)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: caninana restore [flags] <quarantine-id>")
		os.Exit(2)
	}

	mgr, err := quarantine.New(*root, quarantine.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to initialize quarantine: %v", err)
	}
	if err := mgr.Restore(fs.Arg(0)); err != nil {
		log.Fatalf("restore failed: %v", err)
	}
	fmt.Println("restored", fs.Arg(0))
}

func runList(logger *logging.Logger, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	root := fs.String("root", "", "Quarantine root directory (defaults to $HOME/.caninana)")
	fs.Parse(args)

	mgr, err := quarantine.New(*root, quarantine.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to initialize quarantine: %v", err)
	}
	for _, entry := range mgr.List() {
		fmt.Printf("%s\t%s\t%s\t%s\n", entry.QuarantineID, entry.QuarantineDate, entry.ThreatName, entry.OriginalPath)
	}
}

func runUpdate(logger *logging.Logger, args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	dbPath := fs.String("db", "signatures.json", "Path to the signature database")
	baseURL := fs.String("url", "", "Base URL of the signature distribution point")
	fs.Parse(args)
	if *baseURL == "" {
		fmt.Fprintln(os.Stderr, "usage: caninana update -url <base-url> [-db path]")
		os.Exit(2)
	}

	u := updater.New(*baseURL, logger)
	updated, err := u.CheckForUpdates(*dbPath)
	if err != nil {
		log.Fatalf("update failed: %v", err)
	}
	if updated {
		fmt.Println("signature database updated")
	} else {
		fmt.Println("signature database already up to date")
	}
}
