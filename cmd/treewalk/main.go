package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/treewalk/internal/logger"
	"github.com/marmos91/treewalk/pkg/catalogue"
	"github.com/marmos91/treewalk/pkg/config"
	"github.com/marmos91/treewalk/pkg/walker"
)

// openLogOutput resolves a logging output name to a writer. "stdout" and
// "stderr" map to the process streams; anything else is treated as a file
// path and opened for append. The returned file is nil for the process
// streams.
func openLogOutput(output string) (*os.File, error) {
	switch output {
	case "stdout":
		logger.SetOutput(os.Stdout)
		return nil, nil
	case "stderr":
		logger.SetOutput(os.Stderr)
		return nil, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		logger.SetOutput(f)
		return f, nil
	}
}

// printLong writes one object per line with its type, file type, length
// and date stamp alongside the full path.
func printLong(it *walker.Iterator) {
	var info catalogue.Info
	objType := it.Info(&info)

	kind := "?"
	switch objType {
	case catalogue.ObjectFile:
		kind = "F"
	case catalogue.ObjectDirectory:
		kind = "D"
	case catalogue.ObjectImage:
		kind = "I"
	}

	fileType := "---"
	if info.FileType != catalogue.FileTypeUntyped {
		fileType = fmt.Sprintf("%03X", info.FileType)
	}

	stamp := "-"
	if !info.DateStamp.IsZero() {
		stamp = info.DateStamp.Time().UTC().Format("2006-01-02 15:04:05")
	}

	fmt.Printf("%s %s %10d  %-19s %s\n", kind, fileType, info.Length, stamp, it.PathString())
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file (default: "+config.GetDefaultConfigPath()+")")
	root := flag.String("root", "", "Catalogue path to walk from (overrides config)")
	pattern := flag.String("pattern", "", "Leaf name pattern, '#' matches one character and '*' any run (overrides config)")
	recurseDirs := flag.Bool("recurse-dirs", false, "Descend into directories (overrides config)")
	recurseImages := flag.Bool("recurse-images", false, "Descend into image containers (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR; overrides config)")
	longListing := flag.Bool("long", false, "Print object type, file type, length and date stamp for each entry")
	initConfig := flag.Bool("init-config", false, "Write a commented default configuration file and exit")
	flag.Parse()

	if *initConfig {
		path := *configPath
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		if err := config.InitConfigToPath(path, false); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Configuration written to %s\n", path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags set on the command line beat both the file and the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Walk.Root = *root
		case "pattern":
			cfg.Walk.Pattern = *pattern
		case "recurse-dirs":
			cfg.Walk.RecurseDirs = *recurseDirs
		case "recurse-images":
			cfg.Walk.RecurseImages = *recurseImages
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})

	logger.SetLevel(cfg.Logging.Level)
	logFile, err := openLogOutput(cfg.Logging.Output)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Catalogue backend: %s", cfg.Catalogue.Type)

	// Cancel the context on SIGINT/SIGTERM so backend requests in flight
	// get interrupted.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reader, closeFn, err := config.CreateCatalogue(ctx, &cfg.Catalogue)
	if err != nil {
		log.Fatalf("Failed to create catalogue: %v", err)
	}
	if closeFn != nil {
		defer func() {
			if err := closeFn(); err != nil {
				logger.Error("Failed to close catalogue: %v", err)
			}
		}()
	}

	it, err := walker.New(reader, cfg.Walk.Root, config.WalkerOptions(&cfg.Walk))
	if err != nil {
		log.Fatalf("Failed to start walk at %s: %v", cfg.Walk.Root, err)
	}
	defer it.Close()

	count := 0
	for !it.IsDrained() {
		select {
		case <-ctx.Done():
			logger.Warn("Walk interrupted at %s", it.PathString())
			return
		default:
		}

		if *longListing {
			printLong(it)
		} else {
			fmt.Println(it.PathString())
		}
		count++

		if err := it.Advance(); err != nil {
			log.Fatalf("Walk failed after %s: %v", it.PathString(), err)
		}
	}

	logger.Info("Walk complete: %d object(s)", count)
}
