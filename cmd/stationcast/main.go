package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tigerroll/stationcast/internal/app"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// embeddedConfig embeds the application's YAML configuration.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func usage() {
	fmt.Fprintf(os.Stderr, "usage: stationcast [run|inspect] [-input path] [-format parquet|csv]\n")
	fmt.Fprintf(os.Stderr, "       stationcast inspect -input path [-rows n]\n")
}

func main() {
	command := "run"
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "run" || args[0] == "inspect") {
		command, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	fs.Usage = usage
	input := fs.String("input", "", "input file (overrides stationcast.pipeline.input.path)")
	format := fs.String("format", "", "parquet|csv (default: from the file extension)")
	rows := fs.Int("rows", 5, "rows to preview with inspect")
	fs.Parse(args)

	switch command {
	case "inspect":
		if *input == "" {
			usage()
			os.Exit(2)
		}
		if err := app.Inspect(os.Stdout, *input, *format, *rows); err != nil {
			logger.Errorf("Inspect failed: %v", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	run, err := app.RunApplication(ctx, app.Options{
		EnvFilePath:    envFilePath,
		EmbeddedConfig: embeddedConfig,
		InputPath:      *input,
		InputFormat:    *format,
		DBAdapters:     os.Getenv("DB_ADAPTERS"),
	})
	if err != nil {
		logger.Errorf("stationcast run failed: %v", err)
		os.Exit(1)
	}
	logger.Infof("Run %s completed: %s", run.ID, run.ExitStatus)
}
