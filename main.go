package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/testharness/orchestrator/config"
	"github.com/testharness/orchestrator/data"
	"github.com/testharness/orchestrator/framework"
	"github.com/testharness/orchestrator/framework/suite"
	"github.com/testharness/orchestrator/testcase"
)

// version can be set during build with -ldflags
var version = "dev"

var errTestsFailed = errors.New("some tests failed")

func main() {
	var params commandParams
	cmd := newRootCommand(&params, run)
	cmd.Version = version
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(params *commandParams) error {
	if params.skipFile != "" {
		if err := loadSuppressions(params); err != nil {
			return err
		}
	}

	// endpoint output is attributed to the running test case unless it is all going to stdout
	var endpointLogger *framework.CapturingLogger
	var mainDebugLogger framework.Logger
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		endpointLogger = &framework.CapturingLogger{}
		mainDebugLogger = endpointLogger
	}

	cfg, err := config.Load(params.configFile)
	if err != nil {
		return err
	}
	cases, err := data.LoadTestCases(os.DirFS(params.testsDir), ".")
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d test case(s) from %s\n", len(cases), params.testsDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := config.NewEnvironment(ctx, cfg, mainDebugLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := env.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close endpoints: %s\n", err)
		}
	}()
	if err := env.Start(); err != nil {
		return err
	}

	testLogger := buildTestLogger(params)
	suite.PrintFilterDescription(params.filters)

	var options []testcase.ExecutorOption
	if cfg.ReceiveTimeoutMs > 0 {
		options = append(options, testcase.WithReceiveTimeout(cfg.ReceiveTimeout()))
	}
	if cfg.MaxParallel > 0 {
		options = append(options, testcase.WithMaxParallel(cfg.MaxParallel))
	}

	results, err := suite.Run(ctx, env.Router, cases, suite.Configuration{
		Filter:          params.filters,
		TestLogger:      testLogger,
		EndpointLogger:  endpointLogger,
		ExecutorOptions: options,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	if err := testLogger.EndLog(results); err != nil {
		return fmt.Errorf("error writing log: %w", err)
	}

	if params.recordFailures != "" {
		if err := recordFailures(params.recordFailures, results); err != nil {
			return err
		}
	}

	if !results.OK() {
		return errTestsFailed
	}
	return nil
}

func buildTestLogger(params *commandParams) suite.TestLogger {
	consoleLogger := suite.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	loggers := []suite.TestLogger{consoleLogger}
	if params.jUnitFile != "" {
		loggers = append(loggers, suite.NewJUnitTestLogger(params.jUnitFile, params.filters, map[string]string{
			"harness.config": params.configFile,
			"harness.tests":  params.testsDir,
		}))
	}
	if params.jsonFile != "" {
		loggers = append(loggers, suite.JSONReportLogger{FilePath: params.jsonFile})
	}
	if len(loggers) == 1 {
		return consoleLogger
	}
	return &suite.MultiTestLogger{Loggers: loggers}
}

func recordFailures(path string, results suite.Results) error {
	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("cannot create failures file: %w", err)
	}
	for _, test := range results.Failures {
		fmt.Fprintln(f, test.TestID)
	}
	return f.Close()
}

func loadSuppressions(params *commandParams) error {
	file, err := os.Open(params.skipFile)
	if err != nil {
		return fmt.Errorf("cannot open provided suppression file: %w", err)
	}
	defer func() { _ = file.Close() }()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// Ignore blank lines
		if strings.TrimSpace(line) == "" {
			continue
		}
		// each line is a slash-separated test ID; quote the components, not the separators
		parts := strings.Split(strings.TrimSpace(line), "/")
		for i, p := range parts {
			parts[i] = "^" + regexp.QuoteMeta(p) + "$"
		}
		if err := params.filters.MustNotMatch.Set(strings.Join(parts, "/")); err != nil {
			return fmt.Errorf("cannot parse suppression: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("while processing suppression file: %w", err)
	}
	return nil
}
