package main

import (
	"github.com/spf13/cobra"

	"github.com/testharness/orchestrator/framework/suite"
)

type commandParams struct {
	configFile     string
	testsDir       string
	filters        suite.RegexFilters
	skipFile       string
	recordFailures string
	debug          bool
	debugAll       bool
	jUnitFile      string
	jsonFile       string
}

func newRootCommand(params *commandParams, run func(*commandParams) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Run declarative integration tests against the configured endpoints",
		Long: `orchestrator loads test case definitions from a directory, executes each one
against the endpoints described in the configuration file, and reports the results.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(params)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&params.configFile, "config", "c", "", "harness configuration file (YAML or JSON)")
	fs.StringVarP(&params.testsDir, "tests", "t", "tests", "directory containing test case definitions")
	fs.Var(&params.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&params.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.StringVar(&params.skipFile, "skip-from", "", "file listing test IDs to skip, one per line")
	fs.StringVar(&params.recordFailures, "record-failures", "", "write the IDs of failed tests to this file")
	fs.BoolVar(&params.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&params.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&params.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	fs.StringVar(&params.jsonFile, "json", "", "write a JSON report of every outcome to the specified path")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
