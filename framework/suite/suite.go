package suite

import (
	"context"
	"fmt"

	"github.com/testharness/orchestrator/framework"
	"github.com/testharness/orchestrator/message"
	"github.com/testharness/orchestrator/testcase"
)

// Configuration contains options for the entire run.
type Configuration struct {
	// Filter is an optional filter for determining which test cases to run.
	Filter Filter

	// TestLogger receives status information about each test case.
	TestLogger TestLogger

	// EndpointLogger, if set, is the logger given to the endpoints. While a test case runs,
	// its output is routed to that test case's debug output.
	EndpointLogger *framework.CapturingLogger

	// ExecutorOptions are applied to the executor of every test case. The executor's logger
	// is always the test case's own debug logger.
	ExecutorOptions []testcase.ExecutorOption
}

// Run executes test cases one at a time, in order. It returns an error only if the executor
// options are invalid; test case failures are reported in the Results.
func Run(
	ctx context.Context,
	transport message.Transport,
	cases []*testcase.TestCase,
	config Configuration,
) (Results, error) {
	if config.TestLogger == nil {
		config.TestLogger = nullTestLogger{}
	}
	var results Results
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		id := IDOf(tc.Meta)
		config.TestLogger.TestStarted(id)
		if config.Filter != nil && !config.Filter.Match(id) {
			skip(&results, config.TestLogger, TestResult{TestID: id, SkipReason: "excluded by filter parameters"})
			continue
		}

		debugLogger := &framework.CapturingLogger{}
		options := append(append([]testcase.ExecutorOption(nil), config.ExecutorOptions...),
			testcase.WithLogger(debugLogger))
		executor, err := testcase.NewExecutor(transport, options...)
		if err != nil {
			return results, fmt.Errorf("invalid executor options: %w", err)
		}
		if config.EndpointLogger != nil {
			config.EndpointLogger.AddChildLogger(debugLogger)
		}
		outcome := executor.Execute(ctx, tc)
		if config.EndpointLogger != nil {
			config.EndpointLogger.RemoveChildLogger(debugLogger)
		}

		result := TestResult{TestID: id, Outcome: outcome}
		if outcome.Status == testcase.Skipped {
			result.SkipReason = "disabled"
			skip(&results, config.TestLogger, result)
			continue
		}
		if outcome.Cause != nil {
			config.TestLogger.TestError(id, outcome.Cause)
			for _, f := range outcome.Secondary {
				config.TestLogger.TestError(id, f)
			}
			results.Failures = append(results.Failures, result)
		}
		results.Tests = append(results.Tests, result)
		config.TestLogger.TestFinished(id, result, debugLogger.Output())
	}
	return results, nil
}

func skip(results *Results, logger TestLogger, result TestResult) {
	results.Tests = append(results.Tests, result)
	results.Skipped = append(results.Skipped, result)
	logger.TestSkipped(result.TestID, result.SkipReason)
}
