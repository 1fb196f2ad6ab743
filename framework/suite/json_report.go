package suite

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/testharness/orchestrator/framework"
	"github.com/testharness/orchestrator/testcase"
)

// WriteJSONReport writes the results as one JSON object: counts, then every test case with
// its full outcome.
func WriteJSONReport(out io.Writer, results Results) error {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("total").Int(len(results.Tests))
	obj.Name("failed").Int(len(results.Failures))
	obj.Name("skipped").Int(len(results.Skipped))
	arr := obj.Name("tests").Array()
	for _, r := range results.Tests {
		test := w.Object()
		test.Name("id").String(r.TestID.String())
		if r.SkipReason != "" {
			test.Name("status").String(string(testcase.Skipped))
			test.Name("skipReason").String(r.SkipReason)
		} else {
			test.Name("status").String(string(r.Outcome.Status))
			test.Name("outcome").Raw(r.Outcome.JSON())
		}
		test.End()
	}
	arr.End()
	obj.End()
	if err := w.Error(); err != nil {
		return err
	}
	_, err := out.Write(w.Bytes())
	return err
}

// JSONReportLogger writes a JSON report file at the end of the run.
type JSONReportLogger struct {
	FilePath string
}

func (j JSONReportLogger) TestStarted(TestID)                                        {}
func (j JSONReportLogger) TestError(TestID, error)                                   {}
func (j JSONReportLogger) TestFinished(TestID, TestResult, framework.CapturedOutput) {}
func (j JSONReportLogger) TestSkipped(TestID, string)                                {}

func (j JSONReportLogger) EndLog(results Results) error {
	fmt.Printf("Writing JSON report to %s\n", j.FilePath)
	var buf bytes.Buffer
	if err := WriteJSONReport(&buf, results); err != nil {
		return err
	}
	buf.WriteByte('\n')
	return os.WriteFile(j.FilePath, buf.Bytes(), 0644) //nolint:gosec
}
