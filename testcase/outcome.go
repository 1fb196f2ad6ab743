package testcase

import (
	"io"
	"time"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// OutcomeStatus is the overall result of a test case.
type OutcomeStatus string

const (
	Success OutcomeStatus = "SUCCESS"
	Failed  OutcomeStatus = "FAILURE"
	Skipped OutcomeStatus = "SKIPPED"
)

// ResultStatus is the result of one executed action.
type ResultStatus string

const (
	ResultOK     ResultStatus = "OK"
	ResultFailed ResultStatus = "FAILED"
)

// Result records one executed leaf action.
//
// Path locates the action in the tree: "root/1" is the second root action, "root/2/0" the
// first child of the third, "root/3/#2/0" the first child in the third iteration of an
// Iterate, and "finally/0" the first finally action.
type Result struct {
	Node     NodeID
	Path     string
	Name     string
	Status   ResultStatus
	Failure  *Failure
	Duration time.Duration
}

// OK returns true if the action succeeded.
func (r Result) OK() bool { return r.Status == ResultOK }

// Outcome is the report of one test case execution. Cause is the primary failure, if any;
// Secondary holds the finally chain failures that were not chosen as Cause.
type Outcome struct {
	Meta      Meta
	Status    OutcomeStatus
	Cause     *Failure
	Secondary []*Failure
	Results   []Result
	Outline   string
	Started   time.Time
	Duration  time.Duration
}

// Failed returns true if the outcome is a failure.
func (o Outcome) Failed() bool { return o.Status == Failed }

// WriteJSON writes the outcome as a JSON object.
func (o Outcome) WriteJSON(out io.Writer) error {
	w := jwriter.NewWriter()
	o.writeTo(&w)
	if err := w.Error(); err != nil {
		return err
	}
	_, err := out.Write(w.Bytes())
	return err
}

// JSON returns the outcome as a JSON object.
func (o Outcome) JSON() []byte {
	w := jwriter.NewWriter()
	o.writeTo(&w)
	return w.Bytes()
}

func (o Outcome) writeTo(w *jwriter.Writer) {
	obj := w.Object()
	obj.Name("name").String(o.Meta.QualifiedName())
	obj.Maybe("description", o.Meta.Description != "").String(o.Meta.Description)
	obj.Maybe("author", o.Meta.Author != "").String(o.Meta.Author)
	obj.Name("status").String(string(o.Status))
	obj.Name("started").String(o.Started.Format(time.RFC3339Nano))
	obj.Name("durationMs").Float64(float64(o.Duration.Microseconds()) / 1000)
	if o.Cause != nil {
		writeFailure(obj.Name("cause"), o.Cause)
	}
	if len(o.Secondary) > 0 {
		arr := obj.Name("secondaryCauses").Array()
		for _, f := range o.Secondary {
			writeFailure(w, f)
		}
		arr.End()
	}
	arr := obj.Name("results").Array()
	for _, r := range o.Results {
		ro := w.Object()
		ro.Name("path").String(r.Path)
		ro.Name("action").String(r.Name)
		ro.Name("status").String(string(r.Status))
		ro.Name("durationMs").Float64(float64(r.Duration.Microseconds()) / 1000)
		if r.Failure != nil {
			writeFailure(ro.Name("failure"), r.Failure)
		}
		ro.End()
	}
	arr.End()
	obj.End()
}

func writeFailure(w *jwriter.Writer, f *Failure) {
	obj := w.Object()
	obj.Name("kind").String(string(f.Kind))
	obj.Maybe("action", f.Action != "").String(f.Action)
	obj.Maybe("path", f.Path != "").String(f.Path)
	obj.Name("message").String(f.Message)
	if len(f.Branches) > 0 {
		arr := obj.Name("branches").Array()
		for _, b := range f.Branches {
			writeFailure(w, b)
		}
		arr.End()
	}
	obj.End()
}
