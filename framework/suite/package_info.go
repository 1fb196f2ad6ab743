// Package suite runs a collection of test cases against one transport: it applies the
// run/skip filters, gives each test case its own captured debug log, and reports progress
// and results to TestLogger implementations.
package suite
