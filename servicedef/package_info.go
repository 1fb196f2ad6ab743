// Package servicedef contains the schema of test case definition files. A definition is
// written in JSON or YAML and compiled into an executable test case by the data package.
//
// Each action names exactly one kind:
//
//	actions:
//	  - send: {endpoint: orders, payload: '{"id": ${id}}'}
//	  - receive:
//	      endpoint: orders
//	      format: json
//	      payload: '{"id": ${id}, "state": "@ignore@"}'
//	  - wait: 500ms
//
// A top-level "constants" object and a "parameters" list of objects are substituted into
// the rest of the file wherever <name> appears. Each parameter set produces its own test
// case.
package servicedef
