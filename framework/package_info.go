// Package framework contains infrastructure shared by the orchestrator's packages that has
// nothing to do with any particular kind of test: the Logger interface and the capturing
// logger used to attribute output to individual test cases.
//
// The general model is:
//
// 1. A test case is a tree of actions (package testcase) built either declaratively or
// imperatively (package dsl).
//
// 2. Actions talk to the outside world only through message transports (package
// transport) and validators (package validation).
//
// 3. A host (package suite) runs many test cases, captures their output, and reports
// their outcomes to the console and optionally to JUnit XML.
package framework
