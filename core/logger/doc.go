// Package logger is a standardized event logging framework for the shell.
//
// Events are written as newline delimited JSON objects. Each object holds the
// timestamp, the session it belongs to and exactly one event keyed by its
// type name, for example:
//
//	{"session_id":"42","timestamp_micros":1634567890123456,"run_command":{"command":["echo","hi"],"builtin":true}}
package logger
