// Package hawkularcli is a command line client for Hawkular Metrics servers.
//
// The client can:
//   - push gauge, counter, string and availability values given as KEY=VALUE
//   - read raw values or bucket statistics by key or by tag filter
//   - list metric definitions and alert triggers
//   - query the server status
//
// Connection settings are taken from the command line, the `hawkular:`
// section of a YAML config file and HAWKULAR_* environment variables, in that
// order of precedence.
//
// The config file may also carry tagging rules. Every rule is a regular
// expression matched against the start of a metric key and a set of tags
// applied when it matches. Later rules override earlier ones and tags given
// with --tags override both. Rules are applied to every pushed key unless
// --no-autotags is set.
package hawkularcli
