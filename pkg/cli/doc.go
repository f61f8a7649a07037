// Package cli holds the terminal plumbing shared by voxmemo commands:
// output formatting with optional jq filtering, YAML config files, the
// application directory layout, request files, a log tail and the
// recording meter frame.
package cli
