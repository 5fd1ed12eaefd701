package flags

// Package flags defines canonical CLI flag names shared across the CLI.
// IMPORTANT: These are flag *names* without leading dashes.
const (
	FlagConfig  = "config"
	FlagToken   = "token"
	FlagVerbose = "verbose"
	FlagWorkdir = "workdir"
)
