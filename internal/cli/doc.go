// Package cli is the command-line interface of hostcfg. It turns arguments
// into an app.Config, reports usage problems as *ExitError with code 2 and
// leaves all real work to package app.
package cli
