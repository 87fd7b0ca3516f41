// Package app contains the process-level logic behind the hostcfg command:
// building a host from its schema, restoring and saving applied state,
// applying configuration and rendering the result. It is decoupled from any
// specific entrypoint like a CLI.
package app
