// Package daemon hosts the long-running capture service: it owns the
// engine and library store, bridges engine events to logs and
// notifications, watches for GPU hotplug, and enforces single-instance
// execution with a file lock.
package daemon
