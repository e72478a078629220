// Package main hosts the Clipforge CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC
// calls against the clipforged daemon: recording control, instant-replay
// toggling and saves, library queries, and daemon lifecycle management.
// Export and doctor run locally so they work without a daemon.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags
// here.
package main
