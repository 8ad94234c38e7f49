// Package app wires the application together and runs it in one of two
// modes, decoupled from any specific entrypoint like a CLI.
//
// In run mode the app loads task files, starts the scheduler core, exposes
// /health, /status and the Socket.IO worker endpoint over HTTP, spawns any
// in-process workers and distributes every requested block. In worker mode
// it connects to a scheduler and processes blocks until told to stop.
package app
