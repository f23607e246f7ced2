// Package cli is the register operator console.
//
// It reads one command per line and runs it against whatever the
// register's coordination mode currently routes to: the local store, or
// the server register's store through the bridge when in client mode.
// Shift and report commands always act on this register.
//
// The console is started via Console.Run(ctx), which blocks until the
// operator exits or input ends.
package cli
