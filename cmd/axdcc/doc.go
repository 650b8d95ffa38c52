// Package main hosts the axdcc CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into IPC calls against
// the daemon: lifecycle control, show subscriptions, packlist operations,
// download history, and the event bridge a chat client uses to report DCC
// offers and pick up pending XDCC commands. Show and history commands fall
// back to the state database when the daemon is not running.
package main
