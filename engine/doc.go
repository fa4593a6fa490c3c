// Package engine implements the message orchestrator: a registry of agents
// and a single bounded queue that routes messages to recipients until
// shutdown. Handler responses are fed back into the queue, so multi-step
// negotiations run to completion without external driving.
package engine
