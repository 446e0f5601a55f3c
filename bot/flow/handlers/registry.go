// Package handlers implements the per-family block handlers of the flow
// engine: messaging, keyboards, control flow, loops, state machines, tenant
// database access, error handling, user data, template instantiation and
// webhooks.
package handlers

import (
	"log/slog"

	"botflow/bot/flow"
)

// Deps carries the collaborator gateways handlers are built from. The
// process entry point owns construction and teardown; handlers only hold
// references.
type Deps struct {
	Messenger flow.Messenger
	HTTP      flow.HTTPGateway
	Sessions  flow.Sessions
	TenantDB  flow.TenantDB
	Blocks    flow.BlockWriter
	Log       *slog.Logger
}

// DefaultRegistry builds a registry with every standard block handler.
func DefaultRegistry(d Deps) *flow.Registry {
	r := flow.NewRegistry()
	r.Register(NewMessageHandler(d.Messenger, d.Log))
	r.Register(NewKeyboardHandler(d.Messenger, d.Log))
	r.Register(NewControlHandler(d.Sessions, d.Log))
	r.Register(NewLoopHandler(d.Log))
	r.Register(NewStateMachineHandler(d.Sessions, d.Log))
	r.Register(NewDatabaseHandler(d.TenantDB, d.Log))
	r.Register(NewErrorHandler(d.Log))
	r.Register(NewUserDataHandler(d.Sessions, d.Log))
	r.Register(NewTemplateHandler(d.Blocks, d.Log))
	r.Register(NewWebhookHandler(d.HTTP, d.Log))
	return r
}
