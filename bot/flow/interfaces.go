package flow

import (
	"context"
	"fmt"
	"time"

	"botflow/entity"
)

// Graph is a read-only view of one bot's block graph, loaded once per pass.
// Outgoing returns connections in storage order; branching handlers filter
// them by label and the engine takes the first match.
type Graph interface {
	// EntryBlock returns the block a pass begins at.
	EntryBlock() (*entity.Block, error)

	// Block returns a block by id.
	Block(id int64) (*entity.Block, error)

	// Outgoing returns the targets of the block's outgoing connections
	// carrying the given label, in storage order.
	Outgoing(id int64, label string) []*entity.Block
}

// GraphLoader loads the persisted logic definition of a bot.
type GraphLoader interface {
	LoadGraph(ctx context.Context, botID int64) (Graph, error)
}

// BlockWriter is the narrow write surface of the graph store needed by
// template instantiation.
type BlockWriter interface {
	ListBlocks(ctx context.Context, botID int64) ([]*entity.Block, error)
	CreateBlock(ctx context.Context, block *entity.Block) error
}

// Sessions is the external key-value store holding per-chat state that must
// survive across passes. Get reports absence via the bool, not an error.
type Sessions interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Messenger is the outbound messaging gateway. SendKeyboard receives the
// keyboard content with button texts already rendered.
type Messenger interface {
	SendText(ctx context.Context, chatID, text string) error
	SendMediaGroup(ctx context.Context, chatID string, items []entity.MediaItem) error
	SendKeyboard(ctx context.Context, chatID string, kb *entity.KeyboardContent) error
}

// HTTPGateway performs outbound webhook and API calls on behalf of blocks.
type HTTPGateway interface {
	SendWebhook(ctx context.Context, url string, payload map[string]any) error
	Request(ctx context.Context, method, url string, headers map[string]string, body map[string]any) (status int, respBody string, err error)
}

// TenantDB executes statements against a per-bot external relational
// database identified by its connection string.
type TenantDB interface {
	Execute(ctx context.Context, dsn, query string) error
	Fetch(ctx context.Context, dsn, query string) ([]map[string]any, error)
}

// ErrorReporter receives fatal-per-pass errors for operator visibility.
type ErrorReporter interface {
	ReportError(botID int64, chatID string, blockID int64, err error)
}

// Stepper is the narrow single-step dispatch capability handlers receive by
// injection, so that blocks like try_catch can execute a nested target
// without constructing an engine.
type Stepper interface {
	ExecuteBlock(ctx context.Context, req *Request, block *entity.Block) (Result, error)
}

// Request carries everything a handler may need for one block.
type Request struct {
	Block   *entity.Block
	BotID   int64
	ChatID  string
	Message string
	Scope   *Scope
	Graph   Graph
	Stepper Stepper

	// Caught holds the error routed to the current catch branch, consumed
	// by handle_exception blocks. Nil outside catch scope.
	Caught error

	// steps counts block dispatches against the pass's ceiling. Nested
	// Stepper calls share the counter with the engine's own loop, so a
	// try cycle cannot recurse past the limit.
	steps *int
}

// Result is a handler's graph-position recommendation. A non-zero
// NextBlockID forces a jump; otherwise the engine follows the block's
// outgoing connections filtered by Label. Stop suspends the pass.
type Result struct {
	NextBlockID int64
	Label       string
	Stop        bool
}

// Handler executes blocks of one family of types.
type Handler interface {
	// Types returns the block types this handler serves.
	Types() []entity.BlockType

	// Execute performs the block's behavior. Scope mutations happen in
	// place; a returned error is subject to the engine's catch routing.
	Execute(ctx context.Context, req *Request) (Result, error)
}

// Session key layout: "{purpose}:{chat_id}[:{block_id}]". The chat owns its
// namespace; state-machine state is additionally scoped per block.

// StateKey addresses a state machine's durable current state.
func StateKey(chatID string, blockID int64) string {
	return fmt.Sprintf("state:%s:%d", chatID, blockID)
}

// UserDataKey addresses the saved user data blob of a chat.
func UserDataKey(chatID string) string {
	return "user_data:" + chatID
}

// LastMessageKey addresses the chat's last inbound message.
func LastMessageKey(chatID string) string {
	return "last_message:" + chatID
}

// RateKey addresses a rate_limit block's counter.
func RateKey(chatID string, blockID int64) string {
	return fmt.Sprintf("rate:%s:%d", chatID, blockID)
}
