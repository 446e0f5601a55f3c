package entity

// BlockType selects the handler responsible for a block.
type BlockType string

const (
	BlockMessage    BlockType = "message"
	BlockSendText   BlockType = "send_text"
	BlockMediaGroup BlockType = "media_group"

	BlockKeyboard BlockType = "keyboard"
	BlockCallback BlockType = "callback"

	BlockIfCondition  BlockType = "if_condition"
	BlockVariable     BlockType = "variable"
	BlockWaitMessage  BlockType = "wait_for_message"
	BlockLogMessage   BlockType = "log_message"
	BlockTimer        BlockType = "timer"
	BlockRateLimit    BlockType = "rate_limit"
	BlockLoop         BlockType = "loop"
	BlockCustomFilter BlockType = "custom_filter"

	BlockStateMachine BlockType = "state_machine"

	BlockDatabaseConnect BlockType = "database_connect"
	BlockDatabaseQuery   BlockType = "database_query"
	BlockDatabaseFetch   BlockType = "database_fetch"
	BlockDatabaseInsert  BlockType = "database_insert"
	BlockDatabaseUpdate  BlockType = "database_update"
	BlockDatabaseDelete  BlockType = "database_delete"

	BlockTryCatch        BlockType = "try_catch"
	BlockRaiseError      BlockType = "raise_error"
	BlockHandleException BlockType = "handle_exception"

	BlockSaveUserData     BlockType = "save_user_data"
	BlockRetrieveUserData BlockType = "retrieve_user_data"
	BlockClearUserData    BlockType = "clear_user_data"

	BlockCreateFromTemplate BlockType = "create_from_template"

	BlockWebhook    BlockType = "webhook"
	BlockAPIRequest BlockType = "api_request"
)

// Connection labels used by branching handlers to pick among outgoing edges.
const (
	LabelDefault = ""
	LabelTrue    = "true"
	LabelFalse   = "false"
	LabelTry     = "try"
	LabelCatch   = "catch"
)

// Block is one node of a bot's conversation graph.
type Block struct {
	ID      int64          `json:"id" bson:"id"`
	BotID   int64          `json:"bot_id" bson:"bot_id"`
	Type    BlockType      `json:"type" bson:"type"`
	Content map[string]any `json:"content" bson:"content"`
}

// Connection is a directed edge between two blocks. An empty Label is the
// default path; branching handlers select edges by label.
type Connection struct {
	ID       int64  `json:"id" bson:"id"`
	BotID    int64  `json:"bot_id" bson:"bot_id"`
	SourceID int64  `json:"source_id" bson:"source_id"`
	TargetID int64  `json:"target_id" bson:"target_id"`
	Label    string `json:"label" bson:"label"`
}

// Bot holds the persisted logic definition the engine executes.
type Bot struct {
	ID           int64  `json:"id" bson:"id"`
	Name         string `json:"name" bson:"name"`
	EntryBlockID int64  `json:"entry_block_id" bson:"entry_block_id"`
}
