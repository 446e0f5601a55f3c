package entity

import (
	"encoding/json"
	"fmt"

	"botflow/internal/lib/validate"
)

// MessageContent backs message and send_text blocks.
type MessageContent struct {
	Text string `json:"text" validate:"required"`
}

// MediaItem is one element of a media group.
type MediaItem struct {
	Type    string `json:"type" validate:"required,oneof=photo video document audio"`
	URL     string `json:"url" validate:"required"`
	Caption string `json:"caption"`
}

// MediaGroupContent backs media_group blocks.
type MediaGroupContent struct {
	Items []MediaItem `json:"items" validate:"required,min=1,dive"`
}

// KeyboardButton is one button of a keyboard row. CallbackData is only
// meaningful on inline keyboards.
type KeyboardButton struct {
	Text         string `json:"text" validate:"required"`
	CallbackData string `json:"callback_data"`
}

// KeyboardContent backs keyboard blocks. Text defaults to a generic prompt
// when empty.
type KeyboardContent struct {
	KeyboardType string             `json:"keyboard_type" validate:"required,oneof=reply inline"`
	Text         string             `json:"text"`
	Buttons      [][]KeyboardButton `json:"buttons" validate:"required,min=1,dive,min=1,dive"`
}

// CallbackContent backs callback blocks.
type CallbackContent struct {
	CallbackData string `json:"callback_data" validate:"required"`
}

// LoopContent backs loop blocks. For a "for" loop Count is the rendered
// iteration total; for a "while" loop Condition is re-evaluated before each
// iteration. BodyBlockID names the single block executed per iteration.
type LoopContent struct {
	LoopType    string `json:"loop_type" validate:"required,oneof=for while"`
	Count       string `json:"count"`
	Condition   string `json:"condition"`
	BodyBlockID int64  `json:"body_block_id" validate:"required"`
}

// CustomFilterContent backs custom_filter blocks.
type CustomFilterContent struct {
	Filter string `json:"filter" validate:"required"`
}

// ConditionContent backs if_condition blocks. ElseBlockID is optional; when
// zero, a false condition falls through to the "false"-labeled connections.
type ConditionContent struct {
	Condition   string `json:"condition" validate:"required"`
	ElseBlockID int64  `json:"else_block_id"`
}

// VariableContent backs variable blocks.
type VariableContent struct {
	Action string `json:"action" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Value  string `json:"value"`
}

// Transition is one row of a state machine's transition table.
type Transition struct {
	FromState     string `json:"from_state" validate:"required"`
	ConditionType string `json:"condition_type" validate:"required,oneof=message_text variable_equals always"`
	// ConditionValue is the expected value; for variable_equals the inspected
	// scope variable is named by Variable.
	ConditionValue string `json:"condition_value"`
	Variable       string `json:"variable"`
	ToState        string `json:"to_state"`
	NextBlockID    int64  `json:"next_block_id"`
}

// StateMachineContent backs state_machine blocks.
type StateMachineContent struct {
	InitialState string       `json:"initial_state" validate:"required"`
	Transitions  []Transition `json:"transitions" validate:"dive"`
}

// DatabaseConnectContent holds the tenant database connection descriptor,
// either a full DSN or discrete parameters.
type DatabaseConnectContent struct {
	DSN    string            `json:"dsn"`
	Params map[string]string `json:"params"`
}

// DatabaseContent backs the query/fetch/insert/update/delete blocks.
// ConnectBlockID references a database_connect block of the same bot.
type DatabaseContent struct {
	Query          string `json:"query" validate:"required"`
	ConnectBlockID int64  `json:"connect_block_id" validate:"required"`
	ResultVar      string `json:"result_var"`
}

// TryCatchContent backs try_catch blocks.
type TryCatchContent struct {
	TryBlockID   int64 `json:"try_block_id"`
	CatchBlockID int64 `json:"catch_block_id"`
}

// RaiseErrorContent backs raise_error blocks.
type RaiseErrorContent struct {
	Message string `json:"message" validate:"required"`
}

// HandleExceptionContent backs handle_exception blocks.
type HandleExceptionContent struct {
	ExceptionBlockID int64  `json:"exception_block_id"`
	Message          string `json:"message"`
}

// LogContent backs log_message blocks.
type LogContent struct {
	Message string `json:"message" validate:"required"`
	Level   string `json:"level"`
}

// TimerContent backs timer blocks; Delay is template-rendered seconds.
type TimerContent struct {
	Delay string `json:"delay" validate:"required"`
}

// RateLimitContent backs rate_limit blocks; both fields are template-rendered.
type RateLimitContent struct {
	Limit    string `json:"limit" validate:"required"`
	Interval string `json:"interval" validate:"required"`
}

// UserDataContent backs the save/retrieve/clear user data blocks.
type UserDataContent struct {
	Data map[string]any `json:"data"`
	Key  string         `json:"key"`
}

// TemplateContent backs create_from_template blocks.
type TemplateContent struct {
	TemplateBotID int64 `json:"template_bot_id" validate:"required"`
}

// WebhookContent backs webhook blocks.
type WebhookContent struct {
	URL     string         `json:"url" validate:"required,url"`
	Payload map[string]any `json:"payload"`
}

// APIRequestContent backs api_request blocks.
type APIRequestContent struct {
	URL       string            `json:"url" validate:"required,url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Body      map[string]any    `json:"body"`
	ResultVar string            `json:"result_var"`
}

// DecodeContent maps a block's untyped content onto the typed schema T and
// validates required fields. A failure here is an authoring error of the bot,
// reported per block, never a crash.
func DecodeContent[T any](b *Block) (*T, error) {
	raw, err := json.Marshal(b.Content)
	if err != nil {
		return nil, fmt.Errorf("block %d: encoding content: %w", b.ID, err)
	}

	var c T
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("block %d (%s): decoding content: %w", b.ID, b.Type, err)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("block %d (%s): invalid content: %w", b.ID, b.Type, err)
	}
	return &c, nil
}

// ValidateBlock checks a block's content against the schema of its type.
// It is called once when a bot graph is loaded so that missing required keys
// surface as one load-time error instead of per-field failures mid-pass.
// Unknown types pass through; the engine logs and skips them at dispatch.
func ValidateBlock(b *Block) error {
	var err error
	switch b.Type {
	case BlockMessage, BlockSendText:
		_, err = DecodeContent[MessageContent](b)
	case BlockMediaGroup:
		_, err = DecodeContent[MediaGroupContent](b)
	case BlockKeyboard:
		_, err = DecodeContent[KeyboardContent](b)
	case BlockCallback:
		_, err = DecodeContent[CallbackContent](b)
	case BlockIfCondition:
		_, err = DecodeContent[ConditionContent](b)
	case BlockLoop:
		var c *LoopContent
		c, err = DecodeContent[LoopContent](b)
		if err == nil {
			switch {
			case c.LoopType == "for" && c.Count == "":
				err = fmt.Errorf("block %d (%s): for loop without count", b.ID, b.Type)
			case c.LoopType == "while" && c.Condition == "":
				err = fmt.Errorf("block %d (%s): while loop without condition", b.ID, b.Type)
			}
		}
	case BlockCustomFilter:
		_, err = DecodeContent[CustomFilterContent](b)
	case BlockVariable:
		_, err = DecodeContent[VariableContent](b)
	case BlockStateMachine:
		_, err = DecodeContent[StateMachineContent](b)
	case BlockDatabaseConnect:
		var c *DatabaseConnectContent
		c, err = DecodeContent[DatabaseConnectContent](b)
		if err == nil && c.DSN == "" && len(c.Params) == 0 {
			err = fmt.Errorf("block %d (%s): connection descriptor missing", b.ID, b.Type)
		}
	case BlockDatabaseQuery, BlockDatabaseFetch, BlockDatabaseInsert,
		BlockDatabaseUpdate, BlockDatabaseDelete:
		_, err = DecodeContent[DatabaseContent](b)
	case BlockTryCatch:
		_, err = DecodeContent[TryCatchContent](b)
	case BlockRaiseError:
		_, err = DecodeContent[RaiseErrorContent](b)
	case BlockHandleException:
		_, err = DecodeContent[HandleExceptionContent](b)
	case BlockLogMessage:
		_, err = DecodeContent[LogContent](b)
	case BlockTimer:
		_, err = DecodeContent[TimerContent](b)
	case BlockRateLimit:
		_, err = DecodeContent[RateLimitContent](b)
	case BlockSaveUserData, BlockRetrieveUserData, BlockClearUserData:
		_, err = DecodeContent[UserDataContent](b)
	case BlockCreateFromTemplate:
		_, err = DecodeContent[TemplateContent](b)
	case BlockWebhook:
		_, err = DecodeContent[WebhookContent](b)
	case BlockAPIRequest:
		_, err = DecodeContent[APIRequestContent](b)
	case BlockWaitMessage:
		// No content required.
	}
	return err
}
