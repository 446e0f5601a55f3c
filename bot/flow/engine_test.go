package flow_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botflow/bot/flow"
	"botflow/bot/flow/flowtest"
	"botflow/bot/flow/handlers"
	"botflow/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func block(id int64, t entity.BlockType, content map[string]any) *entity.Block {
	return &entity.Block{ID: id, BotID: 1, Type: t, Content: content}
}

func conn(id, src, tgt int64, label string) *entity.Connection {
	return &entity.Connection{ID: id, BotID: 1, SourceID: src, TargetID: tgt, Label: label}
}

type fixture struct {
	engine    *flow.Engine
	sessions  *flowtest.Sessions
	messenger *flowtest.Messenger
	db        *flowtest.TenantDB
	http      *flowtest.HTTPGateway
	reporter  *flowtest.Reporter
}

func newFixture(t *testing.T, entryID int64, blocks []*entity.Block, conns []*entity.Connection) *fixture {
	t.Helper()

	graph, err := flow.NewSnapshot(entryID, blocks, conns)
	require.NoError(t, err)

	f := &fixture{
		sessions:  flowtest.NewSessions(),
		messenger: &flowtest.Messenger{},
		db:        &flowtest.TenantDB{},
		http:      &flowtest.HTTPGateway{},
		reporter:  &flowtest.Reporter{},
	}

	log := testLogger()
	registry := handlers.DefaultRegistry(handlers.Deps{
		Messenger: f.messenger,
		HTTP:      f.http,
		Sessions:  f.sessions,
		TenantDB:  f.db,
		Blocks:    &flowtest.BlockStore{},
		Log:       log,
	})

	f.engine = flow.NewEngine(&flowtest.Loader{Graph: graph}, f.sessions, registry, log,
		flow.WithErrorReporter(f.reporter),
	)
	return f
}

func TestRunPassTerminalBlock(t *testing.T) {
	f := newFixture(t, 1, []*entity.Block{
		block(1, entity.BlockSendText, map[string]any{"text": "hello {{ name }}"}),
	}, nil)

	err := f.engine.RunPass(context.Background(), 1, "42", "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello "}, f.messenger.SentTexts())
}

func TestRunPassSavesInboundMessage(t *testing.T) {
	f := newFixture(t, 1, []*entity.Block{
		block(1, entity.BlockLogMessage, map[string]any{"message": "seen"}),
	}, nil)

	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", "ping"))
	assert.Equal(t, "ping", f.sessions.Value(flow.LastMessageKey("42")))
}

func TestRunPassConditionBranches(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockVariable, map[string]any{"action": "define", "name": "x", "value": "5"}),
		block(2, entity.BlockIfCondition, map[string]any{"condition": `x == "5"`}),
		block(3, entity.BlockSendText, map[string]any{"text": "yes"}),
		block(4, entity.BlockSendText, map[string]any{"text": "no"}),
	}
	conns := []*entity.Connection{
		conn(1, 1, 2, entity.LabelDefault),
		conn(2, 2, 3, entity.LabelTrue),
		conn(3, 2, 4, entity.LabelFalse),
	}

	f := newFixture(t, 1, blocks, conns)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
	assert.Equal(t, []string{"yes"}, f.messenger.SentTexts())
}

func TestRunPassTrueLabelFallsBackToDefault(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockIfCondition, map[string]any{"condition": "1 == 1"}),
		block(2, entity.BlockSendText, map[string]any{"text": "default path"}),
	}
	conns := []*entity.Connection{
		conn(1, 1, 2, entity.LabelDefault),
	}

	f := newFixture(t, 1, blocks, conns)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
	assert.Equal(t, []string{"default path"}, f.messenger.SentTexts())
}

func TestRunPassCatchEdgeAbsorbsError(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockVariable, map[string]any{"action": "define", "name": "who", "value": "Bob"}),
		block(2, entity.BlockRaiseError, map[string]any{"message": "Bad input: {{ who }}"}),
		block(3, entity.BlockHandleException, map[string]any{}),
		block(4, entity.BlockSendText, map[string]any{"text": "recovered"}),
	}
	conns := []*entity.Connection{
		conn(1, 1, 2, entity.LabelDefault),
		conn(2, 2, 3, entity.LabelCatch),
		conn(3, 3, 4, entity.LabelDefault),
	}

	f := newFixture(t, 1, blocks, conns)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))

	// handle_exception without a follow-up id stops the pass, so nothing
	// after it runs.
	assert.Empty(t, f.messenger.SentTexts())
	assert.Equal(t, 0, f.reporter.Count())
}

func TestRunPassUncaughtErrorReported(t *testing.T) {
	f := newFixture(t, 1, []*entity.Block{
		block(1, entity.BlockRaiseError, map[string]any{"message": "boom"}),
	}, nil)

	err := f.engine.RunPass(context.Background(), 1, "42", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, f.reporter.Count())
}

func TestRunPassTryCatchBlock(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockTryCatch, map[string]any{"try_block_id": 8, "catch_block_id": 9}),
		block(8, entity.BlockRaiseError, map[string]any{"message": "inner failure"}),
		block(9, entity.BlockSendText, map[string]any{"text": "caught"}),
	}

	f := newFixture(t, 1, blocks, nil)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
	assert.Equal(t, []string{"caught"}, f.messenger.SentTexts())
}

func TestRunPassTryCatchMissingCatchTarget(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockTryCatch, map[string]any{"try_block_id": 8, "catch_block_id": 99}),
		block(8, entity.BlockRaiseError, map[string]any{"message": "inner failure"}),
	}

	f := newFixture(t, 1, blocks, nil)
	// The catch id resolves to no next block; the pass ends, it does not
	// crash.
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
	assert.Equal(t, 0, f.reporter.Count())
}

func TestRunPassTryCatchMissingTryBlock(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockTryCatch, map[string]any{"try_block_id": 77}),
	}

	f := newFixture(t, 1, blocks, nil)
	// A dangling try reference must not crash the pass.
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
}

func TestRunPassStepLimit(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockVariable, map[string]any{"action": "define", "name": "a", "value": "1"}),
		block(2, entity.BlockVariable, map[string]any{"action": "define", "name": "b", "value": "2"}),
	}
	conns := []*entity.Connection{
		conn(1, 1, 2, entity.LabelDefault),
		conn(2, 2, 1, entity.LabelDefault),
	}

	f := newFixture(t, 1, blocks, conns)
	err := f.engine.RunPass(context.Background(), 1, "42", "")
	require.ErrorIs(t, err, flow.ErrStepLimit)
	assert.Equal(t, 1, f.reporter.Count())
}

func TestRunPassStepLimitNotCatchable(t *testing.T) {
	// Even with a catch edge on the looping block, step-limit exhaustion
	// must terminate the pass.
	blocks := []*entity.Block{
		block(1, entity.BlockVariable, map[string]any{"action": "define", "name": "a", "value": "1"}),
		block(2, entity.BlockSendText, map[string]any{"text": "unreachable"}),
	}
	conns := []*entity.Connection{
		conn(1, 1, 1, entity.LabelDefault),
		conn(2, 1, 2, entity.LabelCatch),
	}

	f := newFixture(t, 1, blocks, conns)
	err := f.engine.RunPass(context.Background(), 1, "42", "")
	require.ErrorIs(t, err, flow.ErrStepLimit)
	assert.Empty(t, f.messenger.SentTexts())
}

func TestRunPassForLoopExecutesBody(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockLoop, map[string]any{"loop_type": "for", "count": "3", "body_block_id": 2}),
		block(2, entity.BlockSendText, map[string]any{"text": "tick {{ loop_index }}"}),
		block(3, entity.BlockSendText, map[string]any{"text": "done"}),
	}
	conns := []*entity.Connection{
		conn(1, 1, 3, entity.LabelDefault),
	}

	f := newFixture(t, 1, blocks, conns)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
	assert.Equal(t, []string{"tick 0", "tick 1", "tick 2", "done"}, f.messenger.SentTexts())
}

func TestRunPassEndlessWhileLoopHitsStepLimit(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockLoop, map[string]any{"loop_type": "while", "condition": "1 == 1", "body_block_id": 2}),
		block(2, entity.BlockLogMessage, map[string]any{"message": "spin"}),
	}

	f := newFixture(t, 1, blocks, nil)
	err := f.engine.RunPass(context.Background(), 1, "42", "")
	require.ErrorIs(t, err, flow.ErrStepLimit)
}

func TestRunPassCustomFilterGatesPath(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockVariable, map[string]any{"action": "define", "name": "role", "value": "guest"}),
		block(2, entity.BlockCustomFilter, map[string]any{"filter": `role == "admin"`}),
		block(3, entity.BlockSendText, map[string]any{"text": "admin only"}),
	}
	conns := []*entity.Connection{
		conn(1, 1, 2, entity.LabelDefault),
		conn(2, 2, 3, entity.LabelDefault),
	}

	f := newFixture(t, 1, blocks, conns)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
	assert.Empty(t, f.messenger.SentTexts())
}

func TestRunPassCyclicTryTargetHitsStepLimit(t *testing.T) {
	// A try_catch whose try target is itself must burn through the step
	// ceiling instead of recursing until the stack blows.
	blocks := []*entity.Block{
		block(1, entity.BlockTryCatch, map[string]any{"try_block_id": 1, "catch_block_id": 2}),
		block(2, entity.BlockHandleException, map[string]any{}),
	}

	f := newFixture(t, 1, blocks, nil)
	err := f.engine.RunPass(context.Background(), 1, "42", "")
	require.ErrorIs(t, err, flow.ErrStepLimit)
	assert.Equal(t, 1, f.reporter.Count())
}

func TestRunPassMutualTryCycleHitsStepLimit(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockTryCatch, map[string]any{"try_block_id": 2}),
		block(2, entity.BlockTryCatch, map[string]any{"try_block_id": 1}),
	}

	f := newFixture(t, 1, blocks, nil)
	err := f.engine.RunPass(context.Background(), 1, "42", "")
	require.ErrorIs(t, err, flow.ErrStepLimit)
}

// caughtRecorder exposes the error each dispatched block observed in
// catch scope.
type caughtRecorder struct {
	seen []error
}

func (r *caughtRecorder) Types() []entity.BlockType {
	return []entity.BlockType{"checkpoint"}
}

func (r *caughtRecorder) Execute(_ context.Context, req *flow.Request) (flow.Result, error) {
	r.seen = append(r.seen, req.Caught)
	return flow.Result{}, nil
}

func TestRunPassCaughtClearsAfterCatchEntry(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockRaiseError, map[string]any{"message": "boom"}),
		block(2, "checkpoint", nil),
		block(3, "checkpoint", nil),
	}
	conns := []*entity.Connection{
		conn(1, 1, 2, entity.LabelCatch),
		conn(2, 2, 3, entity.LabelDefault),
	}

	graph, err := flow.NewSnapshot(1, blocks, conns)
	require.NoError(t, err)

	log := testLogger()
	sessions := flowtest.NewSessions()
	rec := &caughtRecorder{}
	registry := handlers.DefaultRegistry(handlers.Deps{Sessions: sessions, Log: log})
	registry.Register(rec)

	engine := flow.NewEngine(&flowtest.Loader{Graph: graph}, sessions, registry, log)
	require.NoError(t, engine.RunPass(context.Background(), 1, "42", ""))

	// Only the first block on the catch path sees the routed error.
	require.Len(t, rec.seen, 2)
	assert.EqualError(t, rec.seen[0], "boom")
	assert.Nil(t, rec.seen[1])
}

func TestRunPassUnknownBlockTypeStops(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockType("quantum_leap"), map[string]any{}),
		block(2, entity.BlockSendText, map[string]any{"text": "never"}),
	}
	conns := []*entity.Connection{
		conn(1, 1, 2, entity.LabelDefault),
	}

	f := newFixture(t, 1, blocks, conns)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
	assert.Empty(t, f.messenger.SentTexts())
	assert.Equal(t, 0, f.reporter.Count())
}

func TestRunPassMissingJumpTargetEndsPass(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockIfCondition, map[string]any{"condition": "1 > 2", "else_block_id": 999}),
	}

	f := newFixture(t, 1, blocks, nil)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
	assert.Equal(t, 0, f.reporter.Count())
}

func TestRunPassWaitForMessageSuspends(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockWaitMessage, map[string]any{}),
		block(2, entity.BlockSendText, map[string]any{"text": "later"}),
	}
	conns := []*entity.Connection{
		conn(1, 1, 2, entity.LabelDefault),
	}

	f := newFixture(t, 1, blocks, conns)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
	assert.Empty(t, f.messenger.SentTexts())
}

func TestRunPassStateMachine(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockStateMachine, map[string]any{
			"initial_state": "start",
			"transitions": []any{
				map[string]any{
					"from_state":     "start",
					"condition_type": "always",
					"to_state":       "end",
					"next_block_id":  2,
				},
			},
		}),
		block(2, entity.BlockSendText, map[string]any{"text": "moved"}),
	}

	f := newFixture(t, 1, blocks, nil)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))

	assert.Equal(t, []string{"moved"}, f.messenger.SentTexts())
	assert.Equal(t, "end", f.sessions.Value(flow.StateKey("42", 1)))
}

func TestRunPassTieBreakFirstConnection(t *testing.T) {
	blocks := []*entity.Block{
		block(1, entity.BlockLogMessage, map[string]any{"message": "fork"}),
		block(2, entity.BlockSendText, map[string]any{"text": "first"}),
		block(3, entity.BlockSendText, map[string]any{"text": "second"}),
	}
	conns := []*entity.Connection{
		conn(1, 1, 2, entity.LabelDefault),
		conn(2, 1, 3, entity.LabelDefault),
	}

	f := newFixture(t, 1, blocks, conns)
	require.NoError(t, f.engine.RunPass(context.Background(), 1, "42", ""))
	assert.Equal(t, []string{"first"}, f.messenger.SentTexts())
}
