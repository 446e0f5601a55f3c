// Package flowtest provides in-memory fakes of the flow engine's gateways
// for handler and engine tests.
package flowtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"botflow/bot/flow"
	"botflow/entity"
)

// Sessions is an in-memory session store.
type Sessions struct {
	mu   sync.Mutex
	data map[string]string

	// FailGet forces the next Get to return an error.
	FailGet error
}

func NewSessions() *Sessions {
	return &Sessions{data: make(map[string]string)}
}

func (s *Sessions) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet != nil {
		err := s.FailGet
		s.FailGet = nil
		return "", false, err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Sessions) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Sessions) SetEx(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Sessions) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Value returns the stored value for key, or "".
func (s *Sessions) Value(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

// Messenger records outbound sends.
type Messenger struct {
	mu        sync.Mutex
	Texts     []string
	Media     [][]entity.MediaItem
	Keyboards []*entity.KeyboardContent

	// Fail makes every send return this error.
	Fail error
}

func (m *Messenger) SendText(_ context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.Texts = append(m.Texts, text)
	return nil
}

func (m *Messenger) SendMediaGroup(_ context.Context, chatID string, items []entity.MediaItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.Media = append(m.Media, items)
	return nil
}

func (m *Messenger) SendKeyboard(_ context.Context, chatID string, kb *entity.KeyboardContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.Keyboards = append(m.Keyboards, kb)
	return nil
}

// SentTexts returns a copy of the recorded texts.
func (m *Messenger) SentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Texts...)
}

// TenantDB records executed statements and serves scripted fetch rows.
type TenantDB struct {
	mu       sync.Mutex
	Executed []string
	Rows     []map[string]any
	Fail     error
}

func (db *TenantDB) Execute(_ context.Context, dsn, query string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.Fail != nil {
		return db.Fail
	}
	db.Executed = append(db.Executed, query)
	return nil
}

func (db *TenantDB) Fetch(_ context.Context, dsn, query string) ([]map[string]any, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.Fail != nil {
		return nil, db.Fail
	}
	db.Executed = append(db.Executed, query)
	return db.Rows, nil
}

// HTTPGateway records outbound calls and serves a scripted response.
type HTTPGateway struct {
	mu       sync.Mutex
	Webhooks []string
	Requests []string
	Status   int
	Body     string
	Fail     error
}

func (g *HTTPGateway) SendWebhook(_ context.Context, url string, payload map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return g.Fail
	}
	g.Webhooks = append(g.Webhooks, url)
	return nil
}

func (g *HTTPGateway) Request(_ context.Context, method, url string, headers map[string]string, body map[string]any) (int, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return 0, "", g.Fail
	}
	g.Requests = append(g.Requests, fmt.Sprintf("%s %s", method, url))
	status := g.Status
	if status == 0 {
		status = 200
	}
	return status, g.Body, nil
}

// BlockStore serves a fixed block list and records created blocks.
type BlockStore struct {
	mu      sync.Mutex
	Blocks  []*entity.Block
	Created []*entity.Block
}

func (s *BlockStore) ListBlocks(_ context.Context, botID int64) ([]*entity.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Block
	for _, b := range s.Blocks {
		if b.BotID == botID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *BlockStore) CreateBlock(_ context.Context, block *entity.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Created = append(s.Created, block)
	return nil
}

// Reporter records reported pass failures.
type Reporter struct {
	mu     sync.Mutex
	Errors []error
}

func (r *Reporter) ReportError(botID int64, chatID string, blockID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, err)
}

// Count returns the number of reported failures.
func (r *Reporter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors)
}

// Loader serves one pre-built graph for any bot id.
type Loader struct {
	Graph flow.Graph
	Err   error
}

func (l *Loader) LoadGraph(_ context.Context, botID int64) (flow.Graph, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Graph, nil
}
