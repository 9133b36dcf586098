package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/firwatch/notamwatch/internal/model"
	"github.com/firwatch/notamwatch/pkg/anthropic"
	"github.com/firwatch/notamwatch/pkg/avwx"
)

// --- Feed Mock ---

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) Fetch(ctx context.Context, station string) ([]avwx.Notam, error) {
	args := m.Called(ctx, station)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]avwx.Notam), args.Error(1)
}

// --- Ledger Mock ---

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockLedger) Append(ctx context.Context, stats model.RunStats) error {
	return m.Called(ctx, stats).Error(0)
}

func (m *mockLedger) List(ctx context.Context, limit int) ([]model.RunStats, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RunStats), args.Error(1)
}

func (m *mockLedger) Close() error {
	return m.Called().Error(0)
}

// --- Notifier capture ---

type sentNew struct {
	Raw         model.RawRecord
	Explanation string
	Severity    model.Severity
	Provisional bool
}

type sentUpdate struct {
	ID  model.Identity
	Rec *model.ExplanationRecord
}

type captureNotifier struct {
	mu      sync.Mutex
	news    []sentNew
	updates []sentUpdate
	newErr  error
}

func (c *captureNotifier) NotifyNew(ctx context.Context, raw model.RawRecord, dec *model.DecodedRecord, explanation string, severity model.Severity, provisional bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.newErr != nil {
		return c.newErr
	}
	c.news = append(c.news, sentNew{Raw: raw, Explanation: explanation, Severity: severity, Provisional: provisional})
	return nil
}

func (c *captureNotifier) NotifyUpdate(ctx context.Context, id model.Identity, rec *model.ExplanationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, sentUpdate{ID: id, Rec: rec})
	return nil
}

// --- Enrichment stubs ---

type stubDecoder struct {
	interp *model.Interpretation
	err    error
}

func (d *stubDecoder) Decode(ctx context.Context, text string) (*model.Interpretation, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.interp, nil
}

type stubExplainer struct {
	mu    sync.Mutex
	calls int
	fn    func() (*anthropic.MessageResponse, error)
}

func (s *stubExplainer) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn()
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: text}}}
}
