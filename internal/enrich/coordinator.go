// Package enrich drives the decode and explain stages for each record,
// including the credential rotation and the deferred-explanation buffer.
package enrich

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/firwatch/notamwatch/internal/decode"
	"github.com/firwatch/notamwatch/internal/model"
	"github.com/firwatch/notamwatch/internal/state"
	"github.com/firwatch/notamwatch/pkg/anthropic"
)

// Outcome classifies how an enrichment result was obtained.
type Outcome int

const (
	// OutcomeCached means a prior run's record was reused without invoking
	// the decoder or explainer.
	OutcomeCached Outcome = iota
	// OutcomeFresh means the external call ran this run and succeeded.
	OutcomeFresh
	// OutcomeFailed means the external call ran this run and failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCached:
		return "cached"
	case OutcomeFresh:
		return "fresh"
	default:
		return "failed"
	}
}

// Enrichment is the decode + explain result for one record. Explained is nil
// when every explanation attempt failed; Fallback then carries the
// provisional abbreviation-expanded text.
type Enrichment struct {
	Raw            model.RawRecord
	Decoded        *model.DecodedRecord
	DecodeOutcome  Outcome
	Explained      *model.ExplanationRecord
	ExplainOutcome Outcome
	Fallback       string
}

// Coordinator orchestrates enrichment against the external decoder and the
// explanation-service credential pool.
type Coordinator struct {
	decoder   decode.Decoder
	pool      *Pool
	modelID   string
	maxTokens int64
}

// NewCoordinator wires a coordinator.
func NewCoordinator(decoder decode.Decoder, pool *Pool, modelID string, maxTokens int64) *Coordinator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Coordinator{decoder: decoder, pool: pool, modelID: modelID, maxTokens: maxTokens}
}

// EnrichAll runs decode + explain for each record, fanning out across
// identities. It only reads the aggregate (for cache hits); results are
// merged into the aggregate serially via ApplyEnrichment.
func (c *Coordinator) EnrichAll(ctx context.Context, agg *state.Aggregate, raws []model.RawRecord, parallel int) []Enrichment {
	if parallel <= 0 {
		parallel = 4
	}
	results := make([]Enrichment, len(raws))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, raw := range raws {
		g.Go(func() error {
			results[i] = c.enrichOne(ctx, agg, raw)
			return nil
		})
	}
	// Workers never return errors; per-record failures live in the results.
	_ = g.Wait()

	return results
}

func (c *Coordinator) enrichOne(ctx context.Context, agg *state.Aggregate, raw model.RawRecord) Enrichment {
	e := Enrichment{Raw: raw}
	e.Decoded, e.DecodeOutcome = c.ensureDecoded(ctx, agg, raw)
	e.Explained, e.ExplainOutcome = c.ensureExplained(ctx, agg, raw)
	if e.Explained == nil {
		e.Fallback = Expand(raw.Text)
	}
	return e
}

// ensureDecoded returns the cached decode when one exists (error-tagged
// records included, so a persistently malformed record is not retried every
// run) and otherwise invokes the external decoder once.
func (c *Coordinator) ensureDecoded(ctx context.Context, agg *state.Aggregate, raw model.RawRecord) (*model.DecodedRecord, Outcome) {
	if cached, ok := agg.Active.Decoded[raw.ID]; ok {
		warnOnDrift("decode", cached.TextHash, raw)
		return cached, OutcomeCached
	}

	interp, err := c.decoder.Decode(ctx, raw.Text)
	rec := &model.DecodedRecord{
		ID:       raw.ID,
		TextHash: model.HashText(raw.Text),
		LastSeen: raw.LastSeen,
	}
	if err != nil {
		zap.L().Warn("enrich: decode failed",
			zap.String("id", string(raw.ID)),
			zap.Error(err),
		)
		rec.Err = err.Error()
		return rec, OutcomeFailed
	}
	rec.Interp = interp
	return rec, OutcomeFresh
}

// ensureExplained returns the cached explanation when one exists and
// otherwise walks the credential rotation. A nil record with OutcomeFailed
// sends the identity to the pending buffer.
func (c *Coordinator) ensureExplained(ctx context.Context, agg *state.Aggregate, raw model.RawRecord) (*model.ExplanationRecord, Outcome) {
	if cached, ok := agg.Active.Explained[raw.ID]; ok {
		warnOnDrift("explain", cached.TextHash, raw)
		return cached, OutcomeCached
	}

	text, severity, err := c.explain(ctx, raw.Text)
	if err != nil {
		zap.L().Warn("enrich: explanation unavailable, deferring",
			zap.String("id", string(raw.ID)),
			zap.Error(err),
		)
		return nil, OutcomeFailed
	}

	return &model.ExplanationRecord{
		ID:       raw.ID,
		Text:     text,
		Severity: severity,
		TextHash: model.HashText(raw.Text),
		LastSeen: raw.LastSeen,
	}, OutcomeFresh
}

const explainSystemPrompt = `You translate aviation NOTAMs into plain English for non-pilots.
Respond with a single JSON object: {"explanation": "...", "severity": "info" | "caution" | "critical"}.
The explanation is 1-3 sentences, no jargon. Severity reflects operational impact on flights in the region.`

// explain walks the credential rotation: each attempt takes the next
// credential (rotating it to the back), a rate-limited credential is ejected
// for the rest of the run, any other failure keeps it in rotation. Attempts
// are bounded by the pool size at call time.
func (c *Coordinator) explain(ctx context.Context, rawText string) (string, model.Severity, error) {
	attempts := c.pool.Size()
	if attempts == 0 {
		return "", model.SeverityUnknown, eris.New("enrich: no explanation credentials in rotation")
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		cred := c.pool.next()
		if cred == nil {
			break
		}

		resp, err := cred.Client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     c.modelID,
			MaxTokens: c.maxTokens,
			System:    explainSystemPrompt,
			Messages:  []anthropic.Message{{Role: "user", Content: rawText}},
		})
		if err != nil {
			lastErr = err
			if anthropic.IsRateLimited(err) {
				c.pool.eject(cred)
			}
			continue
		}

		text, severity, perr := parseExplanation(resp.Text())
		if perr != nil {
			lastErr = perr
			continue
		}
		return text, severity, nil
	}

	if lastErr == nil {
		lastErr = eris.New("enrich: credential pool exhausted")
	}
	return "", model.SeverityUnknown, lastErr
}

type explanationPayload struct {
	Explanation string `json:"explanation"`
	Severity    string `json:"severity"`
}

// parseExplanation reads the model's JSON reply, tolerating markdown fences.
func parseExplanation(text string) (string, model.Severity, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var payload explanationPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return "", model.SeverityUnknown, eris.Wrap(err, "enrich: unmarshal explanation")
	}
	if strings.TrimSpace(payload.Explanation) == "" {
		return "", model.SeverityUnknown, eris.New("enrich: empty explanation")
	}

	severity := model.ParseSeverity(payload.Severity)
	if severity == model.SeverityUnknown {
		severity = model.SeverityInfo
	}
	return strings.TrimSpace(payload.Explanation), severity, nil
}

// ApplyEnrichment merges one enrichment into the aggregate. Must be called
// serially; the aggregate maps are not synchronized.
func ApplyEnrichment(agg *state.Aggregate, e Enrichment, now time.Time) {
	if e.Decoded != nil {
		e.Decoded.LastSeen = now
		agg.Active.Decoded[e.Raw.ID] = e.Decoded
	}
	if e.Explained != nil {
		e.Explained.LastSeen = now
		storeExplanation(agg, e.Explained)
	}
}

// storeExplanation inserts an explanation, never downgrading a previously
// assigned severity.
func storeExplanation(agg *state.Aggregate, rec *model.ExplanationRecord) {
	if prev, ok := agg.Active.Explained[rec.ID]; ok {
		rec.Severity = model.MaxSeverity(prev.Severity, rec.Severity)
	}
	agg.Active.Explained[rec.ID] = rec
}

// DrainPending re-attempts explanation for every buffered identity still in
// the active set. Successes are stored, removed from the buffer and returned
// so the dispatcher can emit the deferred update. Failures stay buffered;
// identities no longer active were already dropped by reconciliation.
func (c *Coordinator) DrainPending(ctx context.Context, agg *state.Aggregate, now time.Time) []*model.ExplanationRecord {
	if len(agg.Pending) == 0 {
		return nil
	}

	ids := make([]model.Identity, 0, len(agg.Pending))
	for id := range agg.Pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var resolved []*model.ExplanationRecord
	for _, id := range ids {
		raw, ok := agg.Active.Raw[id]
		if !ok {
			continue
		}

		text, severity, err := c.explain(ctx, raw.Text)
		if err != nil {
			zap.L().Info("enrich: buffered explanation still unavailable",
				zap.String("id", string(id)),
				zap.Error(err),
			)
			continue
		}

		rec := &model.ExplanationRecord{
			ID:       id,
			Text:     text,
			Severity: severity,
			TextHash: model.HashText(raw.Text),
			LastSeen: now,
		}
		storeExplanation(agg, rec)
		delete(agg.Pending, id)
		resolved = append(resolved, agg.Active.Explained[id])
	}
	return resolved
}

func warnOnDrift(stage, cachedHash string, raw model.RawRecord) {
	if cachedHash == "" || cachedHash == model.HashText(raw.Text) {
		return
	}
	zap.L().Warn("enrich: raw text changed since cached enrichment, serving stale result",
		zap.String("stage", stage),
		zap.String("id", string(raw.ID)),
	)
}
