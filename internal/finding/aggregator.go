package finding

import (
	"sort"
	"sync"
	"time"

	"github.com/aiandme-io/humanbound-engine/internal/judge"
	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Aggregator consumes verdicts from concurrent conversation workers and
// maintains the deduplicated finding set for a run. Append-mostly: findings
// are created or merged, never deleted.
//
// Thread-safety: all methods are safe for concurrent use.
type Aggregator struct {
	mu       sync.RWMutex
	runID    types.ID
	byKey    map[string]*Finding
	coverage map[string]*Coverage
}

// NewAggregator creates an aggregator for one run.
func NewAggregator(runID types.ID) *Aggregator {
	return &Aggregator{
		runID:    runID,
		byKey:    make(map[string]*Finding),
		coverage: make(map[string]*Coverage),
	}
}

// RecordAttempt counts one conversation attempted for a category,
// regardless of outcome. Feeds coverage reporting.
func (a *Aggregator) RecordAttempt(category string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cov := a.coverage[category]
	if cov == nil {
		cov = &Coverage{}
		a.coverage[category] = cov
	}
	cov.Attempted++
}

// Record feeds one verdict into the aggregator. Passing and unjudged
// verdicts never create or mutate findings. For failing verdicts the
// dedup key is (category, normalized prompt intent): a repeat increments
// occurrence_count and keeps the highest-severity, highest-confidence
// rationale.
func (a *Aggregator) Record(category, prompt, response string, v judge.Verdict) {
	if v.Passed || v.Unjudged {
		return
	}

	key := dedupKey(category, prompt)
	now := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	existing, found := a.byKey[key]
	if found {
		existing.OccurrenceCount++
		existing.LastSeen = now
		if v.Severity.Rank() > existing.Severity.Rank() ||
			(v.Severity == existing.Severity && v.Confidence > existing.Confidence) {
			existing.Severity = v.Severity
			existing.Confidence = v.Confidence
			existing.Rationale = v.Rationale
			existing.JudgeCategory = v.Category
			existing.Prompt = prompt
			existing.Response = response
		}
		return
	}

	a.byKey[key] = &Finding{
		ID:              types.NewID(),
		RunID:           a.runID,
		Category:        category,
		JudgeCategory:   v.Category,
		Signature:       key,
		Severity:        v.Severity,
		Rationale:       v.Rationale,
		Confidence:      v.Confidence,
		Prompt:          prompt,
		Response:        response,
		OccurrenceCount: 1,
		FirstSeen:       now,
		LastSeen:        now,
	}

	cov := a.coverage[category]
	if cov == nil {
		cov = &Coverage{}
		a.coverage[category] = cov
	}
	cov.Found++
}

// Findings returns the current findings ordered by severity descending,
// then by first-seen time.
func (a *Aggregator) Findings() []*Finding {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*Finding, 0, len(a.byKey))
	for _, f := range a.byKey {
		copied := *f
		out = append(out, &copied)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})

	return out
}

// CoverageByCategory returns attempted and found counts per category.
func (a *Aggregator) CoverageByCategory() map[string]Coverage {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]Coverage, len(a.coverage))
	for cat, cov := range a.coverage {
		out[cat] = *cov
	}
	return out
}
