// Package nextedit implements the per-document next-edit cache: a shared,
// bounded LRU of suggested edits keyed by (document,
// snapshot text), plus a per-document list of "tracked" entries the cache
// keeps rebasing forward as the user keeps typing, so a suggestion that
// still applies can be found even after the document has drifted away from
// the exact snapshot it was computed against.
package nextedit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/alantheprice/nextedit/pkg/rebase"
	"github.com/alantheprice/nextedit/pkg/refiner"
	"github.com/alantheprice/nextedit/pkg/stredit"
	"github.com/alantheprice/nextedit/pkg/utils"
)

// RequestHandle is the "request handle (inbound)" contract: the cache
// stores and returns it verbatim, inspecting only HeaderRequestID.
type RequestHandle struct {
	HeaderRequestID string
	// Payload carries whatever else the caller wants to round-trip; the
	// cache never looks inside it.
	Payload any
}

// CachedEdit is one cache entry.
type CachedEdit struct {
	ID                 uuid.UUID
	DocID              string
	DocumentBeforeEdit string
	EditWindow         *stredit.OffsetRange
	OriginalEdits      []stredit.StringReplacement
	DetailedEdits      [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex]

	// UserEditSince is nil when the entry isn't (or is no longer) tracked:
	// either it was created with setNoNextEdit/no drift yet, or a
	// consistency check failed and it was untracked.
	UserEditSince *stredit.StringEdit
	RebaseFailed  bool
	Rejected      bool
	SubsequentN   int
	Source        RequestHandle
	CacheTime     time.Time
}

// CachedOrRebasedEdit is the result of a successful lookup. Edits is nil
// for a direct (exact-snapshot) hit, meaning the caller should use
// Entry.OriginalEdits/DetailedEdits as-is; Edits is non-nil (possibly
// empty) when the entry was reached via rebase.
type CachedOrRebasedEdit struct {
	Entry *CachedEdit
	Edits []rebase.RebasedEdit
}

// Stats mirrors a typical response-cache's CacheStats shape, scoped to this
// engine's concerns.
type Stats struct {
	Hits           int64
	Misses         int64
	RebaseAttempts int64
	RebaseHits     int64
	Evictions      int64
}

// Config carries the engine's recognized options.
type Config struct {
	LRUCapacity                 int
	MaxAgreementOffset          int
	MaxImperfectAgreementLength int
	RefinerTimeoutMs            int
	IsRevisedCacheStrategy      bool
	TrackedEntryLimit           int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		LRUCapacity:                 50,
		MaxAgreementOffset:          10,
		MaxImperfectAgreementLength: 5,
		RefinerTimeoutMs:            500,
		IsRevisedCacheStrategy:      true,
		TrackedEntryLimit:           50,
	}
}

// Cache is the shared LRU plus per-document tracked lists.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	rebaser *rebase.Rebaser
	lru     *lru.Cache[string, *CachedEdit]
	tracked map[string][]*CachedEdit // docID -> most-recent-first
	docKeys map[string]map[string]struct{}
	stats   Stats

	// OnEvict, if set, is notified exactly once per entry displaced by the
	// shared LRU. It must not call back into the Cache.
	OnEvict func(*CachedEdit)
}

// New builds a Cache. diffRefiner and tracer are forwarded to the
// underlying rebaser (nil defaults to GoDiffRefiner and a no-op tracer).
func New(cfg Config, diffRefiner refiner.DiffRefiner, tracer rebase.Tracer) *Cache {
	if cfg.LRUCapacity <= 0 {
		cfg.LRUCapacity = DefaultConfig().LRUCapacity
	}

	c := &Cache{
		cfg:     cfg,
		tracked: make(map[string][]*CachedEdit),
		docKeys: make(map[string]map[string]struct{}),
	}
	c.rebaser = rebase.New(rebase.Options{
		MaxAgreementOffset:          cfg.MaxAgreementOffset,
		MaxImperfectAgreementLength: cfg.MaxImperfectAgreementLength,
		RefinerOptions: refiner.Options{
			ExtendToSubwords:   true,
			MaxComputationTime: time.Duration(cfg.RefinerTimeoutMs) * time.Millisecond,
		},
	}, diffRefiner, tracer)

	l, _ := lru.NewWithEvict[string, *CachedEdit](cfg.LRUCapacity, c.onLRUEvict)
	c.lru = l
	return c
}

// onLRUEvict is the shared LRU's single ownership-transfer point: it
// drops the entry from its document's tracked
// list and key index, then forwards the notification to OnEvict.
func (c *Cache) onLRUEvict(key string, entry *CachedEdit) {
	c.untrack(entry)
	if keys := c.docKeys[entry.DocID]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.docKeys, entry.DocID)
		}
	}
	c.stats.Evictions++
	if c.OnEvict != nil {
		c.OnEvict(entry)
	}
}

func cacheKey(docID, snapshot string) string {
	sum := sha256.Sum256([]byte(snapshot))
	return docID + "\x00" + hex.EncodeToString(sum[:])
}

func (c *Cache) store(entry *CachedEdit) {
	key := cacheKey(entry.DocID, entry.DocumentBeforeEdit)
	c.lru.Add(key, entry)

	keys := c.docKeys[entry.DocID]
	if keys == nil {
		keys = make(map[string]struct{})
		c.docKeys[entry.DocID] = keys
	}
	keys[key] = struct{}{}

	if entry.UserEditSince != nil {
		c.track(entry)
	}
}

// track unshifts entry onto its document's tracked list (most-recent
// first), trimming to TrackedEntryLimit.
func (c *Cache) track(entry *CachedEdit) {
	list := append([]*CachedEdit{entry}, c.tracked[entry.DocID]...)
	limit := c.cfg.TrackedEntryLimit
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	c.tracked[entry.DocID] = list
}

func (c *Cache) untrack(entry *CachedEdit) {
	list := c.tracked[entry.DocID]
	for i, e := range list {
		if e == entry {
			c.tracked[entry.DocID] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// SetKthNextEdit records a suggestion.
func (c *Cache) SetKthNextEdit(
	docID, snapshot string,
	editWindow *stredit.OffsetRange,
	edits []stredit.StringReplacement,
	subsequentN int,
	detailedEdits [][]stredit.AnnotatedReplacement[stredit.EditDataWithIndex],
	userEditSince *stredit.StringEdit,
	source RequestHandle,
) *CachedEdit {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &CachedEdit{
		ID:                 uuid.New(),
		DocID:              docID,
		DocumentBeforeEdit: snapshot,
		EditWindow:         editWindow,
		OriginalEdits:      edits,
		DetailedEdits:      detailedEdits,
		UserEditSince:      userEditSince,
		SubsequentN:        subsequentN,
		Source:             source,
		CacheTime:          time.Now(),
	}
	c.store(entry)
	return entry
}

// SetNoNextEdit records that there is no suggestion for this snapshot.
func (c *Cache) SetNoNextEdit(docID, snapshot string, editWindow *stredit.OffsetRange, source RequestHandle) *CachedEdit {
	return c.SetKthNextEdit(docID, snapshot, editWindow, nil, 0, nil, nil, source)
}

// LookupNextEdit looks up a cached or rebased suggestion for the document.
func (c *Cache) LookupNextEdit(docID, currentDoc string, currentSelection []stredit.OffsetRange) (CachedOrRebasedEdit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hit, ok := c.directHit(docID, currentDoc, currentSelection); ok {
		c.stats.Hits++
		return hit, true
	}

	if !c.cfg.IsRevisedCacheStrategy {
		c.stats.Misses++
		return CachedOrRebasedEdit{}, false
	}

	for _, entry := range append([]*CachedEdit(nil), c.tracked[docID]...) {
		result, handled := c.attemptRebase(entry, currentDoc, currentSelection)
		if handled {
			c.stats.Hits++
			return result, true
		}
	}

	c.stats.Misses++
	return CachedOrRebasedEdit{}, false
}

func (c *Cache) directHit(docID, currentDoc string, currentSelection []stredit.OffsetRange) (CachedOrRebasedEdit, bool) {
	entry, ok := c.lru.Get(cacheKey(docID, currentDoc))
	if !ok {
		return CachedOrRebasedEdit{}, false
	}
	if entry.EditWindow != nil {
		if len(currentSelection) == 0 || !entry.EditWindow.ContainsRange(currentSelection[0]) {
			return CachedOrRebasedEdit{}, false
		}
	}
	return CachedOrRebasedEdit{Entry: entry}, true
}

// TryRebaseCacheEntry exposes the same per-entry rebase attempt
// LookupNextEdit's revised-strategy loop uses, for callers that already
// hold a specific entry.
func (c *Cache) TryRebaseCacheEntry(entry *CachedEdit, currentDoc string, currentSelection []stredit.OffsetRange) (CachedOrRebasedEdit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, handled := c.attemptRebase(entry, currentDoc, currentSelection)
	return result, handled
}

// attemptRebase runs one strict rebase attempt for entry and applies
// per-outcome handling. The bool return is whether the
// caller should stop iterating and treat this as the lookup's answer (a
// true cache hit, whether "no edits" or a non-empty rebased suggestion);
// rebaseFailed/inconsistentEdits/error/outsideEditWindow all return false
// so the caller moves on to the next tracked entry.
func (c *Cache) attemptRebase(entry *CachedEdit, currentDoc string, currentSelection []stredit.OffsetRange) (result CachedOrRebasedEdit, handled bool) {
	if entry.UserEditSince == nil {
		return CachedOrRebasedEdit{}, false
	}

	// §4.4.6: any exception during rebase is a cache miss, never a
	// propagated panic, however it originates.
	defer func() {
		if r := recover(); r != nil {
			rootCause, ok := r.(error)
			if !ok {
				rootCause = fmt.Errorf("%v", r)
			}
			err := utils.NewCacheError("attemptRebase", entry.DocID, rootCause)
			c.rebaser.Tracer.Trace(utils.FormatError(err))
			entry.UserEditSince = nil
			c.untrack(entry)
			result, handled = CachedOrRebasedEdit{}, false
		}
	}()

	c.stats.RebaseAttempts++
	outcome := c.rebaser.Rebase(rebase.Request{
		Snapshot:         entry.DocumentBeforeEdit,
		EditWindow:       entry.EditWindow,
		OriginalEdits:    entry.OriginalEdits,
		DetailedEdits:    entry.DetailedEdits,
		UserEditSince:    *entry.UserEditSince,
		CurrentDoc:       currentDoc,
		CurrentSelection: currentSelection,
		Mode:             rebase.Strict,
	})

	switch outcome.Kind {
	case rebase.OutcomeRebaseFailed:
		entry.RebaseFailed = true
		return CachedOrRebasedEdit{}, false
	case rebase.OutcomeInconsistentEdits, rebase.OutcomeError:
		err := utils.NewCacheError("attemptRebase", entry.DocID, outcome.Err)
		c.rebaser.Tracer.Trace(utils.FormatError(err))
		entry.UserEditSince = nil
		c.untrack(entry)
		return CachedOrRebasedEdit{}, false
	case rebase.OutcomeOutsideEditWindow:
		return CachedOrRebasedEdit{}, false
	}

	// OutcomeOK. An empty result means nothing is left to suggest here,
	// whether the suggestion was trivial to begin with or the user has
	// since retyped all of it (the rebaser's absorption case) — either
	// way it is a confirmed "no edits" hit, not a miss.
	if len(outcome.Edits) == 0 {
		c.stats.RebaseHits++
		return CachedOrRebasedEdit{Entry: entry, Edits: []rebase.RebasedEdit{}}, true
	}

	if !entry.Rejected {
		entry.Rejected = c.isRejectedLocked(entry.DocID, currentDoc, outcome.Edits[0].Edit)
	}
	c.stats.RebaseHits++
	return CachedOrRebasedEdit{Entry: entry, Edits: outcome.Edits}, true
}

// IsRejectedNextEdit reports whether edit matches a previously dismissed
// suggestion still tracked for this document.
func (c *Cache) IsRejectedNextEdit(docID, currentDoc string, edit stredit.StringReplacement) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isRejectedLocked(docID, currentDoc, edit)
}

func (c *Cache) isRejectedLocked(docID, currentDoc string, edit stredit.StringReplacement) bool {
	canon := edit.RemoveCommonSuffixAndPrefix(currentDoc)

	for _, r := range c.tracked[docID] {
		if !r.Rejected || r.UserEditSince == nil {
			continue
		}
		outcome := c.rebaser.Rebase(rebase.Request{
			Snapshot:      r.DocumentBeforeEdit,
			OriginalEdits: r.OriginalEdits,
			DetailedEdits: r.DetailedEdits,
			UserEditSince: *r.UserEditSince,
			CurrentDoc:    currentDoc,
			Mode:          rebase.Lenient,
		})
		if outcome.Kind != rebase.OutcomeOK {
			continue
		}
		for _, e := range outcome.Edits {
			if e.Edit.RemoveCommonSuffixAndPrefix(currentDoc) == canon {
				return true
			}
		}
	}
	return false
}

// RejectedNextEdit marks every entry whose Source.HeaderRequestID matches
// requestID as rejected.
func (c *Cache) RejectedNextEdit(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		entry, ok := c.lru.Peek(key)
		if ok && entry.Source.HeaderRequestID == requestID {
			entry.Rejected = true
		}
	}
}

// DocumentChanged folds a user edit into every tracked entry of docID.
func (c *Cache) DocumentChanged(docID, currentDoc string, delta stredit.StringEdit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range append([]*CachedEdit(nil), c.tracked[docID]...) {
		if e.UserEditSince == nil {
			continue
		}
		composed := e.UserEditSince.Compose(delta)
		e.RebaseFailed = false
		if composed.Apply(e.DocumentBeforeEdit) != currentDoc {
			e.UserEditSince = nil
			c.untrack(e)
			continue
		}
		e.UserEditSince = &composed
	}
}

// DocumentClosed drops every cache entry and tracked reference for docID
// when a document closes.
func (c *Cache) DocumentClosed(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.docKeys[docID] {
		c.lru.Remove(key) // triggers onLRUEvict, which untracks and notifies
	}
	delete(c.docKeys, docID)
	delete(c.tracked, docID)
}

// EvictedCachedEdit is a no-op hook point kept for API parity with the
// rest of the cache's operation list; eviction notification is delivered through
// OnEvict, which the caller assigns on the Cache, since the shared LRU is the only
// place evictions actually originate.
func (c *Cache) EvictedCachedEdit(*CachedEdit) {}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.tracked = make(map[string][]*CachedEdit)
	c.docKeys = make(map[string]map[string]struct{})
}

// StatsSnapshot returns a copy of the cache's running counters.
func (c *Cache) StatsSnapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
