// Package memory provides an in-memory model.Repository with the same
// last-write-wins semantics as the SQL implementation. Each instance is
// fully isolated, so tests can construct one per case instead of sharing
// a process-global store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"soulmedia/internal/entity/db"
	"soulmedia/internal/lww"
)

type seenKey struct {
	userID    string
	variantID string
}

type usageKey struct {
	personaID  string
	groupID    string
	locationID string
	scope      string
}

// Repository is a map-backed model.Repository.
type Repository struct {
	mu sync.RWMutex

	styles      map[string]db.StyleProfile
	promptKeys  map[string]db.PromptKey
	variants    map[string]db.Variant
	seen        map[seenKey]db.UserSeen
	usage       map[usageKey]db.LocationUsage
	locks       map[string]db.WorkLock
	idempotency map[string]db.IdempotencyRecord
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		styles:      make(map[string]db.StyleProfile),
		promptKeys:  make(map[string]db.PromptKey),
		variants:    make(map[string]db.Variant),
		seen:        make(map[seenKey]db.UserSeen),
		usage:       make(map[usageKey]db.LocationUsage),
		locks:       make(map[string]db.WorkLock),
		idempotency: make(map[string]db.IdempotencyRecord),
	}
}

// UpsertStyleProfile writes a persona's style profile under LWW rules.
func (r *Repository) UpsertStyleProfile(ctx context.Context, profile *db.StyleProfile) error {
	if profile == nil || strings.TrimSpace(profile.PersonaID) == "" {
		return fmt.Errorf("style profile persona id is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.styles[profile.PersonaID]; ok {
		if !lww.Wins(profile.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(profile), lww.Fingerprint(&existing)) {
			return nil
		}
	}
	r.styles[profile.PersonaID] = *profile
	return nil
}

// GetStyleProfile loads a persona's style profile, nil when absent.
func (r *Repository) GetStyleProfile(ctx context.Context, personaID string) (*db.StyleProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if record, ok := r.styles[personaID]; ok {
		out := record
		return &out, nil
	}
	return nil, nil
}

// CountStyleProfiles returns the number of stored profiles.
func (r *Repository) CountStyleProfiles(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.styles)), nil
}

// UpsertPromptKey persists a prompt key under LWW rules.
func (r *Repository) UpsertPromptKey(ctx context.Context, key *db.PromptKey) error {
	if key == nil || strings.TrimSpace(key.ID) == "" {
		return fmt.Errorf("prompt key id is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.promptKeys[key.ID]; ok {
		if !lww.Wins(key.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(key), lww.Fingerprint(&existing)) {
			return nil
		}
	}
	r.promptKeys[key.ID] = *key
	return nil
}

// GetPromptKey loads a prompt key by id, nil when absent.
func (r *Repository) GetPromptKey(ctx context.Context, id string) (*db.PromptKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if record, ok := r.promptKeys[id]; ok {
		out := record
		return &out, nil
	}
	return nil, nil
}

// FindPromptKeyByHash returns the persona's prompt key matching the hash.
func (r *Repository) FindPromptKeyByHash(ctx context.Context, personaID, keyHash string) (*db.PromptKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *db.PromptKey
	for id := range r.promptKeys {
		record := r.promptKeys[id]
		if record.PersonaID != personaID || record.KeyHash != keyHash {
			continue
		}
		if best == nil || record.UpdatedAtTS > best.UpdatedAtTS {
			out := record
			best = &out
		}
	}
	return best, nil
}

// ListPromptKeys returns all prompt keys for a persona, newest first.
func (r *Repository) ListPromptKeys(ctx context.Context, personaID string) ([]db.PromptKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var keys []db.PromptKey
	for id := range r.promptKeys {
		if r.promptKeys[id].PersonaID == personaID {
			keys = append(keys, r.promptKeys[id])
		}
	}
	sortNewestFirst(keys, func(k db.PromptKey) (int64, string) { return k.UpdatedAtTS, k.ID })
	return keys, nil
}

// UpsertVariant persists a variant under LWW rules.
func (r *Repository) UpsertVariant(ctx context.Context, variant *db.Variant) error {
	if variant == nil || strings.TrimSpace(variant.ID) == "" {
		return fmt.Errorf("variant id is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.variants[variant.ID]; ok {
		if !lww.Wins(variant.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(variant), lww.Fingerprint(&existing)) {
			return nil
		}
	}
	r.variants[variant.ID] = *variant
	return nil
}

// GetVariant loads a variant by id, nil when absent.
func (r *Repository) GetVariant(ctx context.Context, id string) (*db.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if record, ok := r.variants[id]; ok {
		out := record
		return &out, nil
	}
	return nil, nil
}

// ListVariantsByPromptKey returns all variants under a prompt key,
// newest first.
func (r *Repository) ListVariantsByPromptKey(ctx context.Context, pkID string) ([]db.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var variants []db.Variant
	for id := range r.variants {
		if r.variants[id].PromptKeyID == pkID {
			variants = append(variants, r.variants[id])
		}
	}
	sortNewestFirst(variants, func(v db.Variant) (int64, string) { return v.UpdatedAtTS, v.ID })
	return variants, nil
}

// ListUnseenVariants returns the variants under a prompt key the user has
// not been delivered, newest first.
func (r *Repository) ListUnseenVariants(ctx context.Context, pkID, userID string) ([]db.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var variants []db.Variant
	for id := range r.variants {
		record := r.variants[id]
		if record.PromptKeyID != pkID {
			continue
		}
		if _, delivered := r.seen[seenKey{userID: userID, variantID: record.ID}]; delivered {
			continue
		}
		variants = append(variants, record)
	}
	sortNewestFirst(variants, func(v db.Variant) (int64, string) { return v.UpdatedAtTS, v.ID })
	return variants, nil
}

// MarkSeen records a delivery; a repeated pair keeps the most recent
// timestamp.
func (r *Repository) MarkSeen(ctx context.Context, userID, variantID string, seenAtTS int64) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(variantID) == "" {
		return fmt.Errorf("user id and variant id are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := seenKey{userID: userID, variantID: variantID}
	if existing, ok := r.seen[key]; ok && seenAtTS < existing.SeenAtTS {
		return nil
	}
	r.seen[key] = db.UserSeen{UserID: userID, VariantID: variantID, SeenAtTS: seenAtTS}
	return nil
}

// SeenVariantIDs returns the set of variant ids delivered to a user.
func (r *Repository) SeenVariantIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]struct{})
	for key := range r.seen {
		if key.userID == userID {
			out[key.variantID] = struct{}{}
		}
	}
	return out, nil
}

// UpsertLocationUsage records a diversity-chooser selection under LWW
// rules.
func (r *Repository) UpsertLocationUsage(ctx context.Context, row *db.LocationUsage) error {
	if row == nil || strings.TrimSpace(row.PersonaID) == "" || strings.TrimSpace(row.GroupID) == "" || strings.TrimSpace(row.LocationID) == "" {
		return fmt.Errorf("location usage key fields are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := usageKey{personaID: row.PersonaID, groupID: row.GroupID, locationID: row.LocationID, scope: row.Scope}
	if existing, ok := r.usage[key]; ok {
		if !lww.Wins(row.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(row), lww.Fingerprint(&existing)) {
			return nil
		}
	}
	r.usage[key] = *row
	return nil
}

// GetLocationUsage loads one usage row, nil when absent.
func (r *Repository) GetLocationUsage(ctx context.Context, personaID, groupID, locationID, scope string) (*db.LocationUsage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if record, ok := r.usage[usageKey{personaID: personaID, groupID: groupID, locationID: locationID, scope: scope}]; ok {
		out := record
		return &out, nil
	}
	return nil, nil
}

// ListLocationUsage returns all usage rows for (persona, group, scope).
func (r *Repository) ListLocationUsage(ctx context.Context, personaID, groupID, scope string) ([]db.LocationUsage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rows []db.LocationUsage
	for key := range r.usage {
		if key.personaID == personaID && key.groupID == groupID && key.scope == scope {
			rows = append(rows, r.usage[key])
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LocationID < rows[j].LocationID })
	return rows, nil
}

// UpsertWorkLock writes the advisory lock record.
func (r *Repository) UpsertWorkLock(ctx context.Context, lock *db.WorkLock) error {
	if lock == nil || strings.TrimSpace(lock.LockKey) == "" {
		return fmt.Errorf("lock key is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.locks[lock.LockKey]; ok {
		if !lww.Wins(lock.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(lock), lww.Fingerprint(&existing)) {
			return nil
		}
	}
	r.locks[lock.LockKey] = *lock
	return nil
}

// DeleteWorkLock removes the advisory record if still owned.
func (r *Repository) DeleteWorkLock(ctx context.Context, lockKey, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.locks[lockKey]; ok && existing.OwnerID == ownerID {
		delete(r.locks, lockKey)
	}
	return nil
}

// GetIdempotencyRecord loads a memoized result, nil when absent.
func (r *Repository) GetIdempotencyRecord(ctx context.Context, key string) (*db.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if record, ok := r.idempotency[key]; ok {
		out := record
		return &out, nil
	}
	return nil, nil
}

// PutIdempotencyRecord stores a memoized result under LWW rules.
func (r *Repository) PutIdempotencyRecord(ctx context.Context, record *db.IdempotencyRecord) error {
	if record == nil || strings.TrimSpace(record.Key) == "" {
		return fmt.Errorf("idempotency key is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.idempotency[record.Key]; ok {
		if !lww.Wins(record.UpdatedAtTS, existing.UpdatedAtTS, lww.Fingerprint(record), lww.Fingerprint(&existing)) {
			return nil
		}
	}
	r.idempotency[record.Key] = *record
	return nil
}

// sortNewestFirst orders records by descending timestamp, breaking ties
// on the id so results are stable.
func sortNewestFirst[T any](items []T, key func(T) (int64, string)) {
	sort.Slice(items, func(i, j int) bool {
		tsI, idI := key(items[i])
		tsJ, idJ := key(items[j])
		if tsI != tsJ {
			return tsI > tsJ
		}
		return idI < idJ
	})
}
