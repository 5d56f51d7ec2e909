package model

import (
	"context"

	"soulmedia/internal/entity/db"
)

// Repository defines the persistence operations used by the delivery
// engine. Every Upsert applies last-write-wins semantics keyed on the
// record's UpdatedAtTS; lookups return (nil, nil) when no record exists.
type Repository interface {
	// Style profiles
	UpsertStyleProfile(ctx context.Context, profile *db.StyleProfile) error
	GetStyleProfile(ctx context.Context, personaID string) (*db.StyleProfile, error)
	CountStyleProfiles(ctx context.Context) (int64, error)

	// Prompt keys
	UpsertPromptKey(ctx context.Context, key *db.PromptKey) error
	GetPromptKey(ctx context.Context, id string) (*db.PromptKey, error)
	FindPromptKeyByHash(ctx context.Context, personaID, keyHash string) (*db.PromptKey, error)
	ListPromptKeys(ctx context.Context, personaID string) ([]db.PromptKey, error)

	// Variants
	UpsertVariant(ctx context.Context, variant *db.Variant) error
	GetVariant(ctx context.Context, id string) (*db.Variant, error)
	ListVariantsByPromptKey(ctx context.Context, pkID string) ([]db.Variant, error)
	ListUnseenVariants(ctx context.Context, pkID, userID string) ([]db.Variant, error)

	// Delivery history
	MarkSeen(ctx context.Context, userID, variantID string, seenAtTS int64) error
	SeenVariantIDs(ctx context.Context, userID string) (map[string]struct{}, error)

	// Location usage
	UpsertLocationUsage(ctx context.Context, row *db.LocationUsage) error
	GetLocationUsage(ctx context.Context, personaID, groupID, locationID, scope string) (*db.LocationUsage, error)
	ListLocationUsage(ctx context.Context, personaID, groupID, scope string) ([]db.LocationUsage, error)

	// Advisory work locks
	UpsertWorkLock(ctx context.Context, lock *db.WorkLock) error
	DeleteWorkLock(ctx context.Context, lockKey, ownerID string) error

	// Idempotency
	GetIdempotencyRecord(ctx context.Context, key string) (*db.IdempotencyRecord, error)
	PutIdempotencyRecord(ctx context.Context, record *db.IdempotencyRecord) error
}
