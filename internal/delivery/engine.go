// Package delivery implements the variant request path: similarity
// cache lookup, per-user delivery uniqueness, and generation on miss,
// all under the global gate and persona+cue lock.
package delivery

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"soulmedia/internal/backend"
	"soulmedia/internal/entity/common"
	"soulmedia/internal/entity/db"
	"soulmedia/internal/entity/dto"
	"soulmedia/internal/ids"
	"soulmedia/internal/locks"
	"soulmedia/internal/model"
	"soulmedia/internal/prompt"
	"soulmedia/internal/storage"
	"soulmedia/internal/utils"
)

const (
	defaultGateTimeout = 2 * time.Minute
	defaultLockTimeout = time.Minute
)

// Options tune the engine.
type Options struct {
	PublicBaseURL string
	GateTimeout   time.Duration
	LockTimeout   time.Duration
}

// Engine is the delivery core: one instance serves both synchronous
// requests and background tasks.
type Engine struct {
	repo     model.Repository
	cache    *prompt.Cache
	backends *backend.Registry
	store    storage.Storage
	places   *PlaceChooser
	gate     *locks.Gate
	keyed    *locks.KeyedMutex

	publicBaseURL string
	gateTimeout   time.Duration
	lockTimeout   time.Duration

	seedFn func() int64
}

// NewEngine wires the delivery engine.
func NewEngine(repo model.Repository, cache *prompt.Cache, backends *backend.Registry, store storage.Storage, opts Options) *Engine {
	if opts.GateTimeout <= 0 {
		opts.GateTimeout = defaultGateTimeout
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = "/files"
	}
	return &Engine{
		repo:          repo,
		cache:         cache,
		backends:      backends,
		store:         store,
		places:        NewPlaceChooser(repo),
		gate:          locks.NewGate(locks.GlobalGenerationKey),
		keyed:         locks.NewKeyedMutex(),
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		gateTimeout:   opts.GateTimeout,
		lockTimeout:   opts.LockTimeout,
		seedFn: func() int64 {
			return 1000 + rand.Int63n(999000)
		},
	}
}

// Places exposes the location chooser.
func (e *Engine) Places() *PlaceChooser {
	return e.places
}

// RequestVariant serves one cue request synchronously.
func (e *Engine) RequestVariant(ctx context.Context, req dto.VariantRequest) (*dto.VariantResponse, error) {
	return e.RequestVariantWithProgress(ctx, req, nil)
}

// RequestVariantWithProgress is RequestVariant with a progress callback
// for background tasks. The callback may be nil.
func (e *Engine) RequestVariantWithProgress(ctx context.Context, req dto.VariantRequest, report func(int)) (*dto.VariantResponse, error) {
	if report == nil {
		report = func(int) {}
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{
		"persona_id": req.PersonaID,
		"cue":        req.Cue,
		"user_id":    req.UserID,
	}); err != nil {
		return nil, err
	}

	if req.IdemKey != "" {
		if cached, err := e.memoizedVariant(ctx, req.IdemKey); err != nil {
			return nil, err
		} else if cached != nil {
			return cached, nil
		}
	}

	profile, err := e.repo.GetStyleProfile(ctx, req.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("load style profile: %w", err)
	}
	if profile == nil {
		return nil, &NotFoundError{Resource: "style profile", ID: req.PersonaID}
	}

	releaseGate, releaseLock, err := e.acquire(ctx, ids.LockKey(req.PersonaID, req.Cue))
	if err != nil {
		return nil, err
	}
	defer releaseGate()
	defer releaseLock()
	report(10)

	similar, err := e.cache.FindSimilar(ctx, req.PersonaID, req.Cue, profile)
	if err != nil {
		return nil, err
	}

	if similar != nil {
		unseen, err := e.repo.ListUnseenVariants(ctx, similar.ID, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("list unseen variants: %w", err)
		}
		if len(unseen) > 0 {
			// Newest first: index 0 is the freshest unseen variant.
			best := unseen[0]
			if err := e.repo.MarkSeen(ctx, req.UserID, best.ID, ids.NowMillis()); err != nil {
				return nil, fmt.Errorf("mark seen: %w", err)
			}
			report(100)
			logrus.WithFields(logrus.Fields{
				"persona_id": req.PersonaID,
				"user_id":    req.UserID,
				"variant_id": best.ID,
				"pk_id":      similar.ID,
			}).Info("variant cache hit")
			resp := &dto.VariantResponse{
				AssetURL:    best.AssetURL,
				VariantID:   best.ID,
				PromptKeyID: similar.ID,
				CacheHit:    true,
			}
			return resp, e.memoizeVariant(ctx, req.IdemKey, resp)
		}
	}

	resp, err := e.generateVariant(ctx, req, kind, profile, similar, report)
	if err != nil {
		return nil, err
	}
	return resp, e.memoizeVariant(ctx, req.IdemKey, resp)
}

func (e *Engine) generateVariant(ctx context.Context, req dto.VariantRequest, kind common.AssetKind, profile *db.StyleProfile, similar *db.PromptKey, report func(int)) (*dto.VariantResponse, error) {
	positive, negative, err := prompt.BuildPrompt(profile, req.Cue, nil)
	if err != nil {
		return nil, err
	}

	variantID := ids.New()
	seed := e.seedFn()

	gen, err := e.backends.For(kind)
	if err != nil {
		return nil, err
	}
	report(30)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := gen.Generate(ctx, backend.Job{
		PersonaID:      req.PersonaID,
		VariantID:      variantID,
		Kind:           kind,
		PositivePrompt: positive,
		NegativePrompt: negative,
		Seed:           seed,
	})
	if err != nil {
		return nil, &BackendError{Backend: gen.Name(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(70)

	pk := similar
	if pk == nil {
		pk, err = e.cache.CreatePromptKey(ctx, req.PersonaID, req.Cue, profile, common.JSONMap{
			"canonical_prompt": positive,
		})
		if err != nil {
			return nil, err
		}
	}

	storageKey := fmt.Sprintf("persona/%s/key/%s/variant/%s.%s", req.PersonaID, pk.ID, variantID, result.Ext)
	assetURL, meta, err := e.persistAsset(ctx, storageKey, result, kind)
	if err != nil {
		return nil, err
	}
	meta["positive_prompt"] = positive
	meta["negative_prompt"] = negative

	variant := &db.Variant{
		ID:          variantID,
		PromptKeyID: pk.ID,
		PersonaID:   req.PersonaID,
		AssetURL:    assetURL,
		StorageKey:  storageKey,
		Seed:        seed,
		Meta:        meta,
		UpdatedAtTS: ids.NowMillis(),
	}
	if kind == common.AssetImage {
		if hash, width, height, err := utils.PerceptualHash(result.Data); err == nil {
			variant.PHash = hash
			meta["width"] = width
			meta["height"] = height
		}
	}
	if err := e.repo.UpsertVariant(ctx, variant); err != nil {
		return nil, fmt.Errorf("persist variant: %w", err)
	}

	// Seen immediately so a follow-up request by the same user asks for
	// something new instead of getting this variant back.
	if err := e.repo.MarkSeen(ctx, req.UserID, variantID, ids.NowMillis()); err != nil {
		return nil, fmt.Errorf("mark seen: %w", err)
	}
	report(100)

	logrus.WithFields(logrus.Fields{
		"persona_id": req.PersonaID,
		"user_id":    req.UserID,
		"variant_id": variantID,
		"pk_id":      pk.ID,
		"kind":       string(kind),
		"seed":       seed,
	}).Info("variant generated")

	return &dto.VariantResponse{
		AssetURL:    assetURL,
		VariantID:   variantID,
		PromptKeyID: pk.ID,
		CacheHit:    false,
	}, nil
}

// RequestLocationVariant serves one location-tagged request.
func (e *Engine) RequestLocationVariant(ctx context.Context, req dto.LocationVariantRequest) (*dto.LocationVariantResponse, error) {
	return e.RequestLocationVariantWithProgress(ctx, req, nil)
}

// RequestLocationVariantWithProgress is RequestLocationVariant with a
// progress callback for background tasks.
func (e *Engine) RequestLocationVariantWithProgress(ctx context.Context, req dto.LocationVariantRequest, report func(int)) (*dto.LocationVariantResponse, error) {
	if report == nil {
		report = func(int) {}
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{
		"persona_id": req.PersonaID,
		"group":      req.Group,
		"mood":       req.Mood,
		"user_id":    req.UserID,
	}); err != nil {
		return nil, err
	}
	if !e.places.SupportsGroup(req.Group) {
		return nil, &ValidationError{Field: "group", Reason: fmt.Sprintf("unsupported group %q", req.Group)}
	}

	profile, err := e.repo.GetStyleProfile(ctx, req.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("load style profile: %w", err)
	}
	if profile == nil {
		return nil, &NotFoundError{Resource: "style profile", ID: req.PersonaID}
	}

	releaseGate, releaseLock, err := e.acquire(ctx, ids.LockKey(req.PersonaID, "location:"+req.Group+":"+req.Mood))
	if err != nil {
		return nil, err
	}
	defer releaseGate()
	defer releaseLock()
	report(10)

	location, err := e.places.Choose(ctx, req.PersonaID, req.Group, req.UserID)
	if err != nil {
		return nil, err
	}

	positive, negative, err := prompt.BuildSelfiePrompt(profile, req.PersonaID, req.Group, location, req.Mood)
	if err != nil {
		return nil, err
	}

	variantID := ids.New()
	seed := e.seedFn()

	gen, err := e.backends.For(kind)
	if err != nil {
		return nil, err
	}
	report(30)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := gen.Generate(ctx, backend.Job{
		PersonaID:      req.PersonaID,
		VariantID:      variantID,
		Kind:           kind,
		PositivePrompt: positive,
		NegativePrompt: negative,
		Seed:           seed,
	})
	if err != nil {
		return nil, &BackendError{Backend: gen.Name(), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(70)

	selfieCue := prompt.SelfieCue(req.Group, location, req.Mood)
	pk, err := e.cache.CreatePromptKey(ctx, req.PersonaID, selfieCue, profile, common.JSONMap{
		"selfie_type":      true,
		"group":            req.Group,
		"location":         location,
		"mood":             req.Mood,
		"canonical_prompt": positive,
	})
	if err != nil {
		return nil, err
	}

	storageKey := fmt.Sprintf("persona/%s/selfie/%s/%s/%s.%s", req.PersonaID, req.Group, location, variantID, result.Ext)
	assetURL, meta, err := e.persistAsset(ctx, storageKey, result, kind)
	if err != nil {
		return nil, err
	}
	meta["selfie_type"] = true
	meta["group"] = req.Group
	meta["location"] = location
	meta["mood"] = req.Mood
	meta["positive_prompt"] = positive
	meta["negative_prompt"] = negative

	variant := &db.Variant{
		ID:          variantID,
		PromptKeyID: pk.ID,
		PersonaID:   req.PersonaID,
		AssetURL:    assetURL,
		StorageKey:  storageKey,
		Seed:        seed,
		Meta:        meta,
		UpdatedAtTS: ids.NowMillis(),
	}
	if kind == common.AssetImage {
		if hash, width, height, err := utils.PerceptualHash(result.Data); err == nil {
			variant.PHash = hash
			meta["width"] = width
			meta["height"] = height
		}
	}
	if err := e.repo.UpsertVariant(ctx, variant); err != nil {
		return nil, fmt.Errorf("persist variant: %w", err)
	}
	// Not marked seen here: the caller acknowledges delivery via
	// MarkSeen once the asset is actually shown.
	report(100)

	logrus.WithFields(logrus.Fields{
		"persona_id": req.PersonaID,
		"user_id":    req.UserID,
		"variant_id": variantID,
		"location":   location,
	}).Info("location variant generated")

	return &dto.LocationVariantResponse{
		AssetURL:         assetURL,
		VariantID:        variantID,
		PromptKeyID:      pk.ID,
		SelectedLocation: location,
	}, nil
}

// MarkSeen records an out-of-band delivery acknowledgement.
func (e *Engine) MarkSeen(ctx context.Context, req dto.MarkSeenRequest) error {
	if err := requireFields(map[string]string{
		"user_id":    req.UserID,
		"variant_id": req.VariantID,
	}); err != nil {
		return err
	}
	variant, err := e.repo.GetVariant(ctx, req.VariantID)
	if err != nil {
		return fmt.Errorf("load variant: %w", err)
	}
	if variant == nil {
		return &NotFoundError{Resource: "variant", ID: req.VariantID}
	}
	return e.repo.MarkSeen(ctx, req.UserID, req.VariantID, ids.NowMillis())
}

// acquire takes the global gate then the keyed lock, mirroring the
// advisory WorkLock row for visibility. Release order is lock, gate.
func (e *Engine) acquire(ctx context.Context, lockKey string) (releaseGate, releaseLock func(), err error) {
	gateCtx, cancelGate := context.WithTimeout(ctx, e.gateTimeout)
	defer cancelGate()
	if err := e.gate.Acquire(gateCtx); err != nil {
		return nil, nil, err
	}

	lockCtx, cancelLock := context.WithTimeout(ctx, e.lockTimeout)
	defer cancelLock()
	release, err := e.keyed.Acquire(lockCtx, lockKey)
	if err != nil {
		e.gate.Release()
		return nil, nil, err
	}

	ownerID := ids.New()
	now := ids.NowMillis()
	advisory := &db.WorkLock{
		LockKey:     lockKey,
		OwnerID:     ownerID,
		ExpiresAtTS: now + e.lockTimeout.Milliseconds(),
		UpdatedAtTS: now,
	}
	if err := e.repo.UpsertWorkLock(ctx, advisory); err != nil {
		logrus.WithError(err).WithField("lock_key", lockKey).Warn("advisory lock write failed")
	}

	releaseLock = func() {
		if err := e.repo.DeleteWorkLock(context.Background(), lockKey, ownerID); err != nil {
			logrus.WithError(err).WithField("lock_key", lockKey).Warn("advisory lock delete failed")
		}
		release()
	}
	return e.gate.Release, releaseLock, nil
}

func (e *Engine) persistAsset(ctx context.Context, storageKey string, result *backend.Result, kind common.AssetKind) (string, common.JSONMap, error) {
	savedKey, err := e.store.Save(ctx, result.Data, storage.SaveOptions{
		Key:       storageKey,
		Extension: result.Ext,
	})
	if err != nil {
		return "", nil, fmt.Errorf("persist asset: %w", err)
	}

	meta := common.JSONMap{
		"file_size": len(result.Data),
		"ext":       result.Ext,
		"kind":      string(kind),
	}
	return e.publicBaseURL + "/" + strings.TrimLeft(savedKey, "/"), meta, nil
}

func (e *Engine) memoizedVariant(ctx context.Context, idemKey string) (*dto.VariantResponse, error) {
	record, err := e.repo.GetIdempotencyRecord(ctx, idemKey)
	if err != nil {
		return nil, fmt.Errorf("load idempotency record: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	resp := &dto.VariantResponse{}
	if v, ok := record.Result["asset_url"].(string); ok {
		resp.AssetURL = v
	}
	if v, ok := record.Result["variant_id"].(string); ok {
		resp.VariantID = v
	}
	if v, ok := record.Result["prompt_key_id"].(string); ok {
		resp.PromptKeyID = v
	}
	if v, ok := record.Result["cache_hit"].(bool); ok {
		resp.CacheHit = v
	}
	return resp, nil
}

func (e *Engine) memoizeVariant(ctx context.Context, idemKey string, resp *dto.VariantResponse) error {
	if idemKey == "" {
		return nil
	}
	record := &db.IdempotencyRecord{
		Key: idemKey,
		Result: common.JSONMap{
			"asset_url":     resp.AssetURL,
			"variant_id":    resp.VariantID,
			"prompt_key_id": resp.PromptKeyID,
			"cache_hit":     resp.CacheHit,
		},
		UpdatedAtTS: ids.NowMillis(),
	}
	if err := e.repo.PutIdempotencyRecord(ctx, record); err != nil {
		return fmt.Errorf("store idempotency record: %w", err)
	}
	return nil
}

func parseKind(raw string) (common.AssetKind, error) {
	if strings.TrimSpace(raw) == "" {
		return common.AssetImage, nil
	}
	kind := common.AssetKind(raw)
	if !kind.Valid() {
		return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown asset kind %q", raw)}
	}
	return kind, nil
}

func requireFields(fields map[string]string) error {
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: name, Reason: "must not be empty"}
		}
	}
	return nil
}
