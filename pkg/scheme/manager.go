// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sharelock.
//
// go-sharelock is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package scheme manages the lifecycle of sharing schemes and the assets
// they protect. A Manager persists scheme records and asset links through
// a storage.Backend and drives the sharelock Engine for every share and
// file operation.
//
// A scheme can be refreshed or deleted only while no asset references it.
// Transforms of one asset are serialized; different assets proceed in
// parallel.
package scheme

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/audit"
	"github.com/jeremyhahn/go-sharelock/pkg/adapters/logger"
	"github.com/jeremyhahn/go-sharelock/pkg/correlation"
	"github.com/jeremyhahn/go-sharelock/pkg/crypto/filecipher"
	"github.com/jeremyhahn/go-sharelock/pkg/metrics"
	"github.com/jeremyhahn/go-sharelock/pkg/sharelock"
	"github.com/jeremyhahn/go-sharelock/pkg/storage"
	"github.com/jeremyhahn/go-sharelock/pkg/threshold/shamir"
	"github.com/spf13/afero"
)

// Manager is safe for concurrent use.
type Manager struct {
	engine  *sharelock.Engine
	store   storage.Backend
	logger  logger.Logger
	auditor audit.AuditAdapter
	now     func() time.Time

	// schemes guards the link between schemes and assets: refresh and
	// delete take it exclusively, asset transforms share it.
	schemes sync.RWMutex
	assets  *keyedMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithAuditor records every lifecycle operation through a.
func WithAuditor(a audit.AuditAdapter) Option {
	return func(m *Manager) {
		m.auditor = a
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager over engine and store.
func NewManager(engine *sharelock.Engine, store storage.Backend, opts ...Option) (*Manager, error) {
	if engine == nil {
		return nil, errors.New("scheme: engine is required")
	}
	if store == nil {
		return nil, errors.New("scheme: storage backend is required")
	}

	m := &Manager{
		engine:  engine,
		store:   store,
		logger:  logger.NewNopLogger(),
		auditor: audit.NewNopAuditAdapter(),
		now:     time.Now,
		assets:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Engine returns the underlying engine.
func (m *Manager) Engine() *sharelock.Engine {
	return m.engine
}

// Create generates a new scheme and stores its record. The shares are
// returned exactly once; the Manager keeps none of them.
func (m *Manager) Create(ctx context.Context, name string, fieldExponent, k, n int) (rec *Record, shares []shamir.Share, err error) {
	defer func() {
		id := ""
		if rec != nil {
			id = rec.ID
		}
		m.audit(ctx, audit.EventSchemeCreate, audit.ResourceScheme, id, err, map[string]interface{}{
			"k": k, "n": n, "field_exponent": fieldExponent,
		})
	}()

	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxNameLength {
		return nil, nil, fmt.Errorf("%w: name must be 1 to %d characters", sharelock.ErrInvalidParameters, MaxNameLength)
	}

	commit, shares, err := m.engine.GenerateScheme(k, n, fieldExponent)
	if err != nil {
		return nil, nil, err
	}

	now := m.now().UTC()
	rec = &Record{
		ID:            uuid.NewString(),
		Name:          name,
		FieldExponent: fieldExponent,
		K:             k,
		N:             n,
		Commitment:    commit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := saveJSON(m.store, storage.SchemePath(rec.ID), rec); err != nil {
		return nil, nil, fmt.Errorf("store scheme: %w", err)
	}

	logger.WithContext(ctx, m.logger).Info("scheme created",
		logger.SchemeID(rec.ID),
		logger.Int("k", k),
		logger.Int("n", n),
		logger.Int("field_exponent", fieldExponent))
	m.refreshGauges()
	return rec, shares, nil
}

// Get loads a scheme record.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, fmt.Errorf("%w: %q", sharelock.ErrSchemeNotFound, id)
	}

	var rec Record
	if err := loadJSON(m.store, storage.SchemePath(id), &rec); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", sharelock.ErrSchemeNotFound, id)
		}
		return nil, err
	}
	return &rec, nil
}

// List returns every scheme, oldest first.
func (m *Manager) List(ctx context.Context) ([]*Record, error) {
	ids, err := storage.ListSchemes(m.store)
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := m.Get(ctx, id)
		if err != nil {
			if errors.Is(err, sharelock.ErrSchemeNotFound) {
				continue // deleted since listing
			}
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Name < records[j].Name
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Refresh replaces the scheme's secret and shares. The old commitment is
// discarded, so it is refused while any asset is encrypted under it.
func (m *Manager) Refresh(ctx context.Context, id string) (rec *Record, shares []shamir.Share, err error) {
	defer func() { m.audit(ctx, audit.EventSchemeRefresh, audit.ResourceScheme, id, err, nil) }()

	m.schemes.Lock()
	defer m.schemes.Unlock()

	rec, err = m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := m.ensureUnused(ctx, id); err != nil {
		return nil, nil, err
	}

	commit, shares, err := m.engine.GenerateScheme(rec.K, rec.N, rec.FieldExponent)
	if err != nil {
		return nil, nil, err
	}
	rec.Commitment = commit
	rec.UpdatedAt = m.now().UTC()

	if err := saveJSON(m.store, storage.SchemePath(id), rec); err != nil {
		return nil, nil, fmt.Errorf("store scheme: %w", err)
	}

	logger.WithContext(ctx, m.logger).Info("scheme refreshed", logger.SchemeID(id))
	return rec, shares, nil
}

// Delete removes an unused scheme.
func (m *Manager) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := m.delete(ctx, id)
	m.audit(ctx, audit.EventSchemeDelete, audit.ResourceScheme, id, err, nil)

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(metrics.OpDelete, sharelock.ErrorType(err))
	}
	metrics.RecordOperation(metrics.OpDelete, "", status, time.Since(start).Seconds())
	return err
}

func (m *Manager) delete(ctx context.Context, id string) error {
	m.schemes.Lock()
	defer m.schemes.Unlock()

	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	if err := m.ensureUnused(ctx, id); err != nil {
		return err
	}

	if err := m.store.Delete(storage.SchemePath(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", sharelock.ErrSchemeNotFound, id)
		}
		return err
	}

	logger.WithContext(ctx, m.logger).Info("scheme deleted", logger.SchemeID(id))
	m.refreshGauges()
	return nil
}

func (m *Manager) ensureUnused(ctx context.Context, id string) error {
	assets, err := m.assetsOf(id)
	if err != nil {
		return err
	}
	if len(assets) > 0 {
		return fmt.Errorf("%w: %d asset(s) reference scheme %s", sharelock.ErrSchemeInUse, len(assets), id)
	}
	return nil
}

// Assets lists the assets encrypted under the scheme.
func (m *Manager) Assets(ctx context.Context, id string) ([]*Asset, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	return m.assetsOf(id)
}

func (m *Manager) assetsOf(schemeID string) ([]*Asset, error) {
	all, err := m.allAssets()
	if err != nil {
		return nil, err
	}
	linked := make([]*Asset, 0)
	for _, a := range all {
		if a.SchemeID == schemeID {
			linked = append(linked, a)
		}
	}
	return linked, nil
}

func (m *Manager) allAssets() ([]*Asset, error) {
	ids, err := storage.ListAssets(m.store)
	if err != nil {
		return nil, err
	}
	assets := make([]*Asset, 0, len(ids))
	for _, id := range ids {
		var a Asset
		if err := loadJSON(m.store, storage.AssetPath(id), &a); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		assets = append(assets, &a)
	}
	return assets, nil
}

// DanglingAssets returns the IDs of linked assets whose encrypted file no
// longer exists, typically because the host removed it without unlinking.
func (m *Manager) DanglingAssets(ctx context.Context) ([]string, error) {
	all, err := m.allAssets()
	if err != nil {
		return nil, err
	}
	fsys := m.engine.Cipher().Fs()
	dangling := make([]string, 0)
	for _, a := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := afero.Exists(fsys, a.Path)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", a.ID, err)
		}
		if !ok {
			dangling = append(dangling, a.ID)
		}
	}
	return dangling, nil
}

// Asset returns the link for an encrypted asset, or ErrNotEncrypted.
func (m *Manager) Asset(ctx context.Context, assetID string) (*Asset, error) {
	if err := storage.ValidateID(assetID); err != nil {
		return nil, fmt.Errorf("%w: asset id %q", sharelock.ErrInvalidParameters, assetID)
	}

	var a Asset
	if err := loadJSON(m.store, storage.AssetPath(assetID), &a); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: asset %s", sharelock.ErrNotEncrypted, assetID)
		}
		return nil, err
	}
	return &a, nil
}

// Verify checks shares against the scheme's commitment. Fewer than k
// shares is ErrInsufficientShares; an index outside [1, n] is
// ErrInvalidShare; a wrong share set is ErrCommitmentMismatch.
func (m *Manager) Verify(ctx context.Context, id string, shares []shamir.Share) (err error) {
	defer func() {
		m.audit(ctx, audit.EventSharesVerify, audit.ResourceScheme, id, err, map[string]interface{}{
			"shares": shamir.Indices(shares),
		})
	}()

	rec, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.verify(rec, shares); err != nil {
		logger.WithContext(ctx, m.logger).Warn("share verification failed",
			logger.SchemeID(id),
			logger.ShareIndices(shamir.Indices(shares)),
			logger.Error(err))
		return err
	}
	return nil
}

func (m *Manager) verify(rec *Record, shares []shamir.Share) error {
	if err := CheckIndices(rec, shares); err != nil {
		return err
	}
	return m.engine.CheckShares(rec.Commitment, rec.FieldExponent, shares)
}

// CheckIndices applies the scheme's share policy before interpolation:
// at least k shares, every index in [1, n], no index twice.
func CheckIndices(rec *Record, shares []shamir.Share) error {
	if len(shares) < rec.K {
		return &shamir.InsufficientSharesError{Have: len(shares), Threshold: rec.K}
	}
	seen := make(map[int]struct{}, len(shares))
	for _, s := range shares {
		if s.Index < 1 || s.Index > rec.N {
			return fmt.Errorf("%w: index %d outside [1, %d]", sharelock.ErrInvalidShare, s.Index, rec.N)
		}
		if _, dup := seen[s.Index]; dup {
			return fmt.Errorf("%w: %d", shamir.ErrDuplicateIndex, s.Index)
		}
		seen[s.Index] = struct{}{}
	}
	return nil
}

// EncryptAsset encrypts the file at path under the scheme and links the
// asset to it. The plaintext is removed only after the encrypted file and
// the link are both in place.
func (m *Manager) EncryptAsset(ctx context.Context, assetID, path, schemeID string, shares []shamir.Share) (asset *Asset, err error) {
	defer func() {
		m.audit(ctx, audit.EventAssetEncrypt, audit.ResourceAsset, assetID, err, map[string]interface{}{
			"scheme_id": schemeID,
			"shares":    shamir.Indices(shares),
		})
	}()

	if err := storage.ValidateID(assetID); err != nil {
		return nil, fmt.Errorf("%w: asset id %q", sharelock.ErrInvalidParameters, assetID)
	}
	unlock := m.assets.Lock(assetID)
	defer unlock()
	m.schemes.RLock()
	defer m.schemes.RUnlock()

	log := logger.WithContext(ctx, m.logger).With(logger.AssetID(assetID), logger.SchemeID(schemeID))

	exists, err := m.store.Exists(storage.AssetPath(assetID))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: asset %s", sharelock.ErrAlreadyEncrypted, assetID)
	}

	rec, err := m.Get(ctx, schemeID)
	if err != nil {
		return nil, err
	}
	if err := m.verify(rec, shares); err != nil {
		return nil, err
	}

	encPath, err := m.engine.EncryptFile(path, rec.FieldExponent, shares)
	if err != nil {
		return nil, err
	}

	asset = &Asset{
		ID:          assetID,
		SchemeID:    schemeID,
		Path:        encPath,
		EncryptedAt: m.now().UTC(),
	}
	if err := createJSON(m.store, storage.AssetPath(assetID), asset); err != nil {
		if !storage.IsConflict(err) {
			m.removeFile(log, encPath)
			return nil, fmt.Errorf("store asset link: %w", err)
		}
		// Another process linked the asset first; keep its ciphertext.
		var winner Asset
		if loadJSON(m.store, storage.AssetPath(assetID), &winner) != nil || winner.Path != encPath {
			m.removeFile(log, encPath)
		}
		return nil, fmt.Errorf("%w: asset %s", sharelock.ErrAlreadyEncrypted, assetID)
	}
	m.removeFile(log, path)

	log.Info("asset encrypted", logger.String("path", encPath))
	m.refreshGauges()
	return asset, nil
}

// DecryptAsset decrypts a linked asset and unlinks it. path may be empty,
// in which case the linked path is used; otherwise it must match the link.
// The encrypted file is removed only after the plaintext is in place.
func (m *Manager) DecryptAsset(ctx context.Context, assetID, path string, shares []shamir.Share) (plainPath string, err error) {
	defer func() {
		m.audit(ctx, audit.EventAssetDecrypt, audit.ResourceAsset, assetID, err, map[string]interface{}{
			"shares": shamir.Indices(shares),
		})
	}()

	if err := storage.ValidateID(assetID); err != nil {
		return "", fmt.Errorf("%w: asset id %q", sharelock.ErrInvalidParameters, assetID)
	}
	unlock := m.assets.Lock(assetID)
	defer unlock()
	m.schemes.RLock()
	defer m.schemes.RUnlock()

	asset, err := m.Asset(ctx, assetID)
	if err != nil {
		return "", err
	}
	if path != "" && path != asset.Path {
		return "", fmt.Errorf("%w: asset %s is stored at %s", sharelock.ErrInvalidParameters, assetID, asset.Path)
	}
	if !filecipher.IsEncrypted(asset.Path) {
		return "", fmt.Errorf("%w: %s", sharelock.ErrNotEncrypted, asset.Path)
	}

	log := logger.WithContext(ctx, m.logger).With(logger.AssetID(assetID), logger.SchemeID(asset.SchemeID))

	rec, err := m.Get(ctx, asset.SchemeID)
	if err != nil {
		return "", err
	}
	if err := m.verify(rec, shares); err != nil {
		return "", err
	}

	plainPath, err = m.engine.DecryptFile(asset.Path, rec.FieldExponent, shares)
	if err != nil {
		return "", err
	}

	if err := m.store.Delete(storage.AssetPath(assetID)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("remove asset link: %w", err)
	}
	m.removeFile(log, asset.Path)

	log.Info("asset decrypted", logger.String("path", plainPath))
	m.refreshGauges()
	return plainPath, nil
}

// Unlink drops an asset's scheme association without touching its files,
// for hosts that delete an encrypted asset themselves.
func (m *Manager) Unlink(ctx context.Context, assetID string) (err error) {
	defer func() { m.audit(ctx, audit.EventAssetUnlink, audit.ResourceAsset, assetID, err, nil) }()

	if err := storage.ValidateID(assetID); err != nil {
		return fmt.Errorf("%w: asset id %q", sharelock.ErrInvalidParameters, assetID)
	}
	unlock := m.assets.Lock(assetID)
	defer unlock()

	if err := m.store.Delete(storage.AssetPath(assetID)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: asset %s", sharelock.ErrNotEncrypted, assetID)
		}
		return err
	}

	logger.WithContext(ctx, m.logger).Info("asset unlinked", logger.AssetID(assetID))
	m.refreshGauges()
	return nil
}

// audit records one operation. Share-check failures are recorded as
// denied, anything else as a failure.
func (m *Manager) audit(ctx context.Context, typ audit.EventType, resourceType, resourceID string, err error, metadata map[string]interface{}) {
	event := &audit.AuditEvent{
		Timestamp: m.now().UTC(),
		EventType: typ,
		Severity:  audit.SeverityInfo,
		Outcome:   audit.OutcomeSuccess,
		Principal: audit.PrincipalFromContext(ctx),
		Resource:  &audit.Resource{Type: resourceType, ID: resourceID},
		Metadata:  metadata,
		RequestID: correlation.GetCorrelationID(ctx),
	}
	if err != nil {
		event.Result = sharelock.ErrorType(err)
		switch event.Result {
		case "insufficient_shares", "malformed_share", "invalid_share", "commitment_mismatch", "authentication_failure":
			event.Outcome = audit.OutcomeDenied
			event.Severity = audit.SeverityWarn
		default:
			event.Outcome = audit.OutcomeFailure
			event.Severity = audit.SeverityError
		}
	}

	if aerr := m.auditor.LogEvent(ctx, event); aerr != nil {
		logger.WithContext(ctx, m.logger).Warn("failed to record audit event",
			logger.String("event_type", string(typ)),
			logger.Error(aerr))
	}
}

func (m *Manager) removeFile(log logger.Logger, path string) {
	if err := m.engine.Cipher().Fs().Remove(path); err != nil {
		log.Warn("failed to remove file", logger.String("path", path), logger.Error(err))
	}
}

// Inventory counts stored schemes and linked assets.
func (m *Manager) Inventory(_ context.Context) (schemes, assets int, err error) {
	ids, err := storage.ListSchemes(m.store)
	if err != nil {
		return 0, 0, err
	}
	linked, err := storage.ListAssets(m.store)
	if err != nil {
		return 0, 0, err
	}
	return len(ids), len(linked), nil
}

func (m *Manager) refreshGauges() {
	if !metrics.IsEnabled() {
		return
	}
	schemes, assets, err := m.Inventory(context.Background())
	if err != nil {
		m.logger.Warn("failed to count schemes", logger.Error(err))
		return
	}
	metrics.SetSchemesTotal(schemes)
	metrics.SetEncryptedAssetsTotal(assets)
}
