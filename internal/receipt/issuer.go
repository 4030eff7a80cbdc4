package receipt

import (
	"context"
	"errors"
	"log/slog"

	"garant/internal/events"
	"garant/internal/platform/metrics"
	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
	"garant/pkg/requestcontext"
)

// Issuer mints, refreshes, transfers, and burns receipt tokens. Mint is only
// reachable from the escrow engine: the transport layer is wired against the
// read/burn/transfer surface, never against Mint, so no caller outside the
// ledger can trigger it.
type Issuer struct {
	tokens  TokenStore
	cache   MetadataCache
	source  SnapshotSource
	events  events.Recorder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// IssuerOption configures optional collaborators.
type IssuerOption func(*Issuer)

func IssuerWithEvents(rec events.Recorder) IssuerOption {
	return func(i *Issuer) { i.events = rec }
}

func IssuerWithMetrics(m *metrics.Metrics) IssuerOption {
	return func(i *Issuer) { i.metrics = m }
}

func IssuerWithLogger(l *slog.Logger) IssuerOption {
	return func(i *Issuer) { i.logger = l }
}

func NewIssuer(tokens TokenStore, cache MetadataCache, source SnapshotSource, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		tokens: tokens,
		cache:  cache,
		source: source,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Mint creates the receipt for a freshly paid deposit and caches its
// metadata. Called by the escrow engine inside the payment transaction, after
// the deposit state has committed to the snapshot it passes here.
func (i *Issuer) Mint(ctx context.Context, snap *DepositSnapshot, owner id.Account) (*Token, error) {
	token := &Token{
		DepositID: snap.DepositID,
		Owner:     owner,
		MintedAt:  requestcontext.Now(ctx),
	}
	if err := i.tokens.Mint(ctx, token); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "deposit %s already has a receipt", snap.DepositID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint receipt")
	}

	// Cache and count only once the payment transaction has committed; a
	// rolled-back mint must leave no trace.
	tokenID := token.ID
	tx.OnCommit(ctx, func(ctx context.Context) {
		i.cacheMetadata(ctx, tokenID, snap)
		if i.metrics != nil {
			i.metrics.ReceiptsMinted.Inc()
		}
	})
	return token, nil
}

// Refresh regenerates the metadata for the token bound to a deposit from the
// given snapshot. Reports false without error when no token exists (a deposit
// that never reached PAID has nothing to refresh).
func (i *Issuer) Refresh(ctx context.Context, snap *DepositSnapshot) (bool, error) {
	token, err := i.tokens.FindByDeposit(ctx, snap.DepositID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up receipt")
	}
	tokenID := token.ID
	tx.OnCommit(ctx, func(ctx context.Context) {
		i.cacheMetadata(ctx, tokenID, snap)
	})
	return true, nil
}

// TokenURI returns the metadata for a token as a data URI. The document is a
// deterministic function of the current deposit snapshot; the cache only
// saves the regeneration.
func (i *Issuer) TokenURI(ctx context.Context, tokenID id.TokenID) (string, error) {
	token, err := i.findLive(ctx, tokenID)
	if err != nil {
		return "", err
	}

	if doc, err := i.cache.Get(ctx, tokenID); err == nil {
		return dataURIFromDoc(doc), nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		i.logger.WarnContext(ctx, "metadata cache read failed", "token_id", tokenID.String(), "error", err)
	}

	snap, err := i.source.DepositSnapshot(ctx, token.DepositID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deposit snapshot")
	}
	i.cacheMetadata(ctx, tokenID, snap)
	return BuildMetadata(snap).DataURI()
}

// OwnerOf returns the current owner of a live token.
func (i *Issuer) OwnerOf(ctx context.Context, tokenID id.TokenID) (id.Account, error) {
	token, err := i.findLive(ctx, tokenID)
	if err != nil {
		return id.Account{}, err
	}
	return token.Owner, nil
}

// TokenOfDeposit returns the token id minted for a deposit.
func (i *Issuer) TokenOfDeposit(ctx context.Context, depositID id.DepositID) (id.TokenID, error) {
	token, err := i.tokens.FindByDeposit(ctx, depositID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.Newf(dErrors.CodeNotFound, "no receipt for deposit %s", depositID)
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up receipt")
	}
	return token.ID, nil
}

// DepositOfToken returns the deposit a token was minted for. The binding is
// stable for the life of the record, burned or not.
func (i *Issuer) DepositOfToken(ctx context.Context, tokenID id.TokenID) (id.DepositID, error) {
	token, err := i.tokens.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.Newf(dErrors.CodeNotFound, "token %s not found", tokenID)
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up receipt")
	}
	return token.DepositID, nil
}

// Transfer moves a live token to a new owner. Only the current owner may
// transfer; the underlying deposit record is unaffected.
func (i *Issuer) Transfer(ctx context.Context, caller id.Account, tokenID id.TokenID, to id.Account) error {
	if to.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer target account required")
	}
	token, err := i.findLive(ctx, tokenID)
	if err != nil {
		return err
	}
	if token.Owner != caller {
		return dErrors.New(dErrors.CodeUnauthorized, "only the token owner may transfer")
	}
	token.Owner = to
	if err := i.tokens.Update(ctx, token); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer receipt")
	}
	return nil
}

// Burn irreversibly clears the ownership record. Only the current owner may
// burn, and only once the underlying deposit has settled.
func (i *Issuer) Burn(ctx context.Context, caller id.Account, tokenID id.TokenID) error {
	token, err := i.findLive(ctx, tokenID)
	if err != nil {
		return err
	}
	if token.Owner != caller {
		return dErrors.New(dErrors.CodeUnauthorized, "only the token owner may burn")
	}

	snap, err := i.source.DepositSnapshot(ctx, token.DepositID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deposit snapshot")
	}
	if !snap.Terminal {
		return dErrors.New(dErrors.CodeInvalidState, "deposit is not settled")
	}

	token.Burned = true
	token.Owner = id.Account{}
	if err := i.tokens.Update(ctx, token); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to burn receipt")
	}
	if err := i.cache.Delete(ctx, tokenID); err != nil {
		i.logger.WarnContext(ctx, "metadata cache delete failed", "token_id", tokenID.String(), "error", err)
	}

	if i.events != nil {
		if err := i.events.Emit(ctx, events.Event{
			Type:      events.TypeReceiptBurned,
			DepositID: token.DepositID,
			TokenID:   tokenID,
			Account:   caller.String(),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record event")
		}
	}
	if i.metrics != nil {
		i.metrics.ReceiptsBurned.Inc()
	}
	return nil
}

// findLive resolves a token that has not been burned.
func (i *Issuer) findLive(ctx context.Context, tokenID id.TokenID) (*Token, error) {
	token, err := i.tokens.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "token %s not found", tokenID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up receipt")
	}
	if token.Burned {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "token %s is burned", tokenID)
	}
	return token, nil
}

func (i *Issuer) cacheMetadata(ctx context.Context, tokenID id.TokenID, snap *DepositSnapshot) {
	doc, err := BuildMetadata(snap).Encode()
	if err != nil {
		i.logger.WarnContext(ctx, "metadata encode failed", "token_id", tokenID.String(), "error", err)
		return
	}
	if err := i.cache.Put(ctx, tokenID, doc); err != nil {
		// Cache writes are best effort; tokenURI regenerates on a miss.
		i.logger.WarnContext(ctx, "metadata cache write failed", "token_id", tokenID.String(), "error", err)
	}
}
