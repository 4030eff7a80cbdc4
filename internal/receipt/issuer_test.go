package receipt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
)

// stubSource returns canned snapshots keyed by deposit id.
type stubSource struct {
	snaps map[id.DepositID]*DepositSnapshot
}

func (s *stubSource) DepositSnapshot(_ context.Context, depositID id.DepositID) (*DepositSnapshot, error) {
	snap, ok := s.snaps[depositID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "deposit %s not found", depositID)
	}
	return snap, nil
}

type IssuerSuite struct {
	suite.Suite

	ctx    context.Context
	tokens *InMemoryTokenStore
	source *stubSource
	issuer *Issuer
	owner  id.Account
}

func (s *IssuerSuite) SetupTest() {
	s.ctx = context.Background()
	s.tokens = NewInMemoryTokenStore()
	s.source = &stubSource{snaps: make(map[id.DepositID]*DepositSnapshot)}
	s.issuer = NewIssuer(s.tokens, NewInMemoryMetadataCache(time.Minute), s.source)
	s.owner = id.NewAccount()
}

func (s *IssuerSuite) snapshot(depositID id.DepositID, terminal bool) *DepositSnapshot {
	paidAt := time.Now()
	snap := &DepositSnapshot{
		DepositID:   depositID,
		PropertyID:  1,
		Landlord:    id.NewAccount(),
		Tenant:      s.owner,
		Amount:      1000,
		StatusLabel: "Payée",
		Terminal:    terminal,
		PaidAt:      &paidAt,
	}
	s.source.snaps[depositID] = snap
	return snap
}

func (s *IssuerSuite) TestMintAssignsSequentialIDs() {
	first, err := s.issuer.Mint(s.ctx, s.snapshot(1, false), s.owner)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), id.TokenID(1), first.ID)

	second, err := s.issuer.Mint(s.ctx, s.snapshot(2, false), s.owner)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), id.TokenID(2), second.ID)
}

func (s *IssuerSuite) TestMintRejectsSecondTokenForDeposit() {
	snap := s.snapshot(1, false)
	_, err := s.issuer.Mint(s.ctx, snap, s.owner)
	require.NoError(s.T(), err)

	_, err = s.issuer.Mint(s.ctx, snap, s.owner)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *IssuerSuite) TestTokenURIRendersMetadata() {
	snap := s.snapshot(1, false)
	token, err := s.issuer.Mint(s.ctx, snap, s.owner)
	require.NoError(s.T(), err)

	uri, err := s.issuer.TokenURI(s.ctx, token.ID)
	require.NoError(s.T(), err)
	require.True(s.T(), strings.HasPrefix(uri, "data:application/json;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:application/json;base64,"))
	require.NoError(s.T(), err)

	var doc Metadata
	require.NoError(s.T(), json.Unmarshal(raw, &doc))
	assert.Equal(s.T(), "Quittance de caution #1", doc.Name)
	assert.Equal(s.T(), DefaultImageURI, doc.Image)
}

func (s *IssuerSuite) TestRefreshUpdatesCachedMetadata() {
	snap := s.snapshot(1, false)
	token, err := s.issuer.Mint(s.ctx, snap, s.owner)
	require.NoError(s.T(), err)

	snap.StatusLabel = "Remboursée"
	refreshed, err := s.issuer.Refresh(s.ctx, snap)
	require.NoError(s.T(), err)
	assert.True(s.T(), refreshed)

	uri, err := s.issuer.TokenURI(s.ctx, token.ID)
	require.NoError(s.T(), err)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:application/json;base64,"))
	require.NoError(s.T(), err)
	assert.Contains(s.T(), string(raw), "Remboursée")
}

func (s *IssuerSuite) TestRefreshWithoutTokenReportsFalse() {
	refreshed, err := s.issuer.Refresh(s.ctx, s.snapshot(9, false))
	require.NoError(s.T(), err)
	assert.False(s.T(), refreshed)
}

func (s *IssuerSuite) TestTransfer() {
	snap := s.snapshot(1, false)
	token, err := s.issuer.Mint(s.ctx, snap, s.owner)
	require.NoError(s.T(), err)
	next := id.NewAccount()

	s.Run("rejects non-owner", func() {
		err := s.issuer.Transfer(s.ctx, next, token.ID, next)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects empty target", func() {
		err := s.issuer.Transfer(s.ctx, s.owner, token.ID, id.Account{})
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("moves ownership", func() {
		require.NoError(s.T(), s.issuer.Transfer(s.ctx, s.owner, token.ID, next))
		owner, err := s.issuer.OwnerOf(s.ctx, token.ID)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), next, owner)
	})
}

func (s *IssuerSuite) TestBurn() {
	snap := s.snapshot(1, false)
	token, err := s.issuer.Mint(s.ctx, snap, s.owner)
	require.NoError(s.T(), err)

	s.Run("rejects unsettled deposit", func() {
		err := s.issuer.Burn(s.ctx, s.owner, token.ID)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("rejects non-owner", func() {
		snap.Terminal = true
		err := s.issuer.Burn(s.ctx, id.NewAccount(), token.ID)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("burns and keeps the deposit binding", func() {
		require.NoError(s.T(), s.issuer.Burn(s.ctx, s.owner, token.ID))

		_, err := s.issuer.OwnerOf(s.ctx, token.ID)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))

		depositID, err := s.issuer.DepositOfToken(s.ctx, token.ID)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), snap.DepositID, depositID)
	})

	s.Run("burn is irreversible", func() {
		err := s.issuer.Burn(s.ctx, s.owner, token.ID)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *IssuerSuite) TestLookupsUnknownToken() {
	_, err := s.issuer.TokenURI(s.ctx, id.TokenID(9))
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.issuer.TokenOfDeposit(s.ctx, id.DepositID(9))
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestIssuerSuite(t *testing.T) {
	suite.Run(t, new(IssuerSuite))
}
