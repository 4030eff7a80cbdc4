package escrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"garant/internal/custody"
	"garant/internal/events"
	"garant/internal/property"
	"garant/internal/receipt"
	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
)

type EscrowServiceSuite struct {
	suite.Suite

	ctx        context.Context
	properties *property.InMemoryStore
	deposits   *InMemoryDepositStore
	ledger     *custody.InMemoryLedger
	issuer     *receipt.Issuer
	log        *events.MemoryLog
	svc        *Service

	landlord id.Account
	tenant   id.Account
}

func (s *EscrowServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.properties = property.NewInMemoryStore()
	s.deposits = NewInMemoryDepositStore()
	s.ledger = custody.NewInMemoryLedger()
	s.log = events.NewMemoryLog()
	s.issuer = receipt.NewIssuer(
		receipt.NewInMemoryTokenStore(),
		receipt.NewInMemoryMetadataCache(time.Minute),
		NewSnapshotAdapter(s.deposits, s.properties),
		receipt.IssuerWithEvents(s.log),
	)
	s.svc = NewService(s.deposits, s.properties, s.ledger, s.issuer, WithEvents(s.log))
	s.landlord = id.NewAccount()
	s.tenant = id.NewAccount()
}

func (s *EscrowServiceSuite) newProperty() id.PropertyID {
	p := &property.Property{
		Landlord:  s.landlord,
		Name:      "T2 rue des Lices",
		Location:  "Angers",
		Status:    property.StatusNotRented,
		CreatedAt: time.Now(),
	}
	require.NoError(s.T(), s.properties.Create(s.ctx, p))
	return p.ID
}

func (s *EscrowServiceSuite) openDeposit(propertyID id.PropertyID, amount uint64) *Deposit {
	deposit, err := s.svc.CreateDeposit(s.ctx, s.landlord, propertyID, "123456")
	require.NoError(s.T(), err)
	deposit, err = s.svc.SetAmount(s.ctx, s.landlord, deposit.ID, amount)
	require.NoError(s.T(), err)
	return deposit
}

func (s *EscrowServiceSuite) payDeposit(deposit *Deposit) id.TokenID {
	require.NoError(s.T(), s.ledger.Credit(s.ctx, s.tenant, deposit.Amount))
	_, tokenID, err := s.svc.Pay(s.ctx, s.tenant, deposit.ID, "123456", deposit.Amount)
	require.NoError(s.T(), err)
	return tokenID
}

func (s *EscrowServiceSuite) balance(account id.Account) uint64 {
	balance, err := s.ledger.Balance(s.ctx, account)
	require.NoError(s.T(), err)
	return balance
}

func (s *EscrowServiceSuite) TestFullLifecycleWithRefund() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)
	assert.Equal(s.T(), StatusPending, deposit.Status)

	prop, err := s.properties.FindByID(s.ctx, propertyID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), deposit.ID, prop.CurrentDepositID)

	tokenID := s.payDeposit(deposit)
	assert.Equal(s.T(), id.TokenID(1), tokenID)

	paid, err := s.svc.Deposit(s.ctx, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StatusPaid, paid.Status)
	assert.Equal(s.T(), s.tenant, paid.Tenant)
	require.NotNil(s.T(), paid.PaidAt)

	prop, err = s.properties.FindByID(s.ctx, propertyID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), property.StatusRented, prop.Status)

	assert.Equal(s.T(), uint64(0), s.balance(s.tenant))
	held, err := s.ledger.Held(s.ctx, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1000), held)

	owner, err := s.issuer.OwnerOf(s.ctx, tokenID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.tenant, owner)

	refunded, err := s.svc.Refund(s.ctx, s.landlord, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StatusRefunded, refunded.Status)
	assert.Equal(s.T(), uint64(1000), refunded.FinalAmount)
	require.NotNil(s.T(), refunded.RefundedAt)

	assert.Equal(s.T(), uint64(1000), s.balance(s.tenant))
	assert.Equal(s.T(), uint64(0), s.balance(s.landlord))

	prop, err = s.properties.FindByID(s.ctx, propertyID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), property.StatusNotRented, prop.Status)
	assert.True(s.T(), prop.CurrentDepositID.IsNil())
}

func (s *EscrowServiceSuite) TestDisputeAndSplitResolution() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)
	s.payDeposit(deposit)

	disputed, err := s.svc.Dispute(s.ctx, s.landlord, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StatusDisputed, disputed.Status)

	prop, err := s.properties.FindByID(s.ctx, propertyID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), property.StatusDisputed, prop.Status)

	settled, err := s.svc.Resolve(s.ctx, s.landlord, deposit.ID, 400)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StatusPartiallyRefunded, settled.Status)
	assert.Equal(s.T(), uint64(400), settled.FinalAmount)

	assert.Equal(s.T(), uint64(400), s.balance(s.tenant))
	assert.Equal(s.T(), uint64(600), s.balance(s.landlord))
	held, err := s.ledger.Held(s.ctx, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(0), held)

	prop, err = s.properties.FindByID(s.ctx, propertyID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), property.StatusNotRented, prop.Status)
	assert.True(s.T(), prop.CurrentDepositID.IsNil())
}

func (s *EscrowServiceSuite) TestResolveFullRefundAndFullRetention() {
	propertyID := s.newProperty()

	deposit := s.openDeposit(propertyID, 500)
	s.payDeposit(deposit)
	_, err := s.svc.Dispute(s.ctx, s.landlord, deposit.ID)
	require.NoError(s.T(), err)
	settled, err := s.svc.Resolve(s.ctx, s.landlord, deposit.ID, 500)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StatusRefunded, settled.Status)
	assert.Equal(s.T(), uint64(500), s.balance(s.tenant))

	second := s.openDeposit(propertyID, 800)
	s.payDeposit(second)
	_, err = s.svc.Dispute(s.ctx, s.landlord, second.ID)
	require.NoError(s.T(), err)
	settled, err = s.svc.Resolve(s.ctx, s.landlord, second.ID, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StatusRetained, settled.Status)
	assert.Equal(s.T(), uint64(800), s.balance(s.landlord))
}

func (s *EscrowServiceSuite) TestPayRejectsHalfValue() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)
	require.NoError(s.T(), s.ledger.Credit(s.ctx, s.tenant, 1000))

	_, _, err := s.svc.Pay(s.ctx, s.tenant, deposit.ID, "123456", 500)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))

	unchanged, err := s.svc.Deposit(s.ctx, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StatusPending, unchanged.Status)
	assert.Equal(s.T(), uint64(1000), s.balance(s.tenant))
}

func (s *EscrowServiceSuite) TestPayRejectsWrongCode() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)
	require.NoError(s.T(), s.ledger.Credit(s.ctx, s.tenant, 1000))

	_, _, err := s.svc.Pay(s.ctx, s.tenant, deposit.ID, "000000", 1000)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *EscrowServiceSuite) TestPayRejectsInsufficientFunds() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)
	require.NoError(s.T(), s.ledger.Credit(s.ctx, s.tenant, 999))

	_, _, err := s.svc.Pay(s.ctx, s.tenant, deposit.ID, "123456", 1000)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *EscrowServiceSuite) TestCreateDepositGuards() {
	propertyID := s.newProperty()

	s.Run("rejects non-landlord", func() {
		_, err := s.svc.CreateDeposit(s.ctx, s.tenant, propertyID, "123456")
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects unknown property", func() {
		_, err := s.svc.CreateDeposit(s.ctx, s.landlord, id.PropertyID(99), "123456")
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects empty code", func() {
		_, err := s.svc.CreateDeposit(s.ctx, s.landlord, propertyID, "  ")
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects second active deposit", func() {
		_, err := s.svc.CreateDeposit(s.ctx, s.landlord, propertyID, "123456")
		require.NoError(s.T(), err)
		_, err = s.svc.CreateDeposit(s.ctx, s.landlord, propertyID, "654321")
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *EscrowServiceSuite) TestSetAmountGuards() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)

	s.Run("rejects zero amount", func() {
		_, err := s.svc.SetAmount(s.ctx, s.landlord, deposit.ID, 0)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects non-landlord", func() {
		_, err := s.svc.SetAmount(s.ctx, s.tenant, deposit.ID, 1200)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("overwrites while pending", func() {
		updated, err := s.svc.SetAmount(s.ctx, s.landlord, deposit.ID, 1500)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), uint64(1500), updated.Amount)
	})

	s.Run("rejects after payment", func() {
		updated, err := s.svc.Deposit(s.ctx, deposit.ID)
		require.NoError(s.T(), err)
		s.payDeposit(updated)
		_, err = s.svc.SetAmount(s.ctx, s.landlord, deposit.ID, 2000)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *EscrowServiceSuite) TestSettlementGuards() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)

	s.Run("refund requires paid", func() {
		_, err := s.svc.Refund(s.ctx, s.landlord, deposit.ID)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("resolve requires dispute", func() {
		s.payDeposit(deposit)
		_, err := s.svc.Resolve(s.ctx, s.landlord, deposit.ID, 100)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("refund is landlord-only", func() {
		_, err := s.svc.Refund(s.ctx, s.tenant, deposit.ID)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("resolve rejects refund above principal", func() {
		_, err := s.svc.Dispute(s.ctx, s.landlord, deposit.ID)
		require.NoError(s.T(), err)
		_, err = s.svc.Resolve(s.ctx, s.landlord, deposit.ID, 1001)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *EscrowServiceSuite) TestLookups() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)

	depositID, err := s.svc.DepositIDFromProperty(s.ctx, propertyID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), deposit.ID, depositID)

	s.Run("property lookup is tenant-only", func() {
		_, err := s.svc.PropertyIDFromDeposit(s.ctx, s.landlord, deposit.ID)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.payDeposit(deposit)

	resolved, err := s.svc.PropertyIDFromDeposit(s.ctx, s.tenant, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), propertyID, resolved)

	byTenant, err := s.svc.TenantDeposits(s.ctx, s.tenant)
	require.NoError(s.T(), err)
	require.Len(s.T(), byTenant, 1)
	assert.Equal(s.T(), deposit.ID, byTenant[0].ID)

	byProperty, err := s.svc.PropertyDeposits(s.ctx, s.landlord, propertyID)
	require.NoError(s.T(), err)
	require.Len(s.T(), byProperty, 1)

	s.Run("history listing is landlord-only", func() {
		_, err := s.svc.PropertyDeposits(s.ctx, s.tenant, propertyID)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("settled deposit stays listed", func() {
		_, err := s.svc.Refund(s.ctx, s.landlord, deposit.ID)
		require.NoError(s.T(), err)
		byProperty, err := s.svc.PropertyDeposits(s.ctx, s.landlord, propertyID)
		require.NoError(s.T(), err)
		assert.Len(s.T(), byProperty, 1)

		_, err = s.svc.DepositIDFromProperty(s.ctx, propertyID)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EscrowServiceSuite) TestExtendedInfo() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)
	s.payDeposit(deposit)

	snap, err := s.svc.ExtendedInfo(s.ctx, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), deposit.ID, snap.DepositID)
	assert.Equal(s.T(), propertyID, snap.PropertyID)
	assert.Equal(s.T(), s.landlord, snap.Landlord)
	assert.Equal(s.T(), s.tenant, snap.Tenant)
	assert.Equal(s.T(), "Payée", snap.StatusLabel)
	assert.False(s.T(), snap.Terminal)
}

func (s *EscrowServiceSuite) TestReceiveFunds() {
	err := s.svc.ReceiveFunds(s.ctx, s.tenant, 2500)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(2500), s.balance(s.tenant))

	recorded := s.log.ListByType(events.TypeFundsReceived)
	require.Len(s.T(), recorded, 1)
	assert.Equal(s.T(), uint64(2500), recorded[0].Amount)

	err = s.svc.ReceiveFunds(s.ctx, s.tenant, 0)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *EscrowServiceSuite) TestEventTrail() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)
	s.payDeposit(deposit)
	_, err := s.svc.Refund(s.ctx, s.landlord, deposit.ID)
	require.NoError(s.T(), err)

	assert.Len(s.T(), s.log.ListByType(events.TypeDepositCreated), 1)
	assert.Len(s.T(), s.log.ListByType(events.TypeDepositPaid), 1)
	assert.Len(s.T(), s.log.ListByType(events.TypeReceiptMinted), 1)
	assert.Len(s.T(), s.log.ListByType(events.TypeDepositRefunded), 1)
	// rented, then back to not_rented
	assert.Len(s.T(), s.log.ListByType(events.TypePropertyStatusChanged), 2)
}

func (s *EscrowServiceSuite) TestSecondTenancyAfterSettlement() {
	propertyID := s.newProperty()
	first := s.openDeposit(propertyID, 1000)
	s.payDeposit(first)
	_, err := s.svc.Refund(s.ctx, s.landlord, first.ID)
	require.NoError(s.T(), err)

	second := s.openDeposit(propertyID, 1200)
	assert.Equal(s.T(), first.ID+1, second.ID)

	tokenID := s.payDeposit(second)
	assert.Equal(s.T(), id.TokenID(2), tokenID)

	history, err := s.svc.PropertyDeposits(s.ctx, s.landlord, propertyID)
	require.NoError(s.T(), err)
	require.Len(s.T(), history, 2)
	assert.Equal(s.T(), first.ID, history[0].ID)
	assert.Equal(s.T(), second.ID, history[1].ID)
}

// failingDepositStore forces Update to fail so a transition aborts after
// earlier steps have already run.
type failingDepositStore struct {
	DepositStore
}

func (f *failingDepositStore) Update(context.Context, *Deposit) error {
	return errors.New("store unavailable")
}

func (s *EscrowServiceSuite) TestFailedPayLeavesNoTrace() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)
	require.NoError(s.T(), s.ledger.Credit(s.ctx, s.tenant, 1000))

	broken := NewService(&failingDepositStore{DepositStore: s.deposits}, s.properties, s.ledger, s.issuer, WithEvents(s.log))
	_, _, err := broken.Pay(s.ctx, s.tenant, deposit.ID, "123456", 1000)
	require.Error(s.T(), err)

	// The failed payment must not move a cent.
	assert.Equal(s.T(), uint64(1000), s.balance(s.tenant))
	held, err := s.ledger.Held(s.ctx, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(0), held)

	unchanged, err := s.svc.Deposit(s.ctx, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StatusPending, unchanged.Status)
	assert.True(s.T(), unchanged.Tenant.IsNil())

	prop, err := s.properties.FindByID(s.ctx, propertyID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), property.StatusNotRented, prop.Status)

	assert.Empty(s.T(), s.log.ListByType(events.TypeDepositPaid))
	assert.Empty(s.T(), s.log.ListByType(events.TypeReceiptMinted))

	// The deposit stays payable once the store recovers.
	tokenID := s.payDeposit(deposit)
	assert.Equal(s.T(), id.TokenID(1), tokenID)
}

func (s *EscrowServiceSuite) TestFailedSettlementRestoresCustody() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)
	s.payDeposit(deposit)

	// An issuer with an empty token store makes the receipt refresh fail
	// after the funds have already been released inside the transaction.
	bare := receipt.NewIssuer(
		receipt.NewInMemoryTokenStore(),
		receipt.NewInMemoryMetadataCache(time.Minute),
		NewSnapshotAdapter(s.deposits, s.properties),
	)
	broken := NewService(s.deposits, s.properties, s.ledger, bare, WithEvents(s.log))

	_, err := broken.Refund(s.ctx, s.landlord, deposit.ID)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInternal))

	// Funds are back in custody and the deposit is still PAID.
	held, err := s.ledger.Held(s.ctx, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), uint64(1000), held)
	assert.Equal(s.T(), uint64(0), s.balance(s.tenant))

	still, err := s.svc.Deposit(s.ctx, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StatusPaid, still.Status)

	prop, err := s.properties.FindByID(s.ctx, propertyID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), property.StatusRented, prop.Status)
	assert.Equal(s.T(), deposit.ID, prop.CurrentDepositID)

	assert.Empty(s.T(), s.log.ListByType(events.TypeDepositRefunded))

	// The real service still settles cleanly afterwards.
	refunded, err := s.svc.Refund(s.ctx, s.landlord, deposit.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), StatusRefunded, refunded.Status)
	assert.Equal(s.T(), uint64(1000), s.balance(s.tenant))
}

func (s *EscrowServiceSuite) TestCodeStoredHashed() {
	propertyID := s.newProperty()
	deposit := s.openDeposit(propertyID, 1000)

	stored, err := s.deposits.FindByID(s.ctx, deposit.ID)
	require.NoError(s.T(), err)
	assert.NotEqual(s.T(), "123456", stored.CodeHash)
	assert.NotContains(s.T(), stored.CodeHash, "123456")
	require.NoError(s.T(), stored.VerifyPayment("123456", 1000))
}

func TestEscrowServiceSuite(t *testing.T) {
	suite.Run(t, new(EscrowServiceSuite))
}
