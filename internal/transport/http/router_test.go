package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"garant/internal/custody"
	"garant/internal/escrow"
	"garant/internal/events"
	"garant/internal/files"
	"garant/internal/jwtauth"
	"garant/internal/property"
	"garant/internal/receipt"
	id "garant/pkg/domain"
	"garant/pkg/platform/tx"
)

// RouterSuite exercises the full API surface over the in-memory backends,
// the same wiring the server uses without postgres, redis, or kafka.
type RouterSuite struct {
	suite.Suite

	router http.Handler
	jwt    *jwtauth.Service

	landlord      id.Account
	tenant        id.Account
	landlordToken string
	tenantToken   string
}

func (s *RouterSuite) SetupTest() {
	propStore := property.NewInMemoryStore()
	depStore := escrow.NewInMemoryDepositStore()
	fileStore := files.NewInMemoryStore()
	tokenStore := receipt.NewInMemoryTokenStore()
	ledger := custody.NewInMemoryLedger()
	log := events.NewMemoryLog()
	runner := tx.NewMutexRunner()

	issuer := receipt.NewIssuer(tokenStore, receipt.NewInMemoryMetadataCache(time.Minute),
		escrow.NewSnapshotAdapter(depStore, propStore),
		receipt.IssuerWithEvents(log),
	)
	escrowSvc := escrow.NewService(depStore, propStore, ledger, issuer,
		escrow.WithEvents(log),
		escrow.WithTxRunner(runner),
	)
	propertySvc := property.NewService(propStore, depStore,
		property.WithEvents(log),
		property.WithTxRunner(runner),
	)
	filesSvc := files.NewService(fileStore, escrowSvc, files.WithEvents(log))

	s.jwt = jwtauth.NewService("test-key", "garant", "garant")
	s.router = NewRouter(Deps{
		Properties: propertySvc,
		Escrow:     escrowSvc,
		Files:      filesSvc,
		Receipts:   issuer,
		Auth:       s.jwt,
	})

	s.landlord = id.NewAccount()
	s.tenant = id.NewAccount()
	s.landlordToken = s.token(s.landlord)
	s.tenantToken = s.token(s.tenant)
}

func (s *RouterSuite) token(account id.Account) string {
	token, err := s.jwt.GenerateToken(account, time.Hour)
	require.NoError(s.T(), err)
	return token
}

func (s *RouterSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder, v any) {
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), v))
}

// createProperty returns the new property id.
func (s *RouterSuite) createProperty() uint64 {
	rec := s.do(http.MethodPost, "/properties", s.landlordToken, map[string]any{
		"name":     "T2 rue des Lices",
		"location": "Angers",
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	var p struct {
		ID uint64 `json:"id"`
	}
	s.decode(rec, &p)
	return p.ID
}

// openPaidDeposit walks a deposit to PAID and returns (depositID, tokenID).
func (s *RouterSuite) openPaidDeposit(propertyID uint64, amount uint64) (uint64, uint64) {
	rec := s.do(http.MethodPost, "/deposits", s.landlordToken, map[string]any{
		"property_id": propertyID,
		"code":        "123456",
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())
	var deposit struct {
		ID uint64 `json:"id"`
	}
	s.decode(rec, &deposit)

	rec = s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/amount", deposit.ID), s.landlordToken, map[string]any{"amount": amount})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/funds", s.tenantToken, map[string]any{"amount": amount})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/pay", deposit.ID), s.tenantToken, map[string]any{
		"code":   "123456",
		"amount": amount,
	})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	var paid struct {
		TokenID uint64 `json:"token_id"`
	}
	s.decode(rec, &paid)
	return deposit.ID, paid.TokenID
}

func (s *RouterSuite) TestMutationsRequireAuth() {
	rec := s.do(http.MethodPost, "/properties", "", map[string]any{"name": "x", "location": "y"})
	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/deposits", "garbage-token", map[string]any{"property_id": 1, "code": "123456"})
	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

func (s *RouterSuite) TestUnknownOperation() {
	rec := s.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
	var body errorResponse
	s.decode(rec, &body)
	assert.Equal(s.T(), "unknown_operation", body.Error)
}

func (s *RouterSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestFullDepositLifecycle() {
	propertyID := s.createProperty()
	depositID, tokenID := s.openPaidDeposit(propertyID, 1000)
	assert.Equal(s.T(), uint64(1), tokenID)

	rec := s.do(http.MethodGet, fmt.Sprintf("/deposits/%d", depositID), "", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var deposit struct {
		Status string `json:"status"`
		Tenant string `json:"tenant"`
	}
	s.decode(rec, &deposit)
	assert.Equal(s.T(), "paid", deposit.Status)
	assert.Equal(s.T(), s.tenant.String(), deposit.Tenant)

	rec = s.do(http.MethodGet, fmt.Sprintf("/properties/%d", propertyID), "", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var prop struct {
		Status string `json:"status"`
	}
	s.decode(rec, &prop)
	assert.Equal(s.T(), "rented", prop.Status)

	rec = s.do(http.MethodGet, fmt.Sprintf("/tokens/%d/uri", tokenID), "", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var uri struct {
		URI string `json:"uri"`
	}
	s.decode(rec, &uri)
	assert.Contains(s.T(), uri.URI, "data:application/json;base64,")

	rec = s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/refund", depositID), s.landlordToken, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/funds/balance", s.tenantToken, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var balance struct {
		Balance uint64 `json:"balance"`
	}
	s.decode(rec, &balance)
	assert.Equal(s.T(), uint64(1000), balance.Balance)
}

func (s *RouterSuite) TestDisputeResolutionFlow() {
	propertyID := s.createProperty()
	depositID, _ := s.openPaidDeposit(propertyID, 1000)

	rec := s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/resolve", depositID), s.landlordToken, map[string]any{"refund_amount": 400})
	assert.Equal(s.T(), http.StatusConflict, rec.Code, "resolve before dispute must fail")

	rec = s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/dispute", depositID), s.landlordToken, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/resolve", depositID), s.landlordToken, map[string]any{"refund_amount": 400})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())
	var settled struct {
		Status      string `json:"status"`
		FinalAmount uint64 `json:"final_amount"`
	}
	s.decode(rec, &settled)
	assert.Equal(s.T(), "partially_refunded", settled.Status)
	assert.Equal(s.T(), uint64(400), settled.FinalAmount)

	rec = s.do(http.MethodGet, "/funds/balance", s.landlordToken, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var balance struct {
		Balance uint64 `json:"balance"`
	}
	s.decode(rec, &balance)
	assert.Equal(s.T(), uint64(600), balance.Balance)
}

func (s *RouterSuite) TestPaymentRejections() {
	propertyID := s.createProperty()
	rec := s.do(http.MethodPost, "/deposits", s.landlordToken, map[string]any{"property_id": propertyID, "code": "123456"})
	require.Equal(s.T(), http.StatusCreated, rec.Code)
	var deposit struct {
		ID uint64 `json:"id"`
	}
	s.decode(rec, &deposit)

	rec = s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/amount", deposit.ID), s.landlordToken, map[string]any{"amount": 1000})
	require.Equal(s.T(), http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, "/funds", s.tenantToken, map[string]any{"amount": 1000})
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/pay", deposit.ID), s.tenantToken, map[string]any{"code": "123456", "amount": 500})
	assert.Equal(s.T(), http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/pay", deposit.ID), s.tenantToken, map[string]any{"code": "000000", "amount": 1000})
	assert.Equal(s.T(), http.StatusUnprocessableEntity, rec.Code)
}

func (s *RouterSuite) TestReceiptTransferAndBurn() {
	propertyID := s.createProperty()
	depositID, tokenID := s.openPaidDeposit(propertyID, 1000)

	other := id.NewAccount()
	rec := s.do(http.MethodPost, fmt.Sprintf("/tokens/%d/transfer", tokenID), s.tenantToken, map[string]any{"to": other.String()})
	require.Equal(s.T(), http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, fmt.Sprintf("/tokens/%d/owner", tokenID), "", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var owner struct {
		Owner string `json:"owner"`
	}
	s.decode(rec, &owner)
	assert.Equal(s.T(), other.String(), owner.Owner)

	// Burn fails while the deposit is live, works after settlement.
	rec = s.do(http.MethodDelete, fmt.Sprintf("/tokens/%d", tokenID), s.token(other), nil)
	assert.Equal(s.T(), http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/refund", depositID), s.landlordToken, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, fmt.Sprintf("/tokens/%d", tokenID), s.token(other), nil)
	assert.Equal(s.T(), http.StatusNoContent, rec.Code)

	// The reverse lookup survives the burn.
	rec = s.do(http.MethodGet, fmt.Sprintf("/tokens/%d/deposit", tokenID), "", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestFilesEndpoints() {
	propertyID := s.createProperty()
	depositID, _ := s.openPaidDeposit(propertyID, 1000)

	rec := s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/files", depositID), s.tenantToken, map[string]any{
		"type":       "lease",
		"content_id": "bafy-1",
		"name":       "bail.pdf",
	})
	assert.Equal(s.T(), http.StatusForbidden, rec.Code, "only the landlord may attach files")

	rec = s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/files", depositID), s.landlordToken, map[string]any{
		"type":       "lease",
		"content_id": "bafy-1",
		"name":       "bail.pdf",
	})
	require.Equal(s.T(), http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, fmt.Sprintf("/deposits/%d/files", depositID), "", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var listing struct {
		Files []struct {
			Type string `json:"type"`
		} `json:"files"`
	}
	s.decode(rec, &listing)
	require.Len(s.T(), listing.Files, 1)
	assert.Equal(s.T(), "lease", listing.Files[0].Type)
}

func (s *RouterSuite) TestPropertyDeletionBlockedByHistory() {
	propertyID := s.createProperty()
	depositID, _ := s.openPaidDeposit(propertyID, 1000)

	rec := s.do(http.MethodPost, fmt.Sprintf("/deposits/%d/refund", depositID), s.landlordToken, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, fmt.Sprintf("/properties/%d", propertyID), s.landlordToken, nil)
	assert.Equal(s.T(), http.StatusConflict, rec.Code)

	// A property that never saw a deposit deletes cleanly.
	clean := s.createProperty()
	rec = s.do(http.MethodDelete, fmt.Sprintf("/properties/%d", clean), s.landlordToken, nil)
	assert.Equal(s.T(), http.StatusNoContent, rec.Code)
}

func (s *RouterSuite) TestPropertyOfDepositIsTenantOnly() {
	propertyID := s.createProperty()
	depositID, _ := s.openPaidDeposit(propertyID, 1000)

	rec := s.do(http.MethodGet, fmt.Sprintf("/deposits/%d/property", depositID), s.landlordToken, nil)
	assert.Equal(s.T(), http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/deposits/%d/property", depositID), s.tenantToken, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var body struct {
		PropertyID uint64 `json:"property_id"`
	}
	s.decode(rec, &body)
	assert.Equal(s.T(), propertyID, body.PropertyID)
}

func (s *RouterSuite) TestBadIDsAreBadRequests() {
	rec := s.do(http.MethodGet, "/properties/zero", "", nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/deposits/0", "", nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/tokens/abc/uri", "", nil)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *RouterSuite) TestListingEndpoints() {
	propertyID := s.createProperty()
	depositID, _ := s.openPaidDeposit(propertyID, 1000)

	rec := s.do(http.MethodGet, fmt.Sprintf("/landlords/%s/properties", s.landlord), "", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var props struct {
		PropertyIDs []uint64 `json:"property_ids"`
	}
	s.decode(rec, &props)
	assert.Equal(s.T(), []uint64{propertyID}, props.PropertyIDs)

	rec = s.do(http.MethodGet, fmt.Sprintf("/tenants/%s/deposits", s.tenant), "", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var deposits struct {
		Deposits []struct {
			ID uint64 `json:"id"`
		} `json:"deposits"`
	}
	s.decode(rec, &deposits)
	require.Len(s.T(), deposits.Deposits, 1)
	assert.Equal(s.T(), depositID, deposits.Deposits[0].ID)

	rec = s.do(http.MethodGet, fmt.Sprintf("/properties/%d/deposits", propertyID), s.landlordToken, nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/properties/%d/deposit", propertyID), "", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	var active struct {
		DepositID uint64 `json:"deposit_id"`
	}
	s.decode(rec, &active)
	assert.Equal(s.T(), depositID, active.DepositID)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}
