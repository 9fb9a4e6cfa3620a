package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func newTestRouter(svc *Service) http.Handler {
	h := NewHandler(nil, svc)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, actor *shared.Actor) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(context.Background(), actor))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func testActorCtx() *shared.Actor {
	return &shared.Actor{ID: testActor, TenantID: testTenant, Name: "tester"}
}

func TestHandlerApply(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	svc, _ := newTestService(repo, nil)
	router := newTestRouter(svc)

	body := map[string]any{
		"legalEntityId":  testLegalEntity,
		"counterpartyId": testCounterparty,
		"currency":       "USD",
		"settlementDate": "2025-03-10",
		"amount":         "100",
		"idempotencyKey": "apply-http-1",
		"allocations":    []map[string]any{{"openItemId": 1, "amountTxn": "100"}},
	}

	rec := doJSON(t, router, http.MethodPost, "/settlements", body, testActorCtx())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp applyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "SET-2025-000001", resp.Batch.Number)
	require.Equal(t, BatchPosted, resp.Batch.Status)
	require.Len(t, resp.Allocations, 1)
	require.False(t, resp.IdempotentReplay)

	require.NotNil(t, resp.Journal)
	require.Len(t, resp.Journal.Lines, 2)
	require.Equal(t, arOffsetAccount, resp.Journal.Lines[0].AccountID)
	require.True(t, resp.Journal.Lines[0].Debit.Equal(dec("100.00")))
	require.Equal(t, arControlAccount, resp.Journal.Lines[1].AccountID)
	require.True(t, resp.Journal.Lines[1].Credit.Equal(dec("100.00")))

	// Replays return 200 with the original payload.
	rec = doJSON(t, router, http.MethodPost, "/settlements", body, testActorCtx())
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.IdempotentReplay)
	require.Equal(t, "SET-2025-000001", resp.Batch.Number)
}

func TestHandlerApplyReportsConsumedUnapplied(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "80", "80", "2025-01-15", 500)
	seedUnapplied(repo, 20, "USD", "50", "50", "2025-01-01")
	seedUnapplied(repo, 21, "USD", "100", "100", "2025-01-05")
	svc, _ := newTestService(repo, nil)
	router := newTestRouter(svc)

	body := map[string]any{
		"legalEntityId":    testLegalEntity,
		"counterpartyId":   testCounterparty,
		"currency":         "USD",
		"settlementDate":   "2025-03-10",
		"amount":           "0",
		"idempotencyKey":   "apply-http-2",
		"autoAllocate":     true,
		"useUnappliedCash": true,
	}

	rec := doJSON(t, router, http.MethodPost, "/settlements", body, testActorCtx())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp applyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.UnappliedConsumed, 2)
	require.Equal(t, int64(20), resp.UnappliedConsumed[0].UnappliedCashID)
	require.True(t, resp.UnappliedConsumed[0].AmountTxn.Equal(dec("50")))
	require.Equal(t, int64(21), resp.UnappliedConsumed[1].UnappliedCashID)
	require.True(t, resp.UnappliedConsumed[1].AmountTxn.Equal(dec("30")))
}

func TestHandlerApplyRequiresActor(t *testing.T) {
	repo := seedRepo()
	svc, _ := newTestService(repo, nil)
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/settlements", map[string]any{}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerApplyBadDate(t *testing.T) {
	repo := seedRepo()
	svc, _ := newTestService(repo, nil)
	router := newTestRouter(svc)

	body := map[string]any{
		"legalEntityId":  testLegalEntity,
		"counterpartyId": testCounterparty,
		"currency":       "USD",
		"settlementDate": "10/03/2025",
		"amount":         "100",
		"idempotencyKey": "apply-http-2",
	}
	rec := doJSON(t, router, http.MethodPost, "/settlements", body, testActorCtx())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerApplyValidationProblem(t *testing.T) {
	repo := seedRepo()
	svc, _ := newTestService(repo, nil)
	router := newTestRouter(svc)

	body := map[string]any{
		"legalEntityId":  testLegalEntity,
		"counterpartyId": testCounterparty,
		"currency":       "USD",
		"settlementDate": "2025-03-10",
		"amount":         "100",
	}
	rec := doJSON(t, router, http.MethodPost, "/settlements", body, testActorCtx())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestHandlerReverseAndGet(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	svc, _ := newTestService(repo, nil)
	router := newTestRouter(svc)

	applied := applyFixture(t, svc, func(c *ApplyCommand) {
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})

	getPath := "/settlements/" + strconv.FormatInt(applied.Batch.ID, 10)
	rec := doJSON(t, router, http.MethodGet, getPath, nil, testActorCtx())
	require.Equal(t, http.StatusOK, rec.Code)
	var got applyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, applied.Batch.ID, got.Batch.ID)

	rec = doJSON(t, router, http.MethodPost, getPath+"/reverse", map[string]any{"memo": "entered twice"}, testActorCtx())
	require.Equal(t, http.StatusCreated, rec.Code)
	var reversed reverseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reversed))
	require.Equal(t, BatchReversed, reversed.ReversalBatch.Status)
	require.Equal(t, applied.Batch.ID, *reversed.ReversalBatch.ReversalOfBatchID)

	// Second reversal conflicts.
	rec = doJSON(t, router, http.MethodPost, getPath+"/reverse", nil, testActorCtx())
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerBankRef(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	svc, _ := newTestService(repo, nil)
	router := newTestRouter(svc)

	applied := applyFixture(t, svc, func(c *ApplyCommand) {
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})

	body := map[string]any{
		"targetType":         "SETTLEMENT",
		"targetId":           applied.Batch.ID,
		"bankTransactionRef": "STMT-2025-077",
		"idempotencyKey":     "bank-http-1",
	}
	rec := doJSON(t, router, http.MethodPost, "/settlements/bank-reference", body, testActorCtx())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp bankRefResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "SETTLEMENT", resp.TargetType)
	require.False(t, resp.IdempotentReplay)

	rec = doJSON(t, router, http.MethodPost, "/settlements/bank-reference", body, testActorCtx())
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.IdempotentReplay)
}

func TestHandlerList(t *testing.T) {
	repo := seedRepo()
	seedOpenItem(repo, 1, DirectionAR, "USD", "100", "100", "2025-01-15", 500)
	svc, _ := newTestService(repo, nil)
	router := newTestRouter(svc)

	applyFixture(t, svc, func(c *ApplyCommand) {
		c.ManualAllocations = []ManualAllocation{{OpenItemID: 1, AmountTxn: dec("100")}}
	})

	rec := doJSON(t, router, http.MethodGet, "/settlements?status=POSTED", nil, testActorCtx())
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Settlements []batchResponse `json:"settlements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Settlements, 1)
	require.Equal(t, "SET-2025-000001", listing.Settlements[0].Number)
}
