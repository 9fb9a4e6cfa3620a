package settlement

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/fx"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes the settlement API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers settlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/settlements", h.apply)
	r.Post("/settlements/{id}/reverse", h.reverse)
	r.Post("/settlements/bank-reference", h.attachBankRef)
	r.Get("/settlements", h.list)
	r.Get("/settlements/{id}", h.get)
}

type applyRequest struct {
	LegalEntityID  int64           `json:"legalEntityId"`
	CounterpartyID int64           `json:"counterpartyId"`
	Currency       string          `json:"currency"`
	SettlementDate string          `json:"settlementDate"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentChannel string          `json:"paymentChannel"`
	IdempotencyKey string          `json:"idempotencyKey"`

	Allocations      []ManualAllocation `json:"allocations"`
	AutoAllocate     bool               `json:"autoAllocate"`
	UseUnappliedCash bool               `json:"useUnappliedCash"`

	FXRate            *decimal.Decimal `json:"fxRate"`
	FXFallbackMode    *string          `json:"fxFallbackMode"`
	FXFallbackMaxDays *int             `json:"fxFallbackMaxDays"`

	BankApplyKey        string `json:"bankApplyKey"`
	BankStatementLineID *int64 `json:"bankStatementLineId"`
	BankTransactionRef  string `json:"bankTransactionRef"`

	IntegrationEventUID string `json:"integrationEventUid"`
	SourceModule        string `json:"sourceModule"`
	SourceEntityID      string `json:"sourceEntityId"`

	CashTransactionID *int64    `json:"cashTransactionId"`
	CashSpec          *CashSpec `json:"cashSpec"`

	Memo string `json:"memo"`
}

type batchResponse struct {
	ID                 int64           `json:"id"`
	Number             string          `json:"number"`
	Status             BatchStatus     `json:"status"`
	Direction          Direction       `json:"direction"`
	Context            SourceContext   `json:"context"`
	LegalEntityID      int64           `json:"legalEntityId"`
	CounterpartyID     int64           `json:"counterpartyId"`
	Currency           string          `json:"currency"`
	SettlementDate     string          `json:"settlementDate"`
	TotalAllocatedTxn  decimal.Decimal `json:"totalAllocatedTxn"`
	TotalAllocatedBase decimal.Decimal `json:"totalAllocatedBase"`
	FXRate             decimal.Decimal `json:"fxRate"`
	FXSource           string          `json:"fxSource"`
	FXVarianceBase     decimal.Decimal `json:"fxVarianceBase"`
	JournalEntryID     *int64          `json:"journalEntryId"`
	JournalNumber      int64           `json:"journalNumber,omitempty"`
	CashTransactionID  *int64          `json:"cashTransactionId,omitempty"`
	ReversalOfBatchID  *int64          `json:"reversalOfBatchId,omitempty"`
	ReversedByBatchID  *int64          `json:"reversedByBatchId,omitempty"`
}

type allocationResponse struct {
	OpenItemID         int64           `json:"openItemId"`
	AmountTxn          decimal.Decimal `json:"amountTxn"`
	AmountBaseHistoric decimal.Decimal `json:"amountBaseHistoric"`
	AmountBaseSettle   decimal.Decimal `json:"amountBaseSettle"`
}

type unappliedResponse struct {
	ID          int64           `json:"id"`
	AmountTxn   decimal.Decimal `json:"amountTxn"`
	ResidualTxn decimal.Decimal `json:"residualTxn"`
	Status      UnappliedStatus `json:"status"`
}

type journalLineResponse struct {
	AccountID int64           `json:"accountId"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type journalResponse struct {
	ID     int64                 `json:"id"`
	Number int64                 `json:"number"`
	Status ledger.JournalStatus  `json:"status"`
	Date   string                `json:"date"`
	Lines  []journalLineResponse `json:"lines"`
}

type consumptionResponse struct {
	UnappliedCashID int64           `json:"unappliedCashId"`
	AmountTxn       decimal.Decimal `json:"amountTxn"`
	AmountBase      decimal.Decimal `json:"amountBase"`
}

type applyResponse struct {
	Batch             batchResponse         `json:"batch"`
	Allocations       []allocationResponse  `json:"allocations"`
	Journal           *journalResponse      `json:"journal,omitempty"`
	UnappliedCreated  *unappliedResponse    `json:"unappliedCreated,omitempty"`
	UnappliedConsumed []consumptionResponse `json:"unappliedConsumed,omitempty"`
	IdempotentReplay  bool                  `json:"idempotentReplay"`
}

func toJournalResponse(j ledger.JournalEntry) *journalResponse {
	if j.ID == 0 {
		return nil
	}
	resp := &journalResponse{
		ID:     j.ID,
		Number: j.Number,
		Status: j.Status,
		Date:   j.Date.Format("2006-01-02"),
	}
	for _, line := range j.Lines {
		resp.Lines = append(resp.Lines, journalLineResponse{
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}
	return resp
}

func toBatchResponse(b SettlementBatch, journal ledger.JournalEntry) batchResponse {
	resp := batchResponse{
		ID:                 b.ID,
		Number:             b.Number,
		Status:             b.Status,
		Direction:          b.Direction,
		Context:            b.Context,
		LegalEntityID:      b.LegalEntityID,
		CounterpartyID:     b.CounterpartyID,
		Currency:           b.Currency,
		SettlementDate:     b.SettlementDate.Format("2006-01-02"),
		TotalAllocatedTxn:  b.TotalAllocatedTxn,
		TotalAllocatedBase: b.TotalAllocatedBase,
		FXRate:             b.FXRate,
		FXSource:           b.FXSource,
		FXVarianceBase:     b.FXVarianceBase,
		CashTransactionID:  b.CashTransactionID,
		ReversalOfBatchID:  b.ReversalOfBatchID,
		ReversedByBatchID:  b.ReversedByBatchID,
		JournalNumber:      journal.Number,
	}
	if b.JournalEntryID != 0 {
		id := b.JournalEntryID
		resp.JournalEntryID = &id
	}
	return resp
}

func toApplyResponse(res ApplyResult) applyResponse {
	resp := applyResponse{
		Batch:            toBatchResponse(res.Batch, res.Journal),
		Journal:          toJournalResponse(res.Journal),
		IdempotentReplay: res.IdempotentReplay,
	}
	for _, c := range res.UnappliedConsumed {
		resp.UnappliedConsumed = append(resp.UnappliedConsumed, consumptionResponse{
			UnappliedCashID: c.UnappliedCashID,
			AmountTxn:       c.AmountTxn,
			AmountBase:      c.AmountBase,
		})
	}
	for _, a := range res.Allocations {
		resp.Allocations = append(resp.Allocations, allocationResponse{
			OpenItemID:         a.OpenItemID,
			AmountTxn:          a.AmountTxn,
			AmountBaseHistoric: a.AmountBaseHistoric,
			AmountBaseSettle:   a.AmountBaseSettle,
		})
	}
	if res.UnappliedCreated != nil {
		resp.UnappliedCreated = &unappliedResponse{
			ID:          res.UnappliedCreated.ID,
			AmountTxn:   res.UnappliedCreated.AmountTxn,
			ResidualTxn: res.UnappliedCreated.ResidualTxn,
			Status:      res.UnappliedCreated.Status,
		}
	}
	return resp
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "malformed JSON body")
		return
	}
	settlementDate, err := time.Parse("2006-01-02", req.SettlementDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "settlementDate must be YYYY-MM-DD")
		return
	}

	cmd := ApplyCommand{
		TenantID:            actor.TenantID,
		LegalEntityID:       req.LegalEntityID,
		CounterpartyID:      req.CounterpartyID,
		ActorID:             actor.ID,
		CurrencyCode:        req.Currency,
		SettlementDate:      settlementDate,
		IncomingAmountTxn:   req.Amount,
		PaymentChannel:      Channel(req.PaymentChannel),
		IdempotencyKey:      req.IdempotencyKey,
		ManualAllocations:   req.Allocations,
		AutoAllocate:        req.AutoAllocate,
		UseUnappliedCash:    req.UseUnappliedCash,
		FXRate:              req.FXRate,
		FXFallbackMaxDays:   req.FXFallbackMaxDays,
		BankApplyKey:        req.BankApplyKey,
		BankStatementLineID: req.BankStatementLineID,
		BankTransactionRef:  req.BankTransactionRef,
		IntegrationEventUID: req.IntegrationEventUID,
		SourceModule:        req.SourceModule,
		SourceEntityID:      req.SourceEntityID,
		CashTransactionID:   req.CashTransactionID,
		CashSpec:            req.CashSpec,
		Memo:                req.Memo,
	}
	if req.FXFallbackMode != nil {
		mode := fx.FallbackMode(*req.FXFallbackMode)
		cmd.FXFallbackMode = &mode
	}

	result, err := h.service.Apply(r.Context(), cmd)
	if err != nil {
		h.logger.Error("settlement apply", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if result.IdempotentReplay {
		status = http.StatusOK
	}
	httpx.JSON(w, status, toApplyResponse(result))
}

type reverseRequest struct {
	Memo string `json:"memo"`
}

type reverseResponse struct {
	ReversalBatch batchResponse `json:"reversalBatch"`
	OriginalBatch batchResponse `json:"originalBatch"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	batchID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "batch id must be numeric")
		return
	}

	var req reverseRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid request", "malformed JSON body")
			return
		}
	}

	result, err := h.service.Reverse(r.Context(), ReverseCommand{
		TenantID: actor.TenantID,
		BatchID:  batchID,
		ActorID:  actor.ID,
		Memo:     req.Memo,
	})
	if err != nil {
		h.logger.Error("settlement reverse", slog.Int64("batch_id", batchID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reverseResponse{
		ReversalBatch: toBatchResponse(result.ReversalBatch, result.Journal),
		OriginalBatch: toBatchResponse(result.OriginalBatch, ledger.JournalEntry{}),
	})
}

type bankRefRequest struct {
	TargetType          string `json:"targetType"`
	TargetID            int64  `json:"targetId"`
	BankStatementLineID *int64 `json:"bankStatementLineId"`
	BankTransactionRef  string `json:"bankTransactionRef"`
	IdempotencyKey      string `json:"idempotencyKey"`
}

type bankRefResponse struct {
	TargetType          string `json:"targetType"`
	TargetID            int64  `json:"targetId"`
	BankStatementLineID *int64 `json:"bankStatementLineId,omitempty"`
	BankTransactionRef  string `json:"bankTransactionRef,omitempty"`
	IdempotentReplay    bool   `json:"idempotentReplay"`
}

func (h *Handler) attachBankRef(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	var req bankRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "malformed JSON body")
		return
	}

	result, err := h.service.AttachBankRef(r.Context(), AttachBankRefCommand{
		TenantID:            actor.TenantID,
		ActorID:             actor.ID,
		TargetType:          BankRefTarget(req.TargetType),
		TargetID:            req.TargetID,
		BankStatementLineID: req.BankStatementLineID,
		BankTransactionRef:  req.BankTransactionRef,
		IdempotencyKey:      req.IdempotencyKey,
	})
	if err != nil {
		h.logger.Error("attach bank reference", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bankRefResponse{
		TargetType:          string(result.TargetType),
		TargetID:            result.TargetID,
		BankStatementLineID: result.BankStatementLineID,
		BankTransactionRef:  result.BankTransactionRef,
		IdempotentReplay:    result.IdempotentReplay,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	batchID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "batch id must be numeric")
		return
	}

	result, err := h.service.Get(r.Context(), actor.TenantID, batchID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toApplyResponse(result))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}

	q := r.URL.Query()
	filter := ListFilter{TenantID: actor.TenantID}
	filter.LegalEntityID, _ = strconv.ParseInt(q.Get("legalEntityId"), 10, 64)
	filter.CounterpartyID, _ = strconv.ParseInt(q.Get("counterpartyId"), 10, 64)
	filter.Status = BatchStatus(q.Get("status"))
	if from := q.Get("from"); from != "" {
		filter.FromDate, _ = time.Parse("2006-01-02", from)
	}
	if to := q.Get("to"); to != "" {
		filter.ToDate, _ = time.Parse("2006-01-02", to)
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	batches, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, toBatchResponse(b, ledger.JournalEntry{}))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"settlements": out})
}
