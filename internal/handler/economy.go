package handler

import (
	"net/http"
	"strings"

	"github.com/StimpyDev/EconomyCraft/internal/service"
	"github.com/StimpyDev/EconomyCraft/pkg/apierror"
	"github.com/StimpyDev/EconomyCraft/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// EconomyHandler serves balances, daily rewards, payments and player names.
type EconomyHandler struct {
	eco *service.Economy
}

// NewEconomyHandler creates a new economy handler.
func NewEconomyHandler(eco *service.Economy) *EconomyHandler {
	return &EconomyHandler{eco: eco}
}

// AmountRequest is the body of balance mutations.
type AmountRequest struct {
	Amount int64 `json:"amount"`
}

// BalanceResponse reports a player balance.
type BalanceResponse struct {
	Player  uuid.UUID `json:"player"`
	Balance int64     `json:"balance"`
	Exists  bool      `json:"exists"`
}

// GetBalance handles GET /api/v1/players/{player}/balance. Unknown players
// are reported with exists=false and no account is created.
func (h *EconomyHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	bal, exists := h.eco.Ledger.GetBalance(r.Context(), player, false)
	response.OK(w, BalanceResponse{Player: player, Balance: bal, Exists: exists})
}

// SetBalance handles PUT /api/v1/players/{player}/balance
func (h *EconomyHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	bal := h.eco.Ledger.SetMoney(r.Context(), player, req.Amount)
	response.OK(w, BalanceResponse{Player: player, Balance: bal, Exists: true})
}

// AddBalance handles POST /api/v1/players/{player}/balance/add
func (h *EconomyHandler) AddBalance(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	bal := h.eco.Ledger.AddMoney(r.Context(), player, req.Amount)
	response.OK(w, BalanceResponse{Player: player, Balance: bal, Exists: true})
}

// RemoveBalance handles POST /api/v1/players/{player}/balance/remove
func (h *EconomyHandler) RemoveBalance(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Amount < 0 {
		response.Error(w, apierror.New(http.StatusBadRequest, "INVALID_AMOUNT", "amount must not be negative"))
		return
	}
	if !h.eco.Ledger.RemoveMoney(r.Context(), player, req.Amount) {
		response.Error(w, apierror.PaymentRequired(""))
		return
	}
	bal, _ := h.eco.Ledger.GetBalance(r.Context(), player, false)
	response.OK(w, BalanceResponse{Player: player, Balance: bal, Exists: true})
}

// DeletePlayer handles DELETE /api/v1/players/{player}
func (h *EconomyHandler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	h.eco.Ledger.RemovePlayer(r.Context(), player)
	response.NoContent(w)
}

// ClaimDaily handles POST /api/v1/players/{player}/daily
func (h *EconomyHandler) ClaimDaily(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	bal, err := h.eco.Ledger.ClaimDaily(r.Context(), player)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"player":  player,
		"reward":  h.eco.Config().DailyAmount,
		"balance": bal,
	})
}

// DailyStatus handles GET /api/v1/players/{player}/daily
func (h *EconomyHandler) DailyStatus(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	response.OK(w, map[string]interface{}{
		"player":        player,
		"claimed_today": h.eco.Ledger.HasClaimedToday(player),
	})
}

// SellLimit handles GET /api/v1/players/{player}/sell-limit. Remaining is -1
// when no daily limit is configured.
func (h *EconomyHandler) SellLimit(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	remaining := int64(-1)
	if h.eco.Limits.Enabled() {
		remaining = h.eco.Limits.Remaining(player)
	}
	response.OK(w, map[string]interface{}{
		"player":    player,
		"limit":     h.eco.Config().DailySellLimit,
		"remaining": remaining,
	})
}

// NameRequest is the body of PUT /players/{player}/name.
type NameRequest struct {
	Name string `json:"name"`
}

// RegisterName handles PUT /api/v1/players/{player}/name
func (h *EconomyHandler) RegisterName(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	var req NameRequest
	if !decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		response.Error(w, apierror.ValidationError("name is required",
			apierror.FieldError{Field: "name", Message: "must not be empty"}))
		return
	}
	if err := h.eco.Directory.Register(r.Context(), player, req.Name); err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"player": player, "name": req.Name})
}

// GetName handles GET /api/v1/players/{player}/name
func (h *EconomyHandler) GetName(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	name, err := h.eco.Directory.ResolveName(r.Context(), player)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"player": player, "name": name})
}

// LookupName handles GET /api/v1/names/{name}
func (h *EconomyHandler) LookupName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, err := h.eco.Directory.ResolveID(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"player": id, "name": name})
}

// TopBalances handles GET /api/v1/balances/top?page=N
func (h *EconomyHandler) TopBalances(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := h.eco.Config().TopPageSize

	entries, pages, err := h.eco.Ledger.TopBalances(page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range entries {
		if name, err := h.eco.Directory.ResolveName(r.Context(), entries[i].Player); err == nil {
			entries[i].Name = name
		}
	}
	response.JSONWithMeta(w, http.StatusOK, entries, page, pageSize, int64(pages))
}

// PaymentRequest is the body of POST /payments.
type PaymentRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Pay handles POST /api/v1/payments
func (h *EconomyHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !decode(w, r, &req) {
		return
	}
	from, ok := playerField(w, req.From, "from")
	if !ok {
		return
	}
	to, ok := playerField(w, req.To, "to")
	if !ok {
		return
	}
	if err := h.eco.Ledger.Pay(r.Context(), from, to, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	fromBal, _ := h.eco.Ledger.GetBalance(r.Context(), from, false)
	toBal, _ := h.eco.Ledger.GetBalance(r.Context(), to, false)
	response.OK(w, map[string]interface{}{
		"amount":       req.Amount,
		"from_balance": fromBal,
		"to_balance":   toBal,
	})
}

// KillRequest is the body of POST /pvp/kills.
type KillRequest struct {
	Victim string `json:"victim"`
	Killer string `json:"killer"`
}

// PvPKill handles POST /api/v1/pvp/kills
func (h *EconomyHandler) PvPKill(w http.ResponseWriter, r *http.Request) {
	var req KillRequest
	if !decode(w, r, &req) {
		return
	}
	victim, ok := playerField(w, req.Victim, "victim")
	if !ok {
		return
	}
	killer, ok := playerField(w, req.Killer, "killer")
	if !ok {
		return
	}
	moved := h.eco.Ledger.HandleTransferOnKill(r.Context(), victim, killer)
	response.OK(w, map[string]interface{}{"transferred": moved})
}
