package handler

import (
	"net/http"

	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/service"
	"github.com/StimpyDev/EconomyCraft/pkg/response"
)

const maxHistory = 500

// LogHandler serves the transaction audit trail.
type LogHandler struct {
	eco *service.Economy
}

func NewLogHandler(eco *service.Economy) *LogHandler {
	return &LogHandler{eco: eco}
}

// GetTransactions returns a page of the newest transactions involving a player.
func (h *LogHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit
	if offset+limit > maxHistory {
		response.JSONWithMeta(w, http.StatusOK, []model.Transaction{}, page, limit, 0)
		return
	}

	txs, err := h.eco.Transactions(r.Context(), player, offset+limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := []model.Transaction{}
	if offset < len(txs) {
		out = txs[offset:]
	}
	response.JSONWithMeta(w, http.StatusOK, out, page, limit, int64(len(txs)))
}
