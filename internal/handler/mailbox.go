package handler

import (
	"net/http"

	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/service"
	"github.com/StimpyDev/EconomyCraft/pkg/response"
)

// MailboxHandler lets the game host read and drain a player's deliveries.
type MailboxHandler struct {
	eco *service.Economy
}

func NewMailboxHandler(eco *service.Economy) *MailboxHandler {
	return &MailboxHandler{eco: eco}
}

// List handles GET /api/v1/players/{player}/mailbox
func (h *MailboxHandler) List(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	items := h.eco.Mailbox.Deliveries(player)
	if items == nil {
		items = []model.Item{}
	}
	response.OK(w, map[string]interface{}{"player": player, "items": items})
}

// Claim handles POST /api/v1/players/{player}/mailbox/claim. The caller is
// responsible for handing the returned items to the player.
func (h *MailboxHandler) Claim(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	items := h.eco.Mailbox.ClaimDeliveries(r.Context(), player)
	if items == nil {
		items = []model.Item{}
	}
	response.OK(w, map[string]interface{}{"player": player, "items": items})
}
