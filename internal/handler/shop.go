package handler

import (
	"net/http"

	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/service"
	"github.com/StimpyDev/EconomyCraft/pkg/apierror"
	"github.com/StimpyDev/EconomyCraft/pkg/response"
)

// ItemLister lists catalog entries for the shop.
type ItemLister interface {
	Items(category string) []model.ItemDescriptor
	Categories() []string
}

// ShopHandler serves selling to and buying from the server.
type ShopHandler struct {
	eco     *service.Economy
	catalog ItemLister
}

// NewShopHandler creates a new shop handler. catalog may be nil.
func NewShopHandler(eco *service.Economy, catalog ItemLister) *ShopHandler {
	return &ShopHandler{eco: eco, catalog: catalog}
}

// SellRequest is the body of the sell endpoints. Count is ignored by sell-all.
type SellRequest struct {
	Item  model.Item `json:"item"`
	Count int        `json:"count"`
}

// BuyRequest is the body of POST /shop/buy.
type BuyRequest struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Items handles GET /api/v1/shop/items?category=NAME
func (h *ShopHandler) Items(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		response.OK(w, map[string]interface{}{"categories": []string{}, "items": []model.ItemDescriptor{}})
		return
	}
	response.OK(w, map[string]interface{}{
		"shop_enabled": h.eco.Shop.Enabled(),
		"categories":   h.catalog.Categories(),
		"items":        h.catalog.Items(r.URL.Query().Get("category")),
	})
}

// Sell handles POST /api/v1/players/{player}/sell
func (h *ShopHandler) Sell(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	var req SellRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.eco.Seller.Sell(r.Context(), player, req.Item, req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, res)
}

// PreviewSellAll handles POST /api/v1/players/{player}/sell-all
func (h *ShopHandler) PreviewSellAll(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	var req SellRequest
	if !decode(w, r, &req) {
		return
	}
	pending, err := h.eco.Seller.PreviewSellAll(r.Context(), player, req.Item)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, pending)
}

// ConfirmSellAll handles POST /api/v1/players/{player}/sell-all/confirm
func (h *ShopHandler) ConfirmSellAll(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	var req SellRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.eco.Seller.ConfirmSellAll(r.Context(), player, req.Item)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, res)
}

// Buy handles POST /api/v1/players/{player}/shop/buy
func (h *ShopHandler) Buy(w http.ResponseWriter, r *http.Request) {
	player, ok := playerParam(w, r, "player")
	if !ok {
		return
	}
	var req BuyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Key == "" {
		response.Error(w, apierror.ValidationError("key is required",
			apierror.FieldError{Field: "key", Message: "must not be empty"}))
		return
	}
	receipt, err := h.eco.Shop.BuyFromServer(r.Context(), player, req.Key, req.Count)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, receipt)
}
