package handler

import (
	"net/http"

	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/service"
	"github.com/StimpyDev/EconomyCraft/pkg/apierror"
	"github.com/StimpyDev/EconomyCraft/pkg/response"
	"github.com/StimpyDev/EconomyCraft/pkg/uid"
)

// MarketHandler serves the listing market and the order book.
type MarketHandler struct {
	eco *service.Economy
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(eco *service.Economy) *MarketHandler {
	return &MarketHandler{eco: eco}
}

// CreateListingRequest is the body of POST /listings.
type CreateListingRequest struct {
	Seller string     `json:"seller"`
	Item   model.Item `json:"item"`
	Price  int64      `json:"price"`
}

// PlayerRequest names the player acting on an entry.
type PlayerRequest struct {
	Player string `json:"player"`
}

// ListingView is a listing with the tax a buyer would pay on top.
type ListingView struct {
	model.Listing
	Tax int64 `json:"tax"`
}

func (h *MarketHandler) view(l model.Listing) ListingView {
	return ListingView{Listing: l, Tax: h.eco.Listings.QuoteTax(l.Price)}
}

// ListListings handles GET /api/v1/listings?seller=UUID
func (h *MarketHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	var listings []model.Listing
	if raw := r.URL.Query().Get("seller"); raw != "" {
		seller, ok := playerField(w, raw, "seller")
		if !ok {
			return
		}
		listings = h.eco.Listings.ListingsBySeller(seller)
	} else {
		listings = h.eco.Listings.Listings()
	}

	out := make([]ListingView, 0, len(listings))
	for _, l := range listings {
		out = append(out, h.view(l))
	}
	response.OK(w, out)
}

// GetListing handles GET /api/v1/listings/{id}
func (h *MarketHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	l, found := h.eco.Listings.Listing(id)
	if !found {
		response.Error(w, apierror.NotFound("listing not found"))
		return
	}
	response.OK(w, h.view(l))
}

// CreateListing handles POST /api/v1/listings
func (h *MarketHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if !decode(w, r, &req) {
		return
	}
	seller, ok := playerField(w, req.Seller, "seller")
	if !ok {
		return
	}
	l, err := h.eco.Listings.AddListing(r.Context(), seller, req.Item, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, h.view(l))
}

// DeleteListing handles DELETE /api/v1/listings/{id}. The item is dropped,
// not returned; use cancel to give it back to the seller.
func (h *MarketHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if _, removed := h.eco.Listings.RemoveListing(r.Context(), id); !removed {
		response.Error(w, apierror.NotFound("listing not found"))
		return
	}
	response.NoContent(w)
}

// CancelListing handles POST /api/v1/listings/{id}/cancel
func (h *MarketHandler) CancelListing(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req PlayerRequest
	if !decode(w, r, &req) {
		return
	}
	by, ok := playerField(w, req.Player, "player")
	if !ok {
		return
	}
	l, err := h.eco.Listings.CancelListing(r.Context(), id, by)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, l)
}

// PurchaseListing handles POST /api/v1/listings/{id}/purchase
func (h *MarketHandler) PurchaseListing(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req PlayerRequest
	if !decode(w, r, &req) {
		return
	}
	buyer, ok := playerField(w, req.Player, "player")
	if !ok {
		return
	}
	receipt, err := h.eco.Listings.Purchase(r.Context(), id, buyer)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, receipt)
}

// CreateRequestRequest is the body of POST /requests.
type CreateRequestRequest struct {
	Requester string     `json:"requester"`
	Item      model.Item `json:"item"`
	Amount    int        `json:"amount"`
	Price     int64      `json:"price"`
}

// ListRequests handles GET /api/v1/requests?requester=UUID
func (h *MarketHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("requester")
	if raw == "" {
		response.OK(w, h.eco.Orders.Requests())
		return
	}
	requester, ok := uid.ParsePlayer(raw)
	if !ok {
		response.Error(w, apierror.ValidationError("invalid player id",
			apierror.FieldError{Field: "requester", Message: "must be a UUID"}))
		return
	}
	response.OK(w, h.eco.Orders.RequestsBy(requester))
}

// GetRequest handles GET /api/v1/requests/{id}
func (h *MarketHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	req, found := h.eco.Orders.Request(id)
	if !found {
		response.Error(w, apierror.NotFound("request not found"))
		return
	}
	response.OK(w, req)
}

// CreateRequest handles POST /api/v1/requests
func (h *MarketHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestRequest
	if !decode(w, r, &req) {
		return
	}
	requester, ok := playerField(w, req.Requester, "requester")
	if !ok {
		return
	}
	created, err := h.eco.Orders.CreateRequest(r.Context(), requester, req.Item, req.Amount, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, created)
}

// DeleteRequest handles DELETE /api/v1/requests/{id}
func (h *MarketHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if _, removed := h.eco.Orders.RemoveRequest(r.Context(), id); !removed {
		response.Error(w, apierror.NotFound("request not found"))
		return
	}
	response.NoContent(w)
}

// CancelRequest handles POST /api/v1/requests/{id}/cancel
func (h *MarketHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req PlayerRequest
	if !decode(w, r, &req) {
		return
	}
	by, ok := playerField(w, req.Player, "player")
	if !ok {
		return
	}
	cancelled, err := h.eco.Orders.CancelRequest(r.Context(), id, by)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, cancelled)
}

// FulfillRequest handles POST /api/v1/requests/{id}/fulfill. Needs an
// inventory attached to the economy; otherwise it answers 503.
func (h *MarketHandler) FulfillRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req PlayerRequest
	if !decode(w, r, &req) {
		return
	}
	fulfiller, ok := playerField(w, req.Player, "player")
	if !ok {
		return
	}
	receipt, err := h.eco.Orders.Fulfill(r.Context(), id, fulfiller)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, receipt)
}
