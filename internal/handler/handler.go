// Package handler exposes the shop's HTTP API: catalog browsing, cart
// management, checkout, and the post-payment success callback.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/forez0/bikeshop/internal/domain/catalog"
	"github.com/forez0/bikeshop/internal/domain/discount"
	"github.com/forez0/bikeshop/internal/domain/fulfillment"
	"github.com/forez0/bikeshop/internal/domain/order"
	"github.com/forez0/bikeshop/internal/notice"
)

// Handler serves the API routes, delegating business logic to the domain
// services.
type Handler struct {
	bikes       catalog.Repository
	orders      *order.Service
	policy      *discount.Policy
	coordinator *fulfillment.Coordinator
	validate    *validator.Validate
	metrics     *Metrics
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	bikes catalog.Repository,
	orders *order.Service,
	policy *discount.Policy,
	coordinator *fulfillment.Coordinator,
	metrics *Metrics,
) *Handler {
	return &Handler{
		bikes:       bikes,
		orders:      orders,
		policy:      policy,
		coordinator: coordinator,
		validate:    validator.New(),
		metrics:     metrics,
	}
}

// Routes registers the API routes on the given router. The caller mounts the
// result under /api and wraps it with the authentication middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/bikes", h.ListBikes)
	r.Get("/bikes/{id}", h.GetBike)
	r.Get("/orders", h.ListOrders)
	r.Get("/orders/current", h.CurrentOrder)
	r.Post("/orders/items", h.AddItem)
	r.Post("/orders/checkout", h.Checkout)
	r.Post("/orders/{id}/success", h.OrderSuccess)
}

// errorResponse is the JSON body for every non-2xx API response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// messages carries user-facing notices collected while handling a request.
type messages struct {
	Info  []string `json:"info,omitempty"`
	Error []string `json:"error,omitempty"`
}

func collectMessages(rec *notice.Recorder) messages {
	return messages{Info: rec.Infos(), Error: rec.Errors()}
}

// decodeJSON decodes the request body into v. An empty body is allowed and
// leaves v at its zero value.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

type bikeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Price       string `json:"price"`
	Description string `json:"description,omitempty"`
	InStock     bool   `json:"in_stock"`
	Specifics   string `json:"specifics"`
}

func bikeToResponse(b *catalog.Bike) bikeResponse {
	return bikeResponse{
		ID:          b.ID,
		Name:        b.Name,
		Type:        string(b.Type),
		Price:       b.Price.StringFixed(2),
		Description: b.Description,
		InStock:     b.InStock,
		Specifics:   b.Specifics(),
	}
}

type lineResponse struct {
	BikeID    string `json:"bike_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Discount  string `json:"discount"`
	Total     string `json:"total"`
}

type orderResponse struct {
	ID              string         `json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	Status          string         `json:"status"`
	TrackingCode    string         `json:"tracking_code,omitempty"`
	Total           string         `json:"total"`
	Discount        string         `json:"discount"`
	DiscountPercent int            `json:"discount_percent"`
	Completed       bool           `json:"completed"`
	Items           []lineResponse `json:"items"`
}

func orderToResponse(o *order.Order) orderResponse {
	items := make([]lineResponse, len(o.Lines))
	for i := range o.Lines {
		l := &o.Lines[i]
		items[i] = lineResponse{
			BikeID:    l.BikeID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Discount:  l.Discount.StringFixed(2),
			Total:     l.Total().StringFixed(2),
		}
	}
	return orderResponse{
		ID:              o.ID,
		CreatedAt:       o.CreatedAt,
		Status:          string(o.Status),
		TrackingCode:    o.TrackingCode,
		Total:           o.Total.StringFixed(2),
		Discount:        o.Discount.StringFixed(2),
		DiscountPercent: o.DiscountPercent,
		Completed:       o.Completed,
		Items:           items,
	}
}
