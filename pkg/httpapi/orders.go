package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"orderdesk/pkg/order"
	"orderdesk/pkg/otel"
	"orderdesk/pkg/product"
)

// createOrderRequest is the body of POST /orders.
type createOrderRequest struct {
	CustomerName string `json:"customer_name"`
}

// listOrdersHandler lists orders.
// @Summary List orders
// @Produce json
// @Success 200 {object} Page[order.Order]
// @Security ApiKeyAuth
// @Router /orders [get]
func (s *Server) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listOrdersHandler")
	defer span.End()

	orders, err := s.orders.List(ctx)
	if err != nil {
		s.log.Error(ctx, "list orders", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newPage(orders))
}

// createOrderHandler creates a new, empty order.
// @Summary Create order
// @Accept json
// @Produce json
// @Param order body createOrderRequest true "Order"
// @Success 201 {object} order.Order
// @Security ApiKeyAuth
// @Router /orders [post]
func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "createOrderHandler")
	defer span.End()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	o := order.Order{ID: s.newID(), CustomerName: req.CustomerName, CreatedAt: s.now()}
	o.Recalculate()
	if err := s.orders.Create(ctx, o); err != nil {
		s.log.Error(ctx, "create order", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// getOrderHandler retrieves an order by ID.
// @Summary Get order
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} order.Order
// @Failure 404 {object} errorResponse
// @Security ApiKeyAuth
// @Router /orders/{id} [get]
func (s *Server) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getOrderHandler")
	defer span.End()

	o, err := s.orders.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeOrderError(w, r, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// deleteOrderHandler removes an order.
// @Summary Delete order
// @Param id path string true "Order ID"
// @Success 204
// @Failure 404 {object} errorResponse
// @Security ApiKeyAuth
// @Router /orders/{id} [delete]
func (s *Server) deleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "deleteOrderHandler")
	defer span.End()

	id := mux.Vars(r)["id"]
	if err := s.orders.Delete(ctx, id); err != nil {
		s.writeOrderError(w, r, "delete order", err)
		return
	}
	s.log.Info(ctx, "order deleted", "order_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// addOrderItemHandler prices a new line against the catalog and appends it.
// @Summary Add order item
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param item body order.ItemInput true "Item"
// @Success 201 {object} order.Mutation
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Security ApiKeyAuth
// @Router /orders/{id}/items [post]
func (s *Server) addOrderItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "addOrderItemHandler")
	defer span.End()

	orderID := mux.Vars(r)["id"]
	var in order.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.products.Get(ctx, in.ProductID)
	if errors.Is(err, product.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "unknown product "+in.ProductID)
		return
	}
	if err != nil {
		s.log.Error(ctx, "get product", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	it, err := order.NewItem(s.newID(), p, in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := s.orders.AddItem(ctx, orderID, it)
	if err != nil {
		s.writeOrderError(w, r, "add order item", err)
		return
	}
	s.log.Info(ctx, "order item added", "order_id", orderID, "item_id", it.ID)
	writeJSON(w, http.StatusCreated, order.Mutation{Order: &o, Items: o.Items})
}

// deleteOrderItemHandler removes one line from an order.
// @Summary Delete order item
// @Produce json
// @Param id path string true "Order ID"
// @Param itemId path string true "Item ID"
// @Success 200 {object} order.Mutation
// @Failure 404 {object} errorResponse
// @Security ApiKeyAuth
// @Router /orders/{id}/items/{itemId} [delete]
func (s *Server) deleteOrderItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "deleteOrderItemHandler")
	defer span.End()

	vars := mux.Vars(r)
	o, err := s.orders.DeleteItem(ctx, vars["id"], vars["itemId"])
	if err != nil {
		s.writeOrderError(w, r, "delete order item", err)
		return
	}
	s.log.Info(ctx, "order item deleted", "order_id", vars["id"], "item_id", vars["itemId"])
	writeJSON(w, http.StatusOK, order.Mutation{Order: &o, Items: o.Items})
}

// exportOrderHandler renders an order as a CSV attachment.
// @Summary Export order
// @Produce text/csv
// @Param id path string true "Order ID"
// @Success 200 {file} file
// @Failure 404 {object} errorResponse
// @Security ApiKeyAuth
// @Router /orders/{id}/export [get]
func (s *Server) exportOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "exportOrderHandler")
	defer span.End()

	o, err := s.orders.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		s.writeOrderError(w, r, "export order", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": "order-" + o.ID + ".csv",
	}))
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"product", "pieces", "weight_kg", "price"})
	for _, it := range o.Items {
		_ = cw.Write([]string{it.ProductName, formatFloat(it.Pieces), formatFloat(it.Weight), formatFloat(it.Price)})
	}
	_ = cw.Write([]string{"total", formatFloat(o.TotalPieces), formatFloat(o.TotalWeight), formatFloat(o.TotalPrice)})
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.log.Error(ctx, "write export", "error", err)
	}
}

func (s *Server) writeOrderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound), errors.Is(err, order.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error(r.Context(), op, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
