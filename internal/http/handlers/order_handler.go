package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type orderRequest struct {
	UserID    int64           `json:"user_id"`
	ProductID int64           `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
}

// PlaceOrder handles POST /api/orders. The caller may pin a price (e.g. a
// discounted checkout); when omitted or zero the product's current price is
// snapshotted instead. Stock verification, the decrement, the order row, and
// the audit entry all commit as one unit in the store.
func (h *Handlers) PlaceOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if req.UserID <= 0 || req.ProductID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id and product_id required")
		return
	}

	ctx := c.Request.Context()
	price := req.Price
	if price.IsZero() {
		product, err := h.store.GetProduct(ctx, req.ProductID)
		if err != nil {
			failStore(c, err)
			return
		}
		price = product.Price
	}

	order, err := h.store.PlaceOrder(ctx, req.UserID, req.ProductID, price)
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"success": true, "order": order})
}

// ListOrders handles GET /api/orders?user_id=N, newest first.
func (h *Handlers) ListOrders(c *gin.Context) {
	raw := c.Query("user_id")
	if raw == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
		return
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user_id")
		return
	}
	orders, err := h.store.OrdersForUser(c.Request.Context(), userID)
	if err != nil {
		failStore(c, err)
		return
	}
	ok(c, http.StatusOK, orders)
}
