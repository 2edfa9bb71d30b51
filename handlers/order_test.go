package handlers

import (
	"net/http"
	"strings"
	"testing"

	"storefront-backend/models"

	"gorm.io/gorm"
)

var testAddress = map[string]string{
	"full_name":      "Jane Doe",
	"street_address": "1 Main St",
	"city":           "Springfield",
	"postal_code":    "12345",
	"country":        "US",
}

func checkoutBody(method string) map[string]interface{} {
	return map[string]interface{}{
		"shipping_address": testAddress,
		"payment_method":   method,
	}
}

func seedOrder(db *gorm.DB, user models.User, product models.Product, qty int, status models.OrderStatus) models.Order {
	order := models.Order{
		UserID:        user.ID,
		Status:        status,
		PaymentMethod: "PayPal",
		ShippingAddress: models.ShippingAddress{
			FullName: "Jane Doe", StreetAddress: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US",
		},
		ItemsPrice:    product.Price,
		ShippingPrice: models.MustMoney("10.00"),
		TaxPrice:      models.MustMoney("0.00"),
		TotalPrice:    product.Price,
		Items: []models.OrderItem{{
			ProductID: product.ID,
			Name:      product.Name,
			Slug:      product.Slug,
			Image:     product.PrimaryImage(),
			Qty:       qty,
			Price:     product.Price,
		}},
	}
	if err := db.Omit("User").Create(&order).Error; err != nil {
		panic(err)
	}
	return order
}

func stockOf(db *gorm.DB, p models.Product) int {
	var fresh models.Product
	db.Unscoped().Where("id = ?", p.ID).First(&fresh)
	return fresh.Stock
}

func TestCreateOrderSuccess(t *testing.T) {
	db := freshDB()
	pages := newMemPages()
	router := setupOrderRouter(db, pages)
	user, token := seedTestUser(db, "buyer@test.com", models.RoleCustomer)
	polo := seedProduct(db, "Polo", "polo", nil, "10.00", 5)
	hat := seedProduct(db, "Hat", "hat", nil, "4.99", 5)
	userCart := seedCart(db, "sess-1", &user.ID, cartItemFor(polo, 2), cartItemFor(hat, 1))

	w := serve(router, authRequest("POST", "/api/orders", checkoutBody("Stripe"), token))
	expectStatus(t, w, http.StatusCreated)

	resp := parseResponse(w)
	if resp["status"] != string(models.OrderStatusPending) {
		t.Errorf("expected pending order, got %v", resp["status"])
	}
	if num, _ := resp["order_number"].(string); !strings.HasPrefix(num, "ORD") {
		t.Errorf("unexpected order number %q", num)
	}
	if resp["items_price"] != "24.99" || resp["shipping_price"] != "10.00" || resp["tax_price"] != "3.75" || resp["total_price"] != "38.74" {
		t.Errorf("unexpected totals: %v", resp)
	}
	items, _ := resp["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(items))
	}
	if first := items[0].(map[string]interface{}); first["price"] != "10.00" || first["qty"] != float64(2) {
		t.Errorf("unexpected first line: %v", first)
	}

	if got := stockOf(db, polo); got != 3 {
		t.Errorf("expected polo stock 3, got %d", got)
	}
	if got := stockOf(db, hat); got != 4 {
		t.Errorf("expected hat stock 4, got %d", got)
	}

	var remaining int64
	db.Model(&models.Cart{}).Where("id = ?", userCart.ID).Count(&remaining)
	if remaining != 0 {
		t.Error("expected the cart to be removed after checkout")
	}
	if !pages.wasRevalidated("/product/polo") || !pages.wasRevalidated("/product/hat") {
		t.Errorf("expected product pages revalidated, got %v", pages.revalidated)
	}
}

func TestCreateOrderUsesCartPriceSnapshot(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	user, token := seedTestUser(db, "buyer@test.com", models.RoleCustomer)
	polo := seedProduct(db, "Polo", "polo", nil, "10.00", 5)
	seedCart(db, "sess-1", &user.ID, cartItemFor(polo, 1))
	db.Model(&models.Product{}).Where("id = ?", polo.ID).Update("price", "12.00")

	w := serve(router, authRequest("POST", "/api/orders", checkoutBody("PayPal"), token))
	expectStatus(t, w, http.StatusCreated)
	if items := parseResponse(w)["items_price"]; items != "10.00" {
		t.Errorf("expected snapshot price 10.00, got %v", items)
	}
}

func TestCreateOrderEmptyCartError(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	_, token := seedTestUser(db, "empty@test.com", models.RoleCustomer)

	w := serve(router, authRequest("POST", "/api/orders", checkoutBody("PayPal"), token))
	expectStatus(t, w, http.StatusBadRequest)
	if msg := parseResponse(w)["error"]; msg != "Cart is empty" {
		t.Errorf("unexpected error: %v", msg)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	user, token := seedTestUser(db, "v@test.com", models.RoleCustomer)
	polo := seedProduct(db, "Polo", "polo", nil, "10.00", 5)
	seedCart(db, "sess-1", &user.ID, cartItemFor(polo, 1))

	tests := []struct {
		name string
		body interface{}
	}{
		{"unknown payment method", checkoutBody("Barter")},
		{"missing address", map[string]interface{}{"payment_method": "PayPal"}},
		{"incomplete address", map[string]interface{}{"payment_method": "PayPal", "shipping_address": map[string]string{"city": "X"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, authRequest("POST", "/api/orders", tt.body, token))
			expectStatus(t, w, http.StatusBadRequest)
		})
	}
	if got := stockOf(db, polo); got != 5 {
		t.Errorf("expected stock untouched, got %d", got)
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	user, token := seedTestUser(db, "short@test.com", models.RoleCustomer)
	polo := seedProduct(db, "Polo", "polo", nil, "10.00", 5)
	hat := seedProduct(db, "Hat", "hat", nil, "5.00", 5)
	userCart := seedCart(db, "sess-1", &user.ID, cartItemFor(polo, 2), cartItemFor(hat, 3))
	db.Model(&models.Product{}).Where("id = ?", hat.ID).Update("stock", 1)

	w := serve(router, authRequest("POST", "/api/orders", checkoutBody("PayPal"), token))
	expectStatus(t, w, http.StatusUnprocessableEntity)
	if msg := parseResponse(w)["error"]; msg != "Insufficient stock for Hat" {
		t.Errorf("unexpected error: %v", msg)
	}

	if got := stockOf(db, polo); got != 5 {
		t.Errorf("expected polo stock rolled back to 5, got %d", got)
	}
	var count int64
	db.Model(&models.Order{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no order, found %d", count)
	}
	db.Model(&models.Cart{}).Where("id = ?", userCart.ID).Count(&count)
	if count != 1 {
		t.Error("expected the cart to survive a failed checkout")
	}
}

func TestCreateOrderProductGone(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	user, token := seedTestUser(db, "gone@test.com", models.RoleCustomer)
	polo := seedProduct(db, "Polo", "polo", nil, "10.00", 5)
	seedCart(db, "sess-1", &user.ID, cartItemFor(polo, 1))
	db.Delete(&polo)

	w := serve(router, authRequest("POST", "/api/orders", checkoutBody("PayPal"), token))
	expectStatus(t, w, http.StatusNotFound)
}

func TestCreateOrderRequiresAuth(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())

	w := serve(router, jsonRequest("POST", "/api/orders", checkoutBody("PayPal")))
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestGetOrdersVisibility(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	alice, aliceToken := seedTestUser(db, "alice@test.com", models.RoleCustomer)
	bob, _ := seedTestUser(db, "bob@test.com", models.RoleCustomer)
	_, adminToken := seedTestUser(db, "admin@test.com", models.RoleAdmin)
	polo := seedProduct(db, "Polo", "polo", nil, "10.00", 5)
	seedOrder(db, alice, polo, 1, models.OrderStatusPending)
	bobOrder := seedOrder(db, bob, polo, 1, models.OrderStatusPending)

	w := serve(router, authRequest("GET", "/api/orders", nil, aliceToken))
	expectStatus(t, w, http.StatusOK)
	if orders := parseResponseArray(w); len(orders) != 1 {
		t.Errorf("expected alice to see 1 order, got %d", len(orders))
	}

	w = serve(router, authRequest("GET", "/api/orders", nil, adminToken))
	expectStatus(t, w, http.StatusOK)
	if orders := parseResponseArray(w); len(orders) != 2 {
		t.Errorf("expected admin to see 2 orders, got %d", len(orders))
	}

	w = serve(router, authRequest("GET", "/api/orders/"+bobOrder.ID.String(), nil, aliceToken))
	expectStatus(t, w, http.StatusNotFound)

	w = serve(router, authRequest("GET", "/api/orders/"+bobOrder.ID.String(), nil, adminToken))
	expectStatus(t, w, http.StatusOK)
	if items, _ := parseResponse(w)["items"].([]interface{}); len(items) != 1 {
		t.Errorf("expected order items preloaded, got %v", items)
	}
}

func TestGetOrdersEmpty(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	_, token := seedTestUser(db, "none@test.com", models.RoleCustomer)

	w := serve(router, authRequest("GET", "/api/orders", nil, token))
	expectStatus(t, w, http.StatusOK)
	if orders := parseResponseArray(w); len(orders) != 0 {
		t.Errorf("expected no orders, got %d", len(orders))
	}
}

func TestGetAdminOrdersFilterAndPaging(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	user, _ := seedTestUser(db, "buyer@test.com", models.RoleCustomer)
	_, adminToken := seedTestUser(db, "admin@test.com", models.RoleAdmin)
	polo := seedProduct(db, "Polo", "polo", nil, "10.00", 5)
	seedOrder(db, user, polo, 1, models.OrderStatusPending)
	seedOrder(db, user, polo, 1, models.OrderStatusPaid)
	seedOrder(db, user, polo, 1, models.OrderStatusPaid)

	w := serve(router, authRequest("GET", "/api/admin/orders?status=paid&limit=1", nil, adminToken))
	expectStatus(t, w, http.StatusOK)
	resp := parseResponse(w)
	if resp["total"] != float64(2) {
		t.Errorf("expected 2 paid orders, got %v", resp["total"])
	}
	if orders, _ := resp["orders"].([]interface{}); len(orders) != 1 {
		t.Errorf("expected page of 1, got %d", len(orders))
	}

	w = serve(router, authRequest("GET", "/api/admin/orders?status=lost", nil, adminToken))
	expectStatus(t, w, http.StatusBadRequest)
}

func TestUpdateOrderStatusFullChain(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	user, _ := seedTestUser(db, "buyer@test.com", models.RoleCustomer)
	_, adminToken := seedTestUser(db, "admin@test.com", models.RoleAdmin)
	polo := seedProduct(db, "Polo", "polo", nil, "10.00", 5)
	order := seedOrder(db, user, polo, 1, models.OrderStatusPending)
	url := "/api/admin/orders/" + order.ID.String() + "/status"

	for _, status := range []models.OrderStatus{models.OrderStatusPaid, models.OrderStatusShipped, models.OrderStatusDelivered} {
		w := serve(router, authRequest("PUT", url, map[string]string{"status": string(status)}, adminToken))
		expectStatus(t, w, http.StatusOK)
		if got := parseResponse(w)["status"]; got != string(status) {
			t.Fatalf("expected status %s, got %v", status, got)
		}
	}

	var stored models.Order
	db.Where("id = ?", order.ID).First(&stored)
	if stored.PaidAt == nil || stored.DeliveredAt == nil {
		t.Error("expected paid_at and delivered_at to be set")
	}

	w := serve(router, authRequest("PUT", url, map[string]string{"status": "cancelled"}, adminToken))
	expectStatus(t, w, http.StatusBadRequest)
}

func TestUpdateOrderStatusInvalidTransition(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	user, _ := seedTestUser(db, "buyer@test.com", models.RoleCustomer)
	_, adminToken := seedTestUser(db, "admin@test.com", models.RoleAdmin)
	polo := seedProduct(db, "Polo", "polo", nil, "10.00", 5)
	order := seedOrder(db, user, polo, 1, models.OrderStatusPending)

	w := serve(router, authRequest("PUT", "/api/admin/orders/"+order.ID.String()+"/status", map[string]string{"status": "delivered"}, adminToken))
	expectStatus(t, w, http.StatusBadRequest)
	if msg, _ := parseResponse(w)["error"].(string); !strings.Contains(msg, "Invalid status transition") {
		t.Errorf("unexpected error: %v", msg)
	}
}

func TestCancelOrderRestoresStock(t *testing.T) {
	db := freshDB()
	pages := newMemPages()
	router := setupOrderRouter(db, pages)
	user, _ := seedTestUser(db, "buyer@test.com", models.RoleCustomer)
	_, adminToken := seedTestUser(db, "admin@test.com", models.RoleAdmin)
	polo := seedProduct(db, "Polo", "polo", nil, "10.00", 2)
	order := seedOrder(db, user, polo, 3, models.OrderStatusPaid)

	w := serve(router, authRequest("PUT", "/api/admin/orders/"+order.ID.String()+"/status", map[string]string{"status": "cancelled"}, adminToken))
	expectStatus(t, w, http.StatusOK)

	if got := stockOf(db, polo); got != 5 {
		t.Errorf("expected stock restored to 5, got %d", got)
	}
	if !pages.wasRevalidated("/product/polo") {
		t.Error("expected product page to be revalidated")
	}
}

func TestUpdateOrderStatusErrors(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	_, adminToken := seedTestUser(db, "admin@test.com", models.RoleAdmin)
	_, customerToken := seedTestUser(db, "customer@test.com", models.RoleCustomer)

	missing := "/api/admin/orders/00000000-0000-0000-0000-000000000000/status"
	w := serve(router, authRequest("PUT", missing, map[string]string{"status": "paid"}, adminToken))
	expectStatus(t, w, http.StatusNotFound)

	w = serve(router, authRequest("PUT", missing, map[string]string{}, adminToken))
	expectStatus(t, w, http.StatusBadRequest)

	w = serve(router, authRequest("PUT", missing, map[string]string{"status": "paid"}, customerToken))
	expectStatus(t, w, http.StatusForbidden)
}

func TestGetOrderTransitions(t *testing.T) {
	db := freshDB()
	router := setupOrderRouter(db, newMemPages())
	_, adminToken := seedTestUser(db, "admin@test.com", models.RoleAdmin)

	w := serve(router, authRequest("GET", "/api/admin/orders/transitions", nil, adminToken))
	expectStatus(t, w, http.StatusOK)

	pending, _ := parseResponse(w)["pending"].([]interface{})
	if len(pending) != 2 {
		t.Errorf("expected 2 transitions from pending, got %v", pending)
	}
}
