package fakeapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	shippingCents = 500
	taxPercent    = 18
)

type cartLine struct {
	id        int64
	productID int64
	variantID int64
	quantity  int
	createdAt time.Time
}

type fakeCart struct {
	id        int64
	lines     []*cartLine
	createdAt time.Time
	updatedAt time.Time
}

type cartItemJSON struct {
	ID        int64        `json:"id"`
	Product   productJSON  `json:"product"`
	Variant   *variantJSON `json:"variant"`
	Quantity  int          `json:"quantity"`
	CreatedAt string       `json:"created_at"`
}

type cartJSON struct {
	ID        int64          `json:"id"`
	Items     []cartItemJSON `json:"items"`
	Total     string         `json:"total"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type orderItem struct {
	ID          int64             `json:"id"`
	ProductName string            `json:"product_name"`
	VariantInfo map[string]string `json:"variant_info"`
	SKU         string            `json:"sku"`
	Quantity    int               `json:"quantity"`
	UnitPrice   string            `json:"unit_price"`
	TotalPrice  string            `json:"total_price"`
}

type order struct {
	ID                   int64       `json:"id"`
	OrderNumber          string      `json:"order_number"`
	Status               string      `json:"status"`
	PaymentStatus        string      `json:"payment_status"`
	Subtotal             string      `json:"subtotal"`
	ShippingCost         string      `json:"shipping_cost"`
	Tax                  string      `json:"tax"`
	Discount             string      `json:"discount"`
	Total                string      `json:"total"`
	ShippingFullName     string      `json:"shipping_full_name"`
	ShippingPhone        string      `json:"shipping_phone"`
	ShippingAddressLine1 string      `json:"shipping_address_line1"`
	ShippingAddressLine2 string      `json:"shipping_address_line2"`
	ShippingCity         string      `json:"shipping_city"`
	ShippingState        string      `json:"shipping_state"`
	ShippingPostalCode   string      `json:"shipping_postal_code"`
	ShippingCountry      string      `json:"shipping_country"`
	PaymentMethod        *string     `json:"payment_method"`
	Items                []orderItem `json:"items"`
	CreatedAt            string      `json:"created_at"`
}

var paymentMethods = map[string]bool{
	"credit_card": true, "debit_card": true, "upi": true, "wallet": true, "cod": true,
}

func (s *Server) cartLocked(userID int64) *fakeCart {
	c, ok := s.carts[userID]
	if !ok {
		now := s.now()
		c = &fakeCart{id: s.newIDLocked(), createdAt: now, updatedAt: now}
		s.carts[userID] = c
	}
	return c
}

func (s *Server) lineJSONLocked(line *cartLine) (cartItemJSON, int64) {
	p := s.findProductLocked(line.productID)
	item := cartItemJSON{
		ID:        line.id,
		Product:   p.toJSON(),
		Quantity:  line.quantity,
		CreatedAt: line.createdAt.UTC().Format(time.RFC3339),
	}
	price := p.baseCents
	if line.variantID != 0 {
		_, v := s.findVariantLocked(line.variantID)
		vj := v.toJSON(p)
		item.Variant = &vj
		price = v.effectiveCents(p)
	}
	return item, price
}

func (s *Server) cartJSONLocked(c *fakeCart) cartJSON {
	out := cartJSON{
		ID:        c.id,
		Items:     []cartItemJSON{},
		CreatedAt: c.createdAt.UTC().Format(time.RFC3339),
		UpdatedAt: c.updatedAt.UTC().Format(time.RFC3339),
	}
	var total int64
	for _, line := range c.lines {
		item, price := s.lineJSONLocked(line)
		out.Items = append(out.Items, item)
		total += price * int64(line.quantity)
	}
	out.Total = money(total)
	return out
}

// CartQuantity returns the total item quantity in a user's cart.
func (s *Server) CartQuantity(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	if c, ok := s.carts[userID]; ok {
		for _, line := range c.lines {
			n += line.quantity
		}
	}
	return n
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.cartJSONLocked(s.cartLocked(acct.user.ID)))
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request, acct *account) {
	var req struct {
		ProductID *int64 `json:"product_id"`
		VariantID *int64 `json:"variant_id"`
		Quantity  *int   `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	fields := map[string][]string{}
	if req.ProductID == nil {
		fields["product_id"] = []string{"This field is required."}
	}
	if req.Quantity == nil {
		fields["quantity"] = []string{"This field is required."}
	} else if *req.Quantity < 1 {
		fields["quantity"] = []string{"Ensure this value is greater than or equal to 1."}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findProductLocked(*req.ProductID)
	if p == nil {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	var variantID int64
	if req.VariantID != nil && *req.VariantID != 0 {
		vp, v := s.findVariantLocked(*req.VariantID)
		if v == nil || vp != p {
			writeError(w, http.StatusNotFound, "Variant not found")
			return
		}
		if v.stock < *req.Quantity {
			writeError(w, http.StatusBadRequest, "Insufficient stock")
			return
		}
		variantID = v.id
	}

	c := s.cartLocked(acct.user.ID)
	c.updatedAt = s.now()
	for _, line := range c.lines {
		if line.productID == p.id && line.variantID == variantID {
			line.quantity += *req.Quantity
			item, _ := s.lineJSONLocked(line)
			writeJSON(w, http.StatusCreated, item)
			return
		}
	}
	line := &cartLine{
		id:        s.newIDLocked(),
		productID: p.id,
		variantID: variantID,
		quantity:  *req.Quantity,
		createdAt: s.now(),
	}
	c.lines = append(c.lines, line)
	item, _ := s.lineJSONLocked(line)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) findLineLocked(userID int64, r *http.Request) (*fakeCart, int, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return nil, 0, false
	}
	c := s.cartLocked(userID)
	for i, line := range c.lines {
		if line.id == id {
			return c, i, true
		}
	}
	return nil, 0, false
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request, acct *account) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, i, ok := s.findLineLocked(acct.user.ID, r)
	if !ok {
		writeError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	line := c.lines[i]
	if req.Quantity > 0 {
		if line.variantID != 0 {
			if _, v := s.findVariantLocked(line.variantID); v.stock < req.Quantity {
				writeError(w, http.StatusBadRequest, "Insufficient stock")
				return
			}
		}
		line.quantity = req.Quantity
		c.updatedAt = s.now()
	}
	item, _ := s.lineJSONLocked(line)
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteCartItem(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, i, ok := s.findLineLocked(acct.user.ID, r)
	if !ok {
		writeError(w, http.StatusNotFound, "Cart item not found")
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.updatedAt = s.now()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, acct *account) {
	var req struct {
		ShippingAddressID *int64 `json:"shipping_address_id"`
		BillingAddressID  *int64 `json:"billing_address_id"`
		PaymentMethod     string `json:"payment_method"`
		Notes             string `json:"notes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	fields := map[string][]string{}
	if req.ShippingAddressID == nil {
		fields["shipping_address_id"] = []string{"This field is required."}
	}
	if req.BillingAddressID == nil {
		fields["billing_address_id"] = []string{"This field is required."}
	}
	if !paymentMethods[req.PaymentMethod] {
		fields["payment_method"] = []string{fmt.Sprintf("%q is not a valid choice.", req.PaymentMethod)}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(acct.user.ID)
	if len(c.lines) == 0 {
		writeError(w, http.StatusBadRequest, "Cart is empty")
		return
	}
	shipping := s.findAddressLocked(acct.user.ID, *req.ShippingAddressID)
	billing := s.findAddressLocked(acct.user.ID, *req.BillingAddressID)
	if shipping == nil || billing == nil {
		writeError(w, http.StatusNotFound, "Address not found")
		return
	}

	var subtotal int64
	items := make([]orderItem, 0, len(c.lines))
	for _, line := range c.lines {
		p := s.findProductLocked(line.productID)
		price := p.baseCents
		sku := fmt.Sprintf("PROD-%d", p.id)
		info := map[string]string{}
		if line.variantID != 0 {
			_, v := s.findVariantLocked(line.variantID)
			if v.stock < line.quantity {
				writeError(w, http.StatusBadRequest, "Insufficient stock for "+p.name)
				return
			}
			price = v.effectiveCents(p)
			sku = v.sku
			for _, a := range v.attributes {
				info[a.AttributeName] = a.Value
			}
		}
		lineTotal := price * int64(line.quantity)
		subtotal += lineTotal
		items = append(items, orderItem{
			ID:          s.newIDLocked(),
			ProductName: p.name,
			VariantInfo: info,
			SKU:         sku,
			Quantity:    line.quantity,
			UnitPrice:   money(price),
			TotalPrice:  money(lineTotal),
		})
	}

	// Stock is only taken once every line has been checked
	for _, line := range c.lines {
		if line.variantID != 0 {
			_, v := s.findVariantLocked(line.variantID)
			v.stock -= line.quantity
		}
	}

	tax := (subtotal*taxPercent + 50) / 100
	method := req.PaymentMethod
	o := &order{
		ID:                   s.newIDLocked(),
		OrderNumber:          fmt.Sprintf("ORD-%s", strings.ToUpper(uuid.NewString()[:8])),
		Status:               "pending",
		PaymentStatus:        "pending",
		Subtotal:             money(subtotal),
		ShippingCost:         money(shippingCents),
		Tax:                  money(tax),
		Discount:             money(0),
		Total:                money(subtotal + shippingCents + tax),
		ShippingFullName:     shipping.FullName,
		ShippingPhone:        shipping.Phone,
		ShippingAddressLine1: shipping.AddressLine1,
		ShippingAddressLine2: shipping.AddressLine2,
		ShippingCity:         shipping.City,
		ShippingState:        shipping.State,
		ShippingPostalCode:   shipping.PostalCode,
		ShippingCountry:      shipping.Country,
		PaymentMethod:        &method,
		Items:                items,
		CreatedAt:            s.now().UTC().Format(time.RFC3339),
	}
	s.orders[acct.user.ID] = append(s.orders[acct.user.ID], o)
	c.lines = nil
	c.updatedAt = s.now()

	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.orders[acct.user.ID]
	if list == nil {
		list = []*order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(list),
		"next":     nil,
		"previous": nil,
		"results":  list,
	})
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders[acct.user.ID] {
		if o.OrderNumber == r.PathValue("number") {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "No Order matches the given query.")
}
