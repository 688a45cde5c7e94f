package orders

// Payment methods accepted at checkout.
const (
	PaymentCreditCard = "credit_card"
	PaymentDebitCard  = "debit_card"
	PaymentUPI        = "upi"
	PaymentWallet     = "wallet"
	PaymentCOD        = "cod"
)

// PaymentMethods lists every accepted payment method.
var PaymentMethods = []string{PaymentCreditCard, PaymentDebitCard, PaymentUPI, PaymentWallet, PaymentCOD}

// AddItemRequest adds a product, or one of its variants, to the cart.
type AddItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VariantID *int64 `json:"variant_id,omitempty" validate:"omitempty,gt=0"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

// CreateOrderRequest checks out the current cart.
type CreateOrderRequest struct {
	ShippingAddressID int64  `json:"shipping_address_id" validate:"required,gt=0"`
	BillingAddressID  int64  `json:"billing_address_id" validate:"required,gt=0"`
	PaymentMethod     string `json:"payment_method" validate:"required,oneof=credit_card debit_card upi wallet cod"`
	Notes             string `json:"notes,omitempty"`
}

type OrderItem struct {
	ID          int64             `json:"id"`
	ProductName string            `json:"product_name"`
	VariantInfo map[string]string `json:"variant_info"`
	SKU         string            `json:"sku"`
	Quantity    int               `json:"quantity"`
	UnitPrice   string            `json:"unit_price"`
	TotalPrice  string            `json:"total_price"`
}

// Order is a placed order. Money fields are decimal strings.
type Order struct {
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
	Items                []OrderItem `json:"items"`
	CreatedAt            string      `json:"created_at"`
}
