package users

// LoginRequest authenticates with email and password.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is returned by login and refresh. Refresh is empty when the
// server does not rotate refresh tokens.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type RegisterRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=20"`
}

// ProfileUpdate changes only the non-nil fields.
type ProfileUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	DateOfBirth *string `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type changePasswordRequest struct {
	OldPassword  string `json:"old_password" validate:"required"`
	NewPassword  string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
	NewPassword2 string `json:"new_password2" validate:"required,eqfield=NewPassword"`
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

// Address types accepted by the server.
const (
	AddressShipping = "shipping"
	AddressBilling  = "billing"
)

// Address is a saved shipping or billing address.
type Address struct {
	ID           int64  `json:"id"`
	AddressType  string `json:"address_type"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	IsDefault    bool   `json:"is_default"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// AddressInput creates an address.
type AddressInput struct {
	AddressType  string `json:"address_type" validate:"required,oneof=shipping billing"`
	FullName     string `json:"full_name" validate:"required"`
	Phone        string `json:"phone" validate:"required,max=20"`
	AddressLine1 string `json:"address_line1" validate:"required"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	PostalCode   string `json:"postal_code" validate:"required"`
	Country      string `json:"country" validate:"required"`
	IsDefault    bool   `json:"is_default"`
}

// AddressUpdate changes only the non-nil fields.
type AddressUpdate struct {
	AddressType  *string `json:"address_type,omitempty" validate:"omitempty,oneof=shipping billing"`
	FullName     *string `json:"full_name,omitempty"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	AddressLine1 *string `json:"address_line1,omitempty"`
	AddressLine2 *string `json:"address_line2,omitempty"`
	City         *string `json:"city,omitempty"`
	State        *string `json:"state,omitempty"`
	PostalCode   *string `json:"postal_code,omitempty"`
	Country      *string `json:"country,omitempty"`
	IsDefault    *bool   `json:"is_default,omitempty"`
}
