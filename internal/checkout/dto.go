package checkout

import (
	"net/mail"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/internal/cart"
	"github.com/angelmondragon/commerce-core/pkg/db/models"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

// Identity is who places the order: a Member or a Guest, never both.
type Identity interface {
	apply(order *models.Order)
	validate() error
}

// Member is a signed-in customer.
type Member struct {
	CustomerID uuid.UUID
}

// Guest is an anonymous shopper identified by contact details.
type Guest struct {
	Email string
	Name  string
	Phone *string
}

func (m Member) apply(order *models.Order) {
	id := m.CustomerID
	order.CustomerID = &id
}

func (m Member) validate() error {
	if m.CustomerID == uuid.Nil {
		return pkgerrors.InvalidMode("customer id required for member checkout")
	}
	return nil
}

func (g Guest) apply(order *models.Order) {
	email := strings.ToLower(strings.TrimSpace(g.Email))
	name := strings.TrimSpace(g.Name)
	order.GuestEmail = &email
	order.GuestName = &name
	order.GuestPhone = trimmed(g.Phone)
}

func (g Guest) validate() error {
	if strings.TrimSpace(g.Email) == "" {
		return pkgerrors.InvalidMode("guest email required for guest checkout")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(g.Email)); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest email is invalid").WithDetails(map[string]any{"field": "email"})
	}
	if strings.TrimSpace(g.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest name required").WithDetails(map[string]any{"field": "name"})
	}
	return nil
}

// NewIdentity resolves the checkout identity from optional request parts.
// Neither or both present is InvalidMode.
func NewIdentity(customerID *uuid.UUID, guest *Guest) (Identity, error) {
	switch {
	case customerID != nil && guest != nil:
		return nil, pkgerrors.InvalidMode("checkout accepts either a member or a guest, not both")
	case customerID != nil:
		return Member{CustomerID: *customerID}, nil
	case guest != nil:
		return *guest, nil
	}
	return nil, pkgerrors.InvalidMode("checkout requires a member or guest identity")
}

// Shipping is the destination captured on the order.
type Shipping struct {
	Name       string
	Line1      string
	Line2      *string
	City       string
	Region     *string
	PostalCode string
	Country    string
}

func (s Shipping) validate() error {
	missing := []string{}
	for field, value := range map[string]string{
		"name":        s.Name,
		"line1":       s.Line1,
		"city":        s.City,
		"postal_code": s.PostalCode,
		"country":     s.Country,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address incomplete").WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func (s Shipping) apply(order *models.Order) {
	order.ShippingName = strings.TrimSpace(s.Name)
	order.ShippingLine1 = strings.TrimSpace(s.Line1)
	order.ShippingLine2 = trimmed(s.Line2)
	order.ShippingCity = strings.TrimSpace(s.City)
	order.ShippingRegion = trimmed(s.Region)
	order.ShippingPostalCode = strings.TrimSpace(s.PostalCode)
	order.ShippingCountry = strings.ToUpper(strings.TrimSpace(s.Country))
}

// CheckoutInput captures everything one checkout needs.
type CheckoutInput struct {
	Identity      Identity
	CartOwner     cart.Owner
	Shipping      Shipping
	PaymentMethod enums.PaymentMethod
	PromoCode     string
}

// Result is the created order with its first payment attempt.
type Result struct {
	Order        *models.Order   `json:"order"`
	Payment      *models.Payment `json:"payment"`
	Instructions string          `json:"instructions"`
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
