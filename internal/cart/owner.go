package cart

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

// Owner identifies whose cart is addressed: a signed-in customer or a guest
// session token. Exactly one of the two variants exists.
type Owner interface {
	scope(db *gorm.DB) *gorm.DB
	apply(cart *cartRow)
	validate() error
	String() string
}

// CustomerOwner owns the cart of a signed-in customer.
type CustomerOwner struct {
	CustomerID uuid.UUID
}

// GuestOwner owns the cart of an anonymous session.
type GuestOwner struct {
	Token string
}

func (o CustomerOwner) scope(db *gorm.DB) *gorm.DB {
	return db.Where("customer_id = ?", o.CustomerID)
}

func (o CustomerOwner) apply(cart *cartRow) {
	id := o.CustomerID
	cart.CustomerID = &id
}

func (o CustomerOwner) validate() error {
	if o.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	return nil
}

func (o CustomerOwner) String() string { return "customer:" + o.CustomerID.String() }

func (o GuestOwner) scope(db *gorm.DB) *gorm.DB {
	return db.Where("guest_token = ?", strings.TrimSpace(o.Token))
}

func (o GuestOwner) apply(cart *cartRow) {
	token := strings.TrimSpace(o.Token)
	cart.GuestToken = &token
}

func (o GuestOwner) validate() error {
	if strings.TrimSpace(o.Token) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "guest token required")
	}
	return nil
}

func (o GuestOwner) String() string { return "guest:" + strings.TrimSpace(o.Token) }
