package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/pkg/enums"
	"github.com/angelmondragon/commerce-core/pkg/outbox"
)

// Actor is the authenticated caller behind an order mutation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// Ref converts the actor into the outbox actor reference.
func (a Actor) Ref() *outbox.ActorRef {
	if a.UserID == uuid.Nil && a.Role == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: a.UserID, Role: a.Role.String()}
}

// CanAccess reports whether the actor may read or act on order as a customer
// or as store staff.
func (a Actor) CanAccess(customerID *uuid.UUID) bool {
	if a.Role.IsStaff() || a.Role == enums.RoleSystem {
		return true
	}
	return customerID != nil && *customerID == a.UserID
}

// Change describes a requested move on either state axis. Empty fields keep the
// current value.
type Change struct {
	Status        enums.OrderStatus
	PaymentStatus enums.PaymentStatus
	Reason        string
}
