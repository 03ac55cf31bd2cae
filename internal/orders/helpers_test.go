package orders_test

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/internal/cart"
	"github.com/angelmondragon/commerce-core/internal/checkout"
	"github.com/angelmondragon/commerce-core/internal/testkit"
	"github.com/angelmondragon/commerce-core/pkg/enums"
)

func testkitOwner(customerID uuid.UUID) cart.Owner {
	return cart.CustomerOwner{CustomerID: customerID}
}

func memberCheckout(customerID uuid.UUID) checkout.CheckoutInput {
	return checkout.CheckoutInput{
		Identity:      checkout.Member{CustomerID: customerID},
		CartOwner:     testkitOwner(customerID),
		Shipping:      testkit.Shipping(),
		PaymentMethod: enums.PaymentMethodCard,
	}
}
