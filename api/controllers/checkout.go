package controllers

import (
	"net/http"

	"github.com/angelmondragon/commerce-core/api/responses"
	"github.com/angelmondragon/commerce-core/api/validators"
	checkoutsvc "github.com/angelmondragon/commerce-core/internal/checkout"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
)

// Checkout converts the shopper's cart into an order with its first payment
// attempt. Signed-in customers check out as members; guest sessions must send
// contact details.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		tenantID, owner, err := cartScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, err := userFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, _ := enums.ParsePaymentMethod(payload.PaymentMethod)

		var guest *checkoutsvc.Guest
		if payload.Guest != nil {
			guest = &checkoutsvc.Guest{
				Email: payload.Guest.Email,
				Name:  payload.Guest.Name,
				Phone: payload.Guest.Phone,
			}
		}
		identity, err := checkoutsvc.NewIdentity(customerID, guest)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), tenantID, checkoutsvc.CheckoutInput{
			Identity:  identity,
			CartOwner: owner,
			Shipping: checkoutsvc.Shipping{
				Name:       payload.Shipping.Name,
				Line1:      payload.Shipping.Line1,
				Line2:      payload.Shipping.Line2,
				City:       payload.Shipping.City,
				Region:     payload.Shipping.Region,
				PostalCode: payload.Shipping.PostalCode,
				Country:    payload.Shipping.Country,
			},
			PaymentMethod: method,
			PromoCode:     payload.PromoCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:        newOrderResponse(result.Order),
			Payment:      newPaymentResponse(result.Payment),
			Instructions: result.Instructions,
		})
	}
}

type checkoutRequest struct {
	Guest         *guestRequest   `json:"guest,omitempty"`
	Shipping      shippingRequest `json:"shipping"`
	PaymentMethod string          `json:"payment_method" validate:"notblank,max=32"`
	PromoCode     string          `json:"promo_code,omitempty" validate:"max=64"`
}

type guestRequest struct {
	Email string  `json:"email"`
	Name  string  `json:"name"`
	Phone *string `json:"phone,omitempty"`
}

type shippingRequest struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     *string `json:"region,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

type checkoutResponse struct {
	Order        *orderResponse   `json:"order"`
	Payment      *paymentResponse `json:"payment"`
	Instructions string           `json:"instructions"`
}
