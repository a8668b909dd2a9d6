package handlers

import (
	"net/http"

	"github.com/pointme/pointme/libs/auth"
	"github.com/pointme/pointme/libs/httpx"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
)

const (
	roleCustomer = string(booking.RoleCustomer)
	roleBusiness = string(booking.RoleBusiness)
	roleAdmin    = string(booking.RoleAdmin)
)

// Register mounts the API on mux. Public and webhook routes carry no bearer
// token; everything else is gated by role.
func (h *Handler) Register(mux *http.ServeMux, v *auth.Verifier) {
	member := v.Require(roleCustomer, roleBusiness, roleAdmin)
	customer := v.Require(roleCustomer)
	owner := v.Require(roleBusiness)
	admin := v.Require(roleAdmin)

	mux.HandleFunc("/api/v1/public/businesses", h.PublicBusinesses)
	mux.HandleFunc("/api/v1/public/businesses/services", h.PublicServices)
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/dates/selectable", h.SelectableDate)
	mux.HandleFunc("/api/v1/payments/webhooks/stripe", h.StripeWebhook)

	mux.Handle("/api/v1/bookings", byMethod(map[string]http.Handler{
		http.MethodPost: customer(http.HandlerFunc(h.CreateBooking)),
		http.MethodGet:  member(http.HandlerFunc(h.ListBookings)),
	}))
	mux.Handle("/api/v1/bookings/status", member(http.HandlerFunc(h.UpdateBookingStatus)))
	mux.Handle("/api/v1/bookings/payment-intent", customer(http.HandlerFunc(h.CreatePaymentIntent)))

	mux.Handle("/api/v1/business", owner(http.HandlerFunc(h.Business)))
	mux.Handle("/api/v1/business/hours", owner(http.HandlerFunc(h.Hours)))
	mux.Handle("/api/v1/business/services", owner(http.HandlerFunc(h.Services)))

	mux.Handle("/api/v1/reviews", byMethod(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(h.ListReviews),
		http.MethodPost: customer(http.HandlerFunc(h.SubmitReview)),
	}))

	mux.Handle("/api/v1/admin/businesses/status", admin(http.HandlerFunc(h.AdminBusinessStatus)))
	mux.Handle("/api/v1/admin/settings", admin(http.HandlerFunc(h.AdminSettings)))
}

func byMethod(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next, ok := routes[r.Method]
		if !ok {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
