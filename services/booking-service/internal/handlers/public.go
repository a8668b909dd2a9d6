package handlers

import (
	"net/http"
	"strings"

	"github.com/pointme/pointme/libs/httpx"
	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/catalog"
)

type slotsResponse struct {
	BusinessID string                    `json:"business_id"`
	ServiceID  string                    `json:"service_id"`
	Date       availability.CivilDate    `json:"date"`
	Timezone   string                    `json:"timezone"`
	Selectable bool                      `json:"selectable"`
	Slots      []availability.SlotStatus `json:"slots"`
}

type selectableResponse struct {
	Date       availability.CivilDate `json:"date"`
	Selectable bool                   `json:"selectable"`
	Reason     string                 `json:"reason,omitempty"`
}

func requireQuery(r *http.Request, names ...string) (map[string]string, []string) {
	values := make(map[string]string, len(names))
	var missing []string
	for _, n := range names {
		v := strings.TrimSpace(r.URL.Query().Get(n))
		if v == "" {
			missing = append(missing, n)
		}
		values[n] = v
	}
	return values, missing
}

// Slots lists the start times of a service on a date with their availability.
// Past, closed and out-of-horizon dates yield an empty, non-selectable list.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q, missing := requireQuery(r, "business_id", "service_id", "date")
	if len(missing) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "missing query parameters", "missing_field", missing)
		return
	}
	date, err := availability.ParseDate(q["date"])
	if err != nil {
		h.writeError(w, r, "slots", err)
		return
	}

	ctx := r.Context()
	snap, err := h.Catalog.Snapshot(ctx, q["business_id"], q["service_id"])
	if err != nil {
		h.writeError(w, r, "slots", err)
		return
	}
	if !snap.Business.AcceptsBookings() || !snap.Service.IsAvailable {
		h.writeError(w, r, "slots", catalog.ErrNotFound)
		return
	}
	loc, err := snap.Business.Location()
	if err != nil {
		h.writeError(w, r, "slots", err)
		return
	}

	resp := slotsResponse{
		BusinessID: snap.Business.ID,
		ServiceID:  snap.Service.ID,
		Date:       date,
		Timezone:   loc.String(),
		Slots:      []availability.SlotStatus{},
	}
	today := availability.TodayIn(h.Clock, loc)
	if !availability.IsDateSelectable(snap.Business.Hours, date, today) ||
		availability.CheckHorizon(date, today, h.settings(ctx).MaxAdvanceBookingDays) != nil {
		httpx.WriteJSON(w, http.StatusOK, resp)
		return
	}

	slots := availability.ComputeSlots(snap.Business.Hours, snap.Service, date)
	booked, err := h.Bookings.BookedIntervals(ctx, snap.Business.ID, snap.Service.ID, date)
	if err != nil {
		h.writeError(w, r, "slots", err)
		return
	}
	resp.Selectable = true
	resp.Slots = availability.SlotsAvailability(date, slots, snap.Service.Duration(), loc, booked, h.Clock.Now())
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// SelectableDate backs the date picker. It reports why a date is disabled.
func (h *Handler) SelectableDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q, missing := requireQuery(r, "business_id", "date")
	if len(missing) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "missing query parameters", "missing_field", missing)
		return
	}
	date, err := availability.ParseDate(q["date"])
	if err != nil {
		h.writeError(w, r, "selectable date", err)
		return
	}
	biz, err := h.Catalog.Business(r.Context(), q["business_id"])
	if err != nil {
		h.writeError(w, r, "selectable date", err)
		return
	}
	if !biz.AcceptsBookings() {
		h.writeError(w, r, "selectable date", catalog.ErrNotFound)
		return
	}
	loc, err := biz.Location()
	if err != nil {
		h.writeError(w, r, "selectable date", err)
		return
	}

	today := availability.TodayIn(h.Clock, loc)
	resp := selectableResponse{Date: date, Selectable: true}
	switch {
	case date.Before(today):
		resp.Selectable, resp.Reason = false, "past_date"
	case !availability.IsDateSelectable(biz.Hours, date, today):
		resp.Selectable, resp.Reason = false, "closed"
	case availability.CheckHorizon(date, today, h.settings(r.Context()).MaxAdvanceBookingDays) != nil:
		resp.Selectable, resp.Reason = false, "beyond_horizon"
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
