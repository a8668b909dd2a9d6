package handlers

import (
	"net/http"
	"testing"

	"github.com/pointme/pointme/services/booking-service/internal/availability"
	"github.com/pointme/pointme/services/booking-service/internal/booking"
	"github.com/pointme/pointme/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

func TestPublicBusinessesListsActiveByCategory(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.businesses["biz-gym"] = model.Business{
		ID: "biz-gym", OwnerID: "owner-3", Name: "Iron Room", Category: model.CategoryFitness,
		Timezone: "UTC", Status: model.BusinessActive, Hours: availability.ClosedWeek(),
	}
	env.catalog.businesses["biz-pending"] = model.Business{
		ID: "biz-pending", OwnerID: "owner-4", Name: "Soon", Category: model.CategoryBeauty,
		Timezone: "UTC", Status: model.BusinessPending, Hours: availability.ClosedWeek(),
	}

	rr := env.do(t, http.MethodGet, "/api/v1/public/businesses", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rr.Code, rr.Body.String())
	}
	all := decodeBody[map[string][]publicBusiness](t, rr)["businesses"]
	if len(all) != 2 {
		t.Fatalf("listed %d businesses, want the 2 active ones: %+v", len(all), all)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/public/businesses?category=beauty", "", nil)
	beauty := decodeBody[map[string][]publicBusiness](t, rr)["businesses"]
	if len(beauty) != 1 || beauty[0].ID != bizID {
		t.Fatalf("beauty listing %+v", beauty)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/public/businesses?category=food", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown category: status %d", rr.Code)
	}
}

func TestPublicServicesShowsOfferedServicesWithRating(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.services["svc-off"] = model.Service{
		ID: "svc-off", BusinessID: bizID, Name: "Perm", DurationMinutes: 90,
		Price: decimal.RequireFromString("80.00"), IsAvailable: false,
	}
	for _, rating := range []int{5, 3} {
		rv, err := booking.NewReview(bizID, customerID, "", rating, "")
		if err != nil {
			t.Fatalf("review: %v", err)
		}
		env.reviews.reviews = append(env.reviews.reviews, rv)
	}

	rr := env.do(t, http.MethodGet, "/api/v1/public/businesses/services?business_id="+bizID, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[publicServicesResponse](t, rr)
	if len(resp.Services) != 1 || resp.Services[0].ID != svcID {
		t.Fatalf("services %+v", resp.Services)
	}
	if resp.AverageRating != "4.0" || resp.ReviewCount != 2 {
		t.Fatalf("rating %s over %d reviews", resp.AverageRating, resp.ReviewCount)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/public/businesses/services", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing business_id: status %d", rr.Code)
	}
	env.catalog.businesses[bizID] = func() model.Business {
		b := env.catalog.businesses[bizID]
		b.Status = model.BusinessInactive
		return b
	}()
	rr = env.do(t, http.MethodGet, "/api/v1/public/businesses/services?business_id="+bizID, "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("inactive business: status %d", rr.Code)
	}
}
