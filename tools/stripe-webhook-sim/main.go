package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pointme/pointme/libs/runtime"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// intentStatus is the PaymentIntent status Stripe reports with each event.
var intentStatus = map[string]string{
	"payment_intent.succeeded":      "succeeded",
	"payment_intent.payment_failed": "requires_payment_method",
	"payment_intent.canceled":       "canceled",
}

// stripe-webhook-sim signs and posts payment events to a local booking
// service. -repeat sends the same event id again to show deduplication.
func main() {
	var (
		baseURL = flag.String("base-url", runtime.Getenv("BASE_URL", "http://localhost:8083"), "booking service base url")
		evtType = flag.String("type", runtime.Getenv("STRIPE_EVENT_TYPE", "payment_intent.succeeded"), "payment_intent.{succeeded,payment_failed,canceled} or charge.refunded")
		intent  = flag.String("intent", runtime.Getenv("PAYMENT_INTENT_ID", ""), "payment intent id returned by /api/v1/bookings/payment-intent")
		secret  = flag.String("secret", runtime.Getenv("STRIPE_WEBHOOK_SECRET", ""), "webhook signing secret (whsec_...)")
		eventID = flag.String("event-id", "", "event id, generated when empty")
		repeat  = flag.Int("repeat", 1, "number of deliveries of the same event")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" || strings.TrimSpace(*intent) == "" {
		fatal("both -secret (STRIPE_WEBHOOK_SECRET) and -intent (PAYMENT_INTENT_ID) are required")
	}
	now := time.Now().UTC()
	if *eventID == "" {
		*eventID = fmt.Sprintf("evt_sim_%d", now.UnixNano())
	}
	payload, err := eventJSON(*eventID, *evtType, *intent, now)
	if err != nil {
		fatal(err.Error())
	}

	url := strings.TrimRight(*baseURL, "/") + "/api/v1/payments/webhooks/stripe"
	client := &http.Client{Timeout: 10 * time.Second}
	for i := 1; i <= *repeat; i++ {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    *secret,
			Timestamp: time.Now(),
			Scheme:    "v1",
		})
		status, body, err := post(client, url, payload, signed.Header)
		if err != nil {
			fatal(err.Error())
		}
		fmt.Printf("delivery=%d event=%s status=%d body=%s\n", i, *eventID, status, body)
	}
}

func post(client *http.Client, url string, payload []byte, signature string) (int, string, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, strings.TrimSpace(string(body)), nil
}

func eventJSON(id, eventType, intentID string, at time.Time) ([]byte, error) {
	var object map[string]any
	if status, ok := intentStatus[eventType]; ok {
		object = map[string]any{"id": intentID, "object": "payment_intent", "status": status}
	} else if eventType == "charge.refunded" {
		object = map[string]any{"id": "ch_sim_" + intentID, "object": "charge", "refunded": true, "payment_intent": intentID}
	} else {
		return nil, fmt.Errorf("unsupported event type %q", eventType)
	}
	return json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"created":     at.Unix(),
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
