package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pixelating-community/web-sub001/internal/perspectives/types"
)

const (
	// signatureHeader is the provider's signed-payload header:
	// t=<unix seconds>,v1=<hex hmac>[,v1=...]
	signatureHeader = "Stripe-Signature"

	// signatureTolerance bounds how stale a delivery's timestamp may be.
	signatureTolerance = 5 * time.Minute

	maxWebhookBody = 64 * 1024
)

// handleWebhook verifies the provider signature over the raw body before
// any parsing, then hands the event to the state machine.  Once the
// signature has passed, the delivery is acknowledged no matter what the
// ledger does — redelivery is the provider's retry mechanism, and an error
// response here would only cause a redelivery storm.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "could not read request body")
		return
	}

	if !verifyWebhookSignature(body, r.Header.Get(signatureHeader), s.webhookSecret, time.Now()) {
		writeError(w, http.StatusBadRequest, "bad_signature", "signature verification failed")
		return
	}

	var ev types.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON payload")
		return
	}

	s.webhooks.Handle(r.Context(), ev)

	writeJSON(w, http.StatusOK, struct {
		Received bool `json:"received"`
	}{true})
}

// verifyWebhookSignature checks a t=...,v1=... signature header against
// the raw payload.  The signed string is "<t>.<payload>"; any v1 entry may
// match.  Comparison is constant time, and timestamps outside the
// tolerance window are rejected to blunt replays.
func verifyWebhookSignature(payload []byte, header, secret string, now time.Time) bool {
	if secret == "" || header == "" {
		return false
	}

	var ts int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return false
			}
			ts = parsed
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if ts == 0 || len(candidates) == 0 {
		return false
	}

	age := now.Unix() - ts
	if age < 0 {
		age = -age
	}
	if age > int64(signatureTolerance.Seconds()) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	want := mac.Sum(nil)

	for _, candidate := range candidates {
		got, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if len(got) == len(want) && hmac.Equal(got, want) {
			return true
		}
	}
	return false
}
