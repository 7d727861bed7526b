package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"
)

func signHeader(secret string, ts time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"charge.succeeded"}`)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if !verifyWebhookSignature(payload, signHeader(secret, now, payload), secret, now) {
		t.Error("expected a fresh valid signature to verify")
	}

	if verifyWebhookSignature(payload, signHeader("whsec_other", now, payload), secret, now) {
		t.Error("expected signature under the wrong secret to fail")
	}

	tampered := append([]byte{}, payload...)
	tampered[0] = '['
	if verifyWebhookSignature(tampered, signHeader(secret, now, payload), secret, now) {
		t.Error("expected tampered payload to fail")
	}

	stale := now.Add(-signatureTolerance - time.Minute)
	if verifyWebhookSignature(payload, signHeader(secret, stale, payload), secret, now) {
		t.Error("expected a stale timestamp to fail")
	}

	future := now.Add(signatureTolerance + time.Minute)
	if verifyWebhookSignature(payload, signHeader(secret, future, payload), secret, now) {
		t.Error("expected a future timestamp to fail")
	}

	if verifyWebhookSignature(payload, "", secret, now) {
		t.Error("expected missing header to fail")
	}
	if verifyWebhookSignature(payload, signHeader(secret, now, payload), "", now) {
		t.Error("expected missing secret to fail")
	}
	if verifyWebhookSignature(payload, "t=garbage,v1=00", secret, now) {
		t.Error("expected unparseable timestamp to fail")
	}
	if verifyWebhookSignature(payload, fmt.Sprintf("t=%d,v1=zz-not-hex", now.Unix()), secret, now) {
		t.Error("expected non-hex signature to fail")
	}
}

func TestVerifyWebhookSignature_AnyV1EntryMatches(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{}`)
	now := time.Now()

	valid := signHeader(secret, now, payload)
	wrong := hex.EncodeToString(make([]byte, 32))

	// Providers send multiple v1 entries during secret rotation; a match
	// on any of them verifies.
	if !verifyWebhookSignature(payload, valid+",v1="+wrong, secret, now) {
		t.Error("expected first v1 entry to verify")
	}

	_, sig, _ := strings.Cut(valid, ",v1=")
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", now.Unix(), wrong, sig)
	if !verifyWebhookSignature(payload, header, secret, now) {
		t.Error("expected second v1 entry to verify")
	}
}
