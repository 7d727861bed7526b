package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pixelating-community/web-sub001/internal/perspectives/token"
)

const testSecret = "test-signing-secret"

// ── Access tokens ────────────────────────────────────────────────────────────

func TestAccessToken_RoundTrip(t *testing.T) {
	c := token.NewCodec(testSecret)

	tok := c.CreateAccessToken("persp-001")
	if tok == "" {
		t.Fatal("expected a token, got empty string")
	}
	if !strings.HasPrefix(tok, "v1.") {
		t.Errorf("expected v1 prefix, got %q", tok)
	}
	if !c.VerifyAccessToken(tok, "persp-001") {
		t.Error("expected freshly issued token to verify")
	}
}

func TestAccessToken_WrongSubjectRejected(t *testing.T) {
	c := token.NewCodec(testSecret)

	tok := c.CreateAccessToken("persp-001")
	if c.VerifyAccessToken(tok, "persp-002") {
		t.Error("token for persp-001 must not verify for persp-002")
	}
}

func TestAccessToken_ExpiresAfterMaxAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := token.NewCodecWithClock(testSecret, clock)

	tok := c.CreateAccessToken("persp-001")
	if !c.VerifyAccessToken(tok, "persp-001") {
		t.Fatal("expected token to verify at issuance")
	}

	now = now.Add(token.MaxAge - time.Second)
	if !c.VerifyAccessToken(tok, "persp-001") {
		t.Error("expected token to verify just inside max age")
	}

	now = now.Add(2 * time.Second)
	if c.VerifyAccessToken(tok, "persp-001") {
		t.Error("expected token to be rejected past max age")
	}
}

func TestAccessToken_NoSecretFailsClosed(t *testing.T) {
	c := token.NewCodec("")

	if tok := c.CreateAccessToken("persp-001"); tok != "" {
		t.Errorf("expected empty token without a secret, got %q", tok)
	}
	if c.VerifyAccessToken("v1.0.sig", "persp-001") {
		t.Error("expected verification to fail without a secret")
	}
}

func TestAccessToken_GarbageRejected(t *testing.T) {
	c := token.NewCodec(testSecret)

	for _, tok := range []string{
		"",
		"v1",
		"v1.notanumber.sig",
		"v2.1700000000000.sig",
		"v1.1700000000000.!!!not-base64!!!",
		"v1.1700000000000.c2lnbmF0dXJl.extra",
	} {
		if c.VerifyAccessToken(tok, "persp-001") {
			t.Errorf("expected %q to be rejected", tok)
		}
	}
}

func TestAccessToken_TamperedSignatureRejected(t *testing.T) {
	c := token.NewCodec(testSecret)

	tok := c.CreateAccessToken("persp-001")
	tampered := tok[:len(tok)-2] + "xx"
	if c.VerifyAccessToken(tampered, "persp-001") {
		t.Error("expected tampered signature to be rejected")
	}
}

// ── Write tokens ─────────────────────────────────────────────────────────────

func TestWriteToken_RoundTripReturnsChargeID(t *testing.T) {
	c := token.NewCodec(testSecret)

	tok := c.CreateWriteToken("persp-001", "ch_abc123")
	if tok == "" {
		t.Fatal("expected a write token")
	}
	if !strings.HasPrefix(tok, "w1.") {
		t.Errorf("expected w1 prefix, got %q", tok)
	}

	chargeID, ok := c.VerifyWriteToken(tok, "persp-001")
	if !ok {
		t.Fatal("expected write token to verify")
	}
	if chargeID != "ch_abc123" {
		t.Errorf("expected charge id ch_abc123, got %q", chargeID)
	}
}

func TestWriteToken_MalformedChargeIDFailsClosed(t *testing.T) {
	c := token.NewCodec(testSecret)

	for _, chargeID := range []string{"not-a-charge-id", "", "ch_", "ch_abc.def", "cx_abc123"} {
		if tok := c.CreateWriteToken("persp-001", chargeID); tok != "" {
			t.Errorf("expected empty token for charge id %q, got %q", chargeID, tok)
		}
	}
}

func TestWriteToken_WrongSubjectRejected(t *testing.T) {
	c := token.NewCodec(testSecret)

	tok := c.CreateWriteToken("persp-001", "ch_abc123")
	if _, ok := c.VerifyWriteToken(tok, "persp-002"); ok {
		t.Error("write token for persp-001 must not verify for persp-002")
	}
}

func TestWriteToken_AccessTokenIsNotAWriteToken(t *testing.T) {
	c := token.NewCodec(testSecret)

	tok := c.CreateAccessToken("persp-001")
	if _, ok := c.VerifyWriteToken(tok, "persp-001"); ok {
		t.Error("access token must not verify as a write token")
	}
}

func TestWriteToken_SwappedChargeIDRejected(t *testing.T) {
	c := token.NewCodec(testSecret)

	tok := c.CreateWriteToken("persp-001", "ch_abc123")
	parts := strings.Split(tok, ".")
	parts[2] = "ch_other999"
	forged := strings.Join(parts, ".")

	if _, ok := c.VerifyWriteToken(forged, "persp-001"); ok {
		t.Error("expected charge-id substitution to break the signature")
	}
}

func TestWriteToken_ExpiresAfterMaxAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := token.NewCodecWithClock(testSecret, clock)

	tok := c.CreateWriteToken("persp-001", "ch_abc123")

	now = now.Add(token.MaxAge + time.Minute)
	if _, ok := c.VerifyWriteToken(tok, "persp-001"); ok {
		t.Error("expected expired write token to be rejected")
	}
}
