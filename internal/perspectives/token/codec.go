package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxAge is how long an issued token stays valid.
const MaxAge = 36 * time.Hour

const (
	accessVersion = "v1"
	writeVersion  = "w1"
)

// chargeIDPattern is the expected shape of a provider charge identifier.
// Write tokens are never minted around anything else.
var chargeIDPattern = regexp.MustCompile(`^ch_[A-Za-z0-9]+$`)

// Codec builds and verifies HMAC-signed, time-limited access and write
// tokens.  Tokens are stateless: expiry and binding live in the signed
// payload, so verification needs no storage round trip.
//
// Wire formats (cookie values):
//
//	access: v1.<issuedAtMs>.<base64url hmac>
//	write:  w1.<issuedAtMs>.<chargeID>.<base64url hmac>
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// NewCodecWithClock is NewCodec with an injectable clock for expiry tests.
func NewCodecWithClock(secret string, now func() time.Time) *Codec {
	return &Codec{secret: []byte(secret), now: now}
}

// Configured reports whether a signing secret is present.  Callers that
// need to distinguish "misconfigured server" from "bad token" check this
// before minting.
func (c *Codec) Configured() bool {
	return len(c.secret) > 0
}

// CreateAccessToken mints a read-access token for subjectID.  Returns ""
// when no signing secret is configured.
func (c *Codec) CreateAccessToken(subjectID string) string {
	if !c.Configured() || subjectID == "" {
		return ""
	}
	issuedMs := strconv.FormatInt(c.now().UTC().UnixMilli(), 10)
	sig := c.sign(accessVersion + ":" + subjectID + ":" + issuedMs)
	return accessVersion + "." + issuedMs + "." + sig
}

// VerifyAccessToken reports whether tok is a currently valid read-access
// token for subjectID.  Any parse failure is a rejection.
func (c *Codec) VerifyAccessToken(tok, subjectID string) bool {
	if !c.Configured() || subjectID == "" {
		return false
	}
	parts := strings.Split(tok, ".")
	if len(parts) != 3 || parts[0] != accessVersion {
		return false
	}
	issuedMs, ok := c.freshIssuedMs(parts[1])
	if !ok {
		return false
	}
	return c.sigMatches(accessVersion+":"+subjectID+":"+issuedMs, parts[2])
}

// CreateWriteToken mints a single-charge write token.  Returns "" when no
// signing secret is configured or chargeID does not look like a provider
// charge identifier. Fails closed rather than sign a malformed binding.
func (c *Codec) CreateWriteToken(subjectID, chargeID string) string {
	if !c.Configured() || subjectID == "" {
		return ""
	}
	if !chargeIDPattern.MatchString(chargeID) {
		return ""
	}
	issuedMs := strconv.FormatInt(c.now().UTC().UnixMilli(), 10)
	sig := c.sign(writeVersion + ":" + subjectID + ":" + chargeID + ":" + issuedMs)
	return writeVersion + "." + issuedMs + "." + chargeID + "." + sig
}

// VerifyWriteToken checks tok against subjectID and returns the embedded
// charge id on full success.  The caller still has to consume that charge;
// a valid token only proves authenticity, not freshness.
func (c *Codec) VerifyWriteToken(tok, subjectID string) (string, bool) {
	if !c.Configured() || subjectID == "" {
		return "", false
	}
	parts := strings.Split(tok, ".")
	if len(parts) != 4 || parts[0] != writeVersion {
		return "", false
	}
	chargeID := parts[2]
	if !chargeIDPattern.MatchString(chargeID) {
		return "", false
	}
	issuedMs, ok := c.freshIssuedMs(parts[1])
	if !ok {
		return "", false
	}
	if !c.sigMatches(writeVersion+":"+subjectID+":"+chargeID+":"+issuedMs, parts[3]) {
		return "", false
	}
	return chargeID, true
}

// freshIssuedMs validates the issued-at field and its age.  It returns the
// field unchanged so signing payloads reuse the exact wire bytes.
func (c *Codec) freshIssuedMs(field string) (string, bool) {
	ms, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return "", false
	}
	if c.now().UTC().UnixMilli()-ms > MaxAge.Milliseconds() {
		return "", false
	}
	return field, true
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// sigMatches recomputes the signature for payload and compares it to the
// provided base64url field in constant time.
func (c *Codec) sigMatches(payload, provided string) bool {
	got, err := base64.RawURLEncoding.DecodeString(provided)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	want := mac.Sum(nil)
	if len(got) != len(want) {
		return false
	}
	return hmac.Equal(got, want)
}
