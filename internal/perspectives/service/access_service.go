package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/pixelating-community/web-sub001/internal/perspectives/store"
	"github.com/pixelating-community/web-sub001/internal/perspectives/token"
)

var (
	ErrInvalidPerspectiveID = errors.New("perspective_id is required")
	ErrInvalidChargeID      = errors.New("charge_id is required")

	// ErrSigningSecretMissing is a deployment misconfiguration, surfaced
	// distinctly so operators can tell it apart from a bad client request.
	ErrSigningSecretMissing = errors.New("signing secret is not configured")

	// ErrChargeNotEligible covers not-found and not-succeeded uniformly.
	ErrChargeNotEligible = errors.New("charge not found or not succeeded")
)

// perspectiveIDPattern keeps perspective ids safe for cookie-name
// derivation and path segments.
var perspectiveIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// TokenPair is what a client earns by paying: a read token and a
// single-charge write token.
type TokenPair struct {
	AccessToken string
	WriteToken  string
}

// AccessService is the two-sided contract around payment-gated access:
// token issuance after a successful charge lookup, and token verification
// on each subsequent read/write request.
type AccessService struct {
	codec  *token.Codec
	ledger store.ChargeLedger
}

func NewAccessService(codec *token.Codec, ledger store.ChargeLedger) *AccessService {
	return &AccessService{codec: codec, ledger: ledger}
}

// IssueTokens mints both token kinds for perspectiveID once chargeID is
// confirmed succeeded against the perspective's collection.
func (s *AccessService) IssueTokens(ctx context.Context, perspectiveID, chargeID string) (TokenPair, error) {
	perspectiveID = strings.TrimSpace(perspectiveID)
	chargeID = strings.TrimSpace(chargeID)

	if !perspectiveIDPattern.MatchString(perspectiveID) {
		return TokenPair{}, ErrInvalidPerspectiveID
	}
	if chargeID == "" {
		return TokenPair{}, ErrInvalidChargeID
	}
	if !s.codec.Configured() {
		return TokenPair{}, ErrSigningSecretMissing
	}

	ok, err := s.ledger.SucceededChargeExists(ctx, perspectiveID, chargeID)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, ErrChargeNotEligible
	}

	pair := TokenPair{
		AccessToken: s.codec.CreateAccessToken(perspectiveID),
		WriteToken:  s.codec.CreateWriteToken(perspectiveID, chargeID),
	}
	if pair.AccessToken == "" || pair.WriteToken == "" {
		// The ledger matched but the codec refused the identifier shape.
		// Report it like any other ineligible charge.
		return TokenPair{}, ErrChargeNotEligible
	}
	return pair, nil
}

// CheckReadAccess reports whether cookieToken grants read access to
// perspectiveID.
func (s *AccessService) CheckReadAccess(perspectiveID, cookieToken string) bool {
	return s.codec.VerifyAccessToken(cookieToken, perspectiveID)
}

// CheckWriteAccess returns the charge id bound into a valid write token.
// A non-empty result proves authenticity only; whether the charge is
// still unconsumed is the write gate's question.
func (s *AccessService) CheckWriteAccess(perspectiveID, cookieToken string) (string, bool) {
	return s.codec.VerifyWriteToken(cookieToken, perspectiveID)
}
