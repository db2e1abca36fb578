// Package grant issues and verifies table grants.
//
// A table grant is an EdDSA-signed JWT identifying one user at one campaign
// table with either the gm or player role. The authority requires a grant on
// every request; clients receive theirs out of band when they join a table.
package grant

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/seralith/wartable/internal/platform/errors"
	"github.com/seralith/wartable/internal/platform/requestctx"
)

// Role names the authority level a grant carries.
type Role string

const (
	RoleGM     Role = "gm"
	RolePlayer Role = "player"
)

// Grant captures validated table grant claims.
type Grant struct {
	CampaignID string
	UserID     string
	Role       Role
	ExpiresAt  time.Time
	JWTID      string
}

// Principal converts the grant into a request principal.
func (g Grant) Principal() requestctx.Principal {
	return requestctx.Principal{UserID: g.UserID, GM: g.Role == RoleGM}
}

// tableGrantClaims is the internal claims type used for JWT parsing.
type tableGrantClaims struct {
	jwt.RegisteredClaims
	CampaignID string `json:"campaign_id"`
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
}

// verifierEnv holds raw env values before post-parse validation.
type verifierEnv struct {
	Issuer    string `env:"WARTABLE_GRANT_ISSUER"`
	Audience  string `env:"WARTABLE_GRANT_AUDIENCE"`
	PublicKey string `env:"WARTABLE_GRANT_PUBLIC_KEY"`
}

// Verifier validates table grants presented to the authority.
type Verifier struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// LoadVerifierFromEnv reads grant verification configuration.
func LoadVerifierFromEnv(now func() time.Time) (Verifier, error) {
	var raw verifierEnv
	if err := env.Parse(&raw); err != nil {
		return Verifier{}, fmt.Errorf("parse grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return Verifier{}, fmt.Errorf("WARTABLE_GRANT_ISSUER is required")
	}
	if audience == "" {
		return Verifier{}, fmt.Errorf("WARTABLE_GRANT_AUDIENCE is required")
	}
	if publicKey == "" {
		return Verifier{}, fmt.Errorf("WARTABLE_GRANT_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Verifier{}, fmt.Errorf("decode grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Verifier{}, fmt.Errorf("grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Verifier{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Verify validates a grant token for the given campaign.
func (v Verifier) Verify(token, campaignID string) (Grant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Grant{}, apperrors.New(apperrors.CodeGrantMissing, "table grant is required")
	}
	now := v.Now
	if now == nil {
		now = time.Now
	}
	if v.Issuer == "" || v.Audience == "" || len(v.Key) != ed25519.PublicKeySize {
		return Grant{}, errors.New("grant verifier is not configured")
	}

	var parsed tableGrantClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return v.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Grant{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != v.Issuer {
		return Grant{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"table grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, v.Audience) {
		return Grant{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"table grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ID == "" {
		return Grant{}, apperrors.New(apperrors.CodeGrantInvalid, "table grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Grant{}, apperrors.New(apperrors.CodeGrantInvalid, "table grant exp is required")
	}

	current := now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(current) {
		return Grant{}, apperrors.New(apperrors.CodeGrantExpired, "table grant is expired")
	}
	if parsed.NotBefore != nil && current.Before(parsed.NotBefore.Time.UTC()) {
		return Grant{}, apperrors.New(apperrors.CodeGrantInvalid, "table grant not active yet")
	}

	if strings.TrimSpace(parsed.CampaignID) == "" || parsed.CampaignID != campaignID {
		return Grant{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"table grant campaign mismatch",
			map[string]string{"Field": "campaign_id"},
		)
	}
	if strings.TrimSpace(parsed.UserID) == "" {
		return Grant{}, apperrors.New(apperrors.CodeGrantInvalid, "table grant user is required")
	}
	role := Role(strings.TrimSpace(parsed.Role))
	if role != RoleGM && role != RolePlayer {
		return Grant{}, apperrors.New(apperrors.CodeGrantInvalid, "table grant role is invalid")
	}

	return Grant{
		CampaignID: parsed.CampaignID,
		UserID:     parsed.UserID,
		Role:       role,
		ExpiresAt:  exp,
		JWTID:      parsed.ID,
	}, nil
}

// MintInput describes a grant to sign. Used by tooling and tests; the
// authority only verifies.
type MintInput struct {
	Issuer     string
	Audience   string
	CampaignID string
	UserID     string
	Role       Role
	JWTID      string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Mint signs a table grant with an ed25519 private key.
func Mint(key ed25519.PrivateKey, in MintInput) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("grant private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if in.CampaignID == "" || in.UserID == "" {
		return "", errors.New("campaign id and user id are required")
	}
	if in.Role != RoleGM && in.Role != RolePlayer {
		return "", fmt.Errorf("invalid grant role %q", in.Role)
	}
	claims := tableGrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    in.Issuer,
			Audience:  jwt.ClaimStrings{in.Audience},
			ID:        in.JWTID,
			IssuedAt:  jwt.NewNumericDate(in.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(in.ExpiresAt),
		},
		CampaignID: in.CampaignID,
		UserID:     in.UserID,
		Role:       string(in.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign table grant: %w", err)
	}
	return signed, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeGrantInvalid, "table grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeGrantInvalid, "table grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeGrantInvalid, "table grant is invalid")
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
