package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryBuffer treats tokens about to expire as already expired
const ExpiryBuffer = 60 * time.Second

// Persona is the identity carried by an access token
type Persona struct {
	Email     string    `json:"email"`
	ClientID  string    `json:"client_id"`
	OrgID     string    `json:"org_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type organization struct {
	ID string `json:"id"`
}

type claims struct {
	jwt.RegisteredClaims
	Email        string                  `json:"email"`
	AZP          string                  `json:"azp"`
	Organization map[string]organization `json:"organization"`
}

// ParsePersona reads the claims of an access token without verifying its
// signature. The API verifies it on every request.
func ParsePersona(accessToken string) (*Persona, error) {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &c); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	p := &Persona{
		Email:    c.Email,
		ClientID: c.AZP,
	}
	if p.ClientID == "" {
		p.ClientID = "unknown"
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	for key, org := range c.Organization {
		p.OrgID = org.ID
		if p.OrgID == "" {
			p.OrgID = key
		}
		break
	}

	return p, nil
}

// Expired reports whether the token expires within ExpiryBuffer of now.
// Tokens without an exp claim count as expired.
func (p *Persona) Expired(now time.Time) bool {
	if p.ExpiresAt.IsZero() {
		return true
	}
	return !p.ExpiresAt.After(now.Add(ExpiryBuffer))
}
