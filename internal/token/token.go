// Package token mints LiveKit access tokens for rooms and participants.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/livekit/protocol/auth"
)

var ErrMissingCredentials = errors.New("livekit api key and secret are required")

// Issuer signs join credentials for a LiveKit project. It is a pure wrapper
// around the signing SDK; issuing a token has no side effects.
type Issuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func NewIssuer(apiKey, apiSecret string) *Issuer {
	return &Issuer{apiKey: apiKey, apiSecret: apiSecret, ttl: 6 * time.Hour}
}

// Issue returns a signed join token for identity in room. Errors from the
// signing layer propagate to the caller: a silently-invalid token would only
// surface later as an opaque transport connect failure.
func (i *Issuer) Issue(room, identity string) (string, error) {
	return i.issue(room, identity, false)
}

// IssueAgent is Issue with the agent grant set, marking the participant as a
// server-side agent rather than an end user.
func (i *Issuer) IssueAgent(room, identity string) (string, error) {
	return i.issue(room, identity, true)
}

func (i *Issuer) issue(room, identity string, agent bool) (string, error) {
	if i.apiKey == "" || i.apiSecret == "" {
		return "", ErrMissingCredentials
	}
	if room == "" {
		return "", errors.New("room is required")
	}
	if identity == "" {
		return "", errors.New("identity is required")
	}

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     room,
		Agent:    agent,
	}
	at := auth.NewAccessToken(i.apiKey, i.apiSecret).
		SetIdentity(identity).
		SetName(identity).
		SetVideoGrant(grant).
		SetValidFor(i.ttl)

	tok, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return tok, nil
}

// Claims is the decoded subset of a LiveKit access token this service cares
// about.
type Claims struct {
	Identity string
	Room     string
	Agent    bool
}

type videoGrantClaims struct {
	jwt.RegisteredClaims
	Video struct {
		Room     string `json:"room"`
		RoomJoin bool   `json:"roomJoin"`
		Agent    bool   `json:"agent"`
	} `json:"video"`
}

// Verify parses and validates a token against the signing secret. Used by the
// setup verifier and tests to confirm the issuer round-trips grants.
func Verify(tok, apiSecret string) (Claims, error) {
	var claims videoGrantClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(apiSecret), nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("parse access token: %w", err)
	}
	if !parsed.Valid {
		return Claims{}, errors.New("access token is not valid")
	}
	if !claims.Video.RoomJoin {
		return Claims{}, errors.New("access token carries no room join grant")
	}
	return Claims{
		Identity: claims.Subject,
		Room:     claims.Video.Room,
		Agent:    claims.Video.Agent,
	}, nil
}
