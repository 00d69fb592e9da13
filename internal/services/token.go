package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/slotter-org/clinic-voice-scheduler/internal/errordata"
	"github.com/slotter-org/clinic-voice-scheduler/internal/logger"
)

// VideoGrant mirrors the LiveKit room grant.
type VideoGrant struct {
	RoomJoin     bool   `json:"roomJoin,omitempty"`
	Room         string `json:"room,omitempty"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type AccessClaims struct {
	jwt.RegisteredClaims
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
}

type Grant struct {
	Token string `json:"token"`
	Room  string `json:"room"`
}

type TokenService interface {
	Issue(name string) (Grant, error)
	Parse(token string) (*AccessClaims, error)
}

type tokenService struct {
	log       *logger.Logger
	apiKey    string
	apiSecret string
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenService(apiKey, apiSecret string, ttl time.Duration, log *logger.Logger) (TokenService, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("token service: api key and secret required")
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &tokenService{
		log:       log.With("service", "TokenService"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// NewRoomName returns "session-" followed by 12 hex characters.
func NewRoomName() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("room name: %w", err)
	}
	return "session-" + hex.EncodeToString(buf), nil
}

func (ts *tokenService) Issue(name string) (Grant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "User"
	}
	room, err := NewRoomName()
	if err != nil {
		return Grant{}, err
	}
	now := ts.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.apiKey,
			Subject:   name,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		Name: name,
		Video: &VideoGrant{
			RoomJoin:     true,
			Room:         room,
			CanPublish:   true,
			CanSubscribe: true,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.apiSecret))
	if err != nil {
		return Grant{}, fmt.Errorf("sign token: %w", err)
	}
	ts.log.Info("Issued access token", "room", room)
	return Grant{Token: signed, Room: room}, nil
}

func (ts *tokenService) Parse(token string) (*AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(ts.apiSecret), nil
	}, jwt.WithIssuer(ts.apiKey), jwt.WithTimeFunc(ts.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %v: %w", err, errordata.ErrPrecondition)
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.Video == nil || claims.Video.Room == "" {
		return nil, fmt.Errorf("parse token: missing room grant: %w", errordata.ErrPrecondition)
	}
	return claims, nil
}
