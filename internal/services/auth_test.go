package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/visiblee-backend/internal/platform/ctxutil"
	"github.com/yungbote/visiblee-backend/internal/platform/logger"
)

func TestAuthTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(logger.Nop(), "s3cret", "visiblee-web")
	user := uuid.New()

	tok, err := svc.IssueToken(user, time.Hour)
	require.NoError(t, err)

	ctx, err := svc.SetContextFromToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, user, ctxutil.ActorID(ctx))
}

func TestAuthRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(logger.Nop(), "s3cret", "visiblee-web")
	other := NewAuthService(logger.Nop(), "different", "visiblee-web")
	otherIssuer := NewAuthService(logger.Nop(), "s3cret", "someone-else")

	expired, err := svc.IssueToken(uuid.New(), -time.Minute)
	require.NoError(t, err)
	forged, err := other.IssueToken(uuid.New(), time.Hour)
	require.NoError(t, err)
	wrongIss, err := otherIssuer.IssueToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":   "",
		"garbage": "not-a-jwt",
		"expired": expired,
		"forged":  forged,
		"issuer":  wrongIss,
	} {
		t.Run(name, func(t *testing.T) {
			ctx, err := svc.SetContextFromToken(context.Background(), tok)
			assert.Error(t, err)
			assert.Equal(t, uuid.Nil, ctxutil.ActorID(ctx))
		})
	}
}

func TestAuthWithoutSecretRejectsEverything(t *testing.T) {
	svc := NewAuthService(logger.Nop(), "", "")
	_, err := svc.IssueToken(uuid.New(), time.Hour)
	assert.Error(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("anything"))
	require.NoError(t, err)
	_, err = svc.SetContextFromToken(context.Background(), tok)
	assert.Error(t, err)
}
