package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-chat-gateway/internal/repo"
)

// Gate turns a raw credential into a principal backed by an existing user.
// Every rejection is terminal for the attempt; the gate never retries.
type Gate struct {
	Verifier Verifier
	DB       *gorm.DB
}

// Authenticate verifies token and confirms the principal's user exists.
func (g *Gate) Authenticate(ctx context.Context, token string) (Principal, error) {
	tr := otel.Tracer("auth/Gate")
	ctx, span := tr.Start(ctx, "Authenticate")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrMissingCredential
	}

	p, err := g.Verifier.Verify(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrAuthFailure) {
			err = ErrInvalidCredential
		}
		span.SetAttributes(attribute.String("auth.reject", Code(err)))
		return Principal{}, err
	}
	span.SetAttributes(attribute.String("user.id", p.UserID))

	if _, err := repo.GetUser(ctx, g.DB, p.UserID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Principal{}, ErrPrincipalNotFound
		}
		// Store failure: refuse rather than admit an unverified principal.
		log.Ctx(ctx).Error().Err(err).Str("user_id", p.UserID).Msg("principal lookup failed")
		span.SetAttributes(attribute.Bool("auth.lookup_error", true))
		return Principal{}, err
	}
	return p, nil
}

// BearerToken extracts the token from an Authorization header value. An
// empty header yields ErrMissingCredential; a header that is not of the form
// "Bearer <token>" yields ErrMalformedCredential.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredential
	}
	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
		return "", ErrMalformedCredential
	}
	return strings.TrimSpace(tok), nil
}
