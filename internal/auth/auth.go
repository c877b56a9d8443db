// Package auth проверяет токены покупателей и администраторов.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ErrInvalidToken: токен не прошёл проверку.
var ErrInvalidToken = errors.New("invalid auth token")

// ErrForbidden: операция доступна только администраторам.
var ErrForbidden = errors.New("admin privileges required")

// Verifier превращает bearer-токен в Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

// InsecureVerifier доверяет токену как email пользователя. Только для разработки.
type InsecureVerifier struct{}

// Verify принимает любой корректный email.
func (InsecureVerifier) Verify(_ context.Context, token string) (domain.Identity, error) {
	email := strings.TrimSpace(token)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.Identity{}, ErrInvalidToken
	}
	return domain.Identity{UID: "dev:" + email, Email: email}, nil
}

// Admins: набор email администраторов, сравнение без учёта регистра.
type Admins map[string]struct{}

// ParseAdmins разбирает список через запятую.
func ParseAdmins(raw string) Admins {
	admins := make(Admins)
	for _, part := range strings.Split(raw, ",") {
		email := strings.ToLower(strings.TrimSpace(part))
		if email != "" {
			admins[email] = struct{}{}
		}
	}
	return admins
}

// IsAdmin проверяет, входит ли пользователь в список администраторов.
func (a Admins) IsAdmin(identity domain.Identity) bool {
	if identity.IsZero() {
		return false
	}
	_, ok := a[strings.ToLower(identity.Key())]
	return ok
}

type identityKey struct{}

// WithIdentity кладёт пользователя в контекст запроса.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom достаёт пользователя из контекста; нулевое значение — аноним.
func IdentityFrom(ctx context.Context) domain.Identity {
	identity, _ := ctx.Value(identityKey{}).(domain.Identity)
	return identity
}
