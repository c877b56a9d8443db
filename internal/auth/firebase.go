package auth

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// tokenVerifier: часть *fbauth.Client, которая нужна верификатору.
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier проверяет Firebase ID-токены.
type FirebaseVerifier struct {
	client tokenVerifier
}

// NewFirebaseVerifier поднимает Firebase App; credentialsFile может быть пустым (ADC).
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify проверяет подпись токена и берёт email из claims.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (domain.Identity, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	email := ""
	if raw, ok := token.Claims["email"]; ok {
		if s, ok := raw.(string); ok {
			email = strings.TrimSpace(s)
		}
	}
	// Корзина партиционируется по email, токен без него бесполезен.
	if email == "" {
		return domain.Identity{}, fmt.Errorf("%w: token has no email claim", ErrInvalidToken)
	}

	return domain.Identity{UID: strings.TrimSpace(token.UID), Email: email}, nil
}

var _ Verifier = (*FirebaseVerifier)(nil)
