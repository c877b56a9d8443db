package auth

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	authorizationHeader = "authorization"
	bearerPrefix        = "bearer "
)

// UnaryServerInterceptor проверяет bearer-токен и кладёт Identity в контекст.
// Запрос без заголовка проходит анонимно; обязательность входа решает обработчик.
func UnaryServerInterceptor(verifier Verifier, logger *log.Entry) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = log.WithField("component", "auth-interceptor")
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		token, present := bearerToken(ctx)
		if !present {
			return handler(ctx, req)
		}

		identity, err := verifier.Verify(ctx, token)
		if err != nil {
			logger.WithError(err).WithField("method", info.FullMethod).Debug("token rejected")
			return nil, status.Error(codes.Unauthenticated, "invalid auth token")
		}

		return handler(WithIdentity(ctx, identity), req)
	}
}

// bearerToken достаёт токен из metadata; present=true, если заголовок был передан.
func bearerToken(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	values := md.Get(authorizationHeader)
	if len(values) == 0 {
		return "", false
	}

	raw := strings.TrimSpace(values[0])
	if len(raw) < len(bearerPrefix) || !strings.EqualFold(raw[:len(bearerPrefix)], bearerPrefix) {
		return "", true
	}
	return strings.TrimSpace(raw[len(bearerPrefix):]), true
}

// BearerCredentials: PerRPCCredentials для клиентов (cartctl, loadtest).
type BearerCredentials struct {
	Token    string
	Insecure bool
}

// GetRequestMetadata добавляет заголовок authorization к каждому вызову.
func (c BearerCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{authorizationHeader: "Bearer " + c.Token}, nil
}

// RequireTransportSecurity разрешает plaintext только при Insecure.
func (c BearerCredentials) RequireTransportSecurity() bool {
	return !c.Insecure
}
