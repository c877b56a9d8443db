package auth

import (
	"context"
	"errors"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestInsecureVerifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "email", token: "buyer@example.com"},
		{name: "padded email", token: "  buyer@example.com "},
		{name: "empty", token: "", wantErr: true},
		{name: "not an email", token: "buyer", wantErr: true},
		{name: "display name", token: "Buyer <buyer@example.com>", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			identity, err := InsecureVerifier{}.Verify(context.Background(), tc.token)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "buyer@example.com", identity.Email)
			require.NotEmpty(t, identity.UID)
		})
	}
}

func TestAdmins(t *testing.T) {
	t.Parallel()

	admins := ParseAdmins(" Admin@Example.com, ,ops@example.com")
	require.Len(t, admins, 2)
	require.True(t, admins.IsAdmin(domain.Identity{Email: "admin@example.com"}))
	require.True(t, admins.IsAdmin(domain.Identity{Email: "OPS@example.com"}))
	require.False(t, admins.IsAdmin(domain.Identity{Email: "buyer@example.com"}))
	require.False(t, admins.IsAdmin(domain.Identity{}))
}

type stubTokenVerifier struct {
	token *fbauth.Token
	err   error
}

func (s stubTokenVerifier) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return s.token, s.err
}

func TestFirebaseVerifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ok := &FirebaseVerifier{client: stubTokenVerifier{token: &fbauth.Token{
		UID:    "uid-1",
		Claims: map[string]interface{}{"email": " buyer@example.com "},
	}}}
	identity, err := ok.Verify(ctx, "id-token")
	require.NoError(t, err)
	require.Equal(t, domain.Identity{UID: "uid-1", Email: "buyer@example.com"}, identity)

	_, err = ok.Verify(ctx, "  ")
	require.ErrorIs(t, err, ErrInvalidToken)

	noEmail := &FirebaseVerifier{client: stubTokenVerifier{token: &fbauth.Token{UID: "uid-2", Claims: map[string]interface{}{}}}}
	_, err = noEmail.Verify(ctx, "id-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	rejected := &FirebaseVerifier{client: stubTokenVerifier{err: errors.New("token expired")}}
	_, err = rejected.Verify(ctx, "id-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestUnaryServerInterceptor(t *testing.T) {
	t.Parallel()

	interceptor := UnaryServerInterceptor(InsecureVerifier{}, nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/storefront.v1.StorefrontService/GetCart"}

	var seen domain.Identity
	handler := func(ctx context.Context, req any) (any, error) {
		seen = IdentityFrom(ctx)
		return "ok", nil
	}

	tests := []struct {
		name     string
		md       metadata.MD
		wantCode codes.Code
		want     domain.Identity
	}{
		{name: "anonymous", md: nil, wantCode: codes.OK},
		{name: "bearer", md: metadata.Pairs("authorization", "Bearer buyer@example.com"), wantCode: codes.OK,
			want: domain.Identity{UID: "dev:buyer@example.com", Email: "buyer@example.com"}},
		{name: "lowercase scheme", md: metadata.Pairs("authorization", "bearer buyer@example.com"), wantCode: codes.OK,
			want: domain.Identity{UID: "dev:buyer@example.com", Email: "buyer@example.com"}},
		{name: "wrong scheme", md: metadata.Pairs("authorization", "Basic abc"), wantCode: codes.Unauthenticated},
		{name: "bad token", md: metadata.Pairs("authorization", "Bearer nobody"), wantCode: codes.Unauthenticated},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = domain.Identity{}
			ctx := context.Background()
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}

			_, err := interceptor(ctx, nil, info, handler)
			require.Equal(t, tc.wantCode, status.Code(err))
			if tc.wantCode == codes.OK {
				require.Equal(t, tc.want, seen)
			}
		})
	}
}
