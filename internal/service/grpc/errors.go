package grpcsvc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// toStatus переводит доменную ошибку в gRPC status.
// Неизвестные ошибки скрываются за codes.Internal.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codeOf(err)
	if code == codes.Internal {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, auth.ErrForbidden):
		return codes.PermissionDenied
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, auth.ErrInvalidToken):
		return codes.Unauthenticated
	case errors.Is(err, domain.ErrIdentityChanged):
		return codes.Aborted
	case errors.Is(err, domain.ErrLineNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrLineAlreadyExists),
		errors.Is(err, domain.ErrOrderAlreadyExists):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrCartEmpty),
		errors.Is(err, domain.ErrTotalsMismatch),
		errors.Is(err, domain.ErrOrderTransitionInvalid):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrProductRefRequired),
		errors.Is(err, domain.ErrQuantityDeltaInvalid),
		errors.Is(err, domain.ErrProductNameRequired),
		errors.Is(err, domain.ErrProductImageRequired),
		errors.Is(err, domain.ErrProductCategoryRequired),
		errors.Is(err, domain.ErrProductPriceInvalid),
		errors.Is(err, domain.ErrShippingFieldRequired),
		errors.Is(err, domain.ErrOrderStatusInvalid):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrRemoteFailure):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
