package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	apperrors "github.com/quorumhq/petitions/internal/platform/errors"
	"github.com/quorumhq/petitions/internal/platform/requestctx"
)

const healthMethodPrefix = "/grpc.health.v1.Health/"

// UnaryInterceptor resolves the caller identity from the authorization
// metadata and stores it in the request context. Health checks pass through
// unauthenticated.
func UnaryInterceptor(cfg Config) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthMethodPrefix) {
			return handler(ctx, req)
		}

		identity, err := VerifyToken(bearerToken(ctx), cfg)
		if err != nil {
			var domainErr *apperrors.Error
			if errors.As(err, &domainErr) {
				return nil, domainErr.ToGRPCStatus()
			}
			return nil, apperrors.Wrap(apperrors.CodeIdentityRequired, "authentication failed", err).ToGRPCStatus()
		}
		return handler(requestctx.WithIdentity(ctx, identity), req)
	}
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	token := strings.TrimSpace(values[0])
	if rest, found := strings.CutPrefix(token, "Bearer "); found {
		return strings.TrimSpace(rest)
	}
	return token
}
