package auth

import (
	"context"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
)

// Identity は検証済みトークンから得た呼び出し元です。
type Identity struct {
	UserID string
	Role   job.Role
}

type identityKey struct{}

// WithIdentity は id を保持したコンテキストを返します。
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext はコンテキストに保持された呼び出し元を返します。
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
