package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
)

type stubAPIKeyRepo struct {
	findFn   func(ctx context.Context, tokenHash string) (domain.APIKey, error)
	upserted []domain.APIKey
}

func (s *stubAPIKeyRepo) FindByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error) {
	if s.findFn != nil {
		return s.findFn(ctx, tokenHash)
	}
	return domain.APIKey{}, domain.ErrNotFound
}

func (s *stubAPIKeyRepo) Upsert(_ context.Context, key domain.APIKey) error {
	s.upserted = append(s.upserted, key)
	return nil
}

func TestAuthServiceAuthenticateSuccess(t *testing.T) {
	repo := &stubAPIKeyRepo{findFn: func(_ context.Context, tokenHash string) (domain.APIKey, error) {
		if tokenHash != HashToken("token-1") {
			t.Fatalf("unexpected token hash: %s", tokenHash)
		}
		return domain.APIKey{TokenHash: tokenHash, Name: "ops", Active: true, CreatedAt: time.Now()}, nil
	}}

	svc := NewAuthService(repo)
	key, err := svc.Authenticate(context.Background(), "token-1")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if key.Name != "ops" {
		t.Fatalf("expected ops, got %s", key.Name)
	}
}

func TestAuthServiceAuthenticateUnauthorized(t *testing.T) {
	svc := NewAuthService(&stubAPIKeyRepo{})
	_, err := svc.Authenticate(context.Background(), "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	_, err = svc.Authenticate(context.Background(), "unknown")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown token, got %v", err)
	}
}

func TestAuthServiceAuthenticateInactive(t *testing.T) {
	repo := &stubAPIKeyRepo{findFn: func(context.Context, string) (domain.APIKey, error) {
		return domain.APIKey{Name: "old", Active: false}, nil
	}}
	_, err := NewAuthService(repo).Authenticate(context.Background(), "token-2")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for inactive key, got %v", err)
	}
}

func TestAuthServiceRegisterKeyStoresHash(t *testing.T) {
	repo := &stubAPIKeyRepo{}
	svc := NewAuthService(repo)

	key, err := svc.RegisterKey(context.Background(), " ", " secret ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if key.Name != "default" || !key.Active {
		t.Fatalf("unexpected key: %+v", key)
	}
	if len(repo.upserted) != 1 || repo.upserted[0].TokenHash != HashToken("secret") {
		t.Fatalf("expected hashed token upsert, got %+v", repo.upserted)
	}

	if _, err := svc.RegisterKey(context.Background(), "x", ""); err == nil {
		t.Fatal("expected error for empty token")
	}
}
