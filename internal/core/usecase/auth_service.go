package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
	"github.com/atvirokodosprendimai/pcm/internal/core/ports"
)

var ErrUnauthorized = errors.New("unauthorized")

type AuthService struct {
	repo ports.APIKeyRepository
}

func NewAuthService(repo ports.APIKeyRepository) *AuthService {
	return &AuthService{repo: repo}
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.APIKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.APIKey{}, ErrUnauthorized
	}

	hash := HashToken(token)
	apiKey, err := s.repo.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.APIKey{}, ErrUnauthorized
		}
		return domain.APIKey{}, err
	}
	if !apiKey.Active {
		return domain.APIKey{}, ErrUnauthorized
	}
	return apiKey, nil
}

// RegisterKey stores the hash of token as an active key. Registering the same token again
// renames and reactivates it.
func (s *AuthService) RegisterKey(ctx context.Context, name, token string) (domain.APIKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.APIKey{}, errors.New("api key token is empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}
	key := domain.APIKey{TokenHash: HashToken(token), Name: name, Active: true, CreatedAt: time.Now().UTC()}
	if err := s.repo.Upsert(ctx, key); err != nil {
		return domain.APIKey{}, fmt.Errorf("register api key %s: %w", name, err)
	}
	return key, nil
}

func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
