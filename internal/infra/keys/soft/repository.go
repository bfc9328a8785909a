package soft

import (
	"context"

	"github.com/sasha-s/go-deadlock"

	"github.com/filiksyos/ghostmrr/internal/domain"
	cryptoinfra "github.com/filiksyos/ghostmrr/internal/infra/crypto"
)

// Repository keeps an issuer keypair in memory only. It backs tests and
// one-shot issuing where nothing should touch the home directory.
type Repository struct {
	mu     deadlock.Mutex
	kp     *domain.Keypair
	crypto *cryptoinfra.Service
}

func NewRepository() *Repository {
	return &Repository{crypto: cryptoinfra.NewService()}
}

// NewRepositoryWithKeypair starts with kp already loaded.
func NewRepositoryWithKeypair(kp domain.Keypair) *Repository {
	r := NewRepository()
	r.kp = &kp
	return r
}

func (r *Repository) LoadOrCreate(ctx context.Context) (domain.Keypair, error) {
	if err := ctx.Err(); err != nil {
		return domain.Keypair{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.kp != nil {
		return *r.kp, nil
	}
	kp, err := r.crypto.GenerateKeypair()
	if err != nil {
		return domain.Keypair{}, err
	}
	r.kp = &kp
	return kp, nil
}

func (r *Repository) Reset(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existed := r.kp != nil
	r.kp = nil
	return existed, nil
}
