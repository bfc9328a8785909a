package file

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mborders/logmatic"
	"github.com/sasha-s/go-deadlock"

	"github.com/filiksyos/ghostmrr/internal/domain"
	cryptoinfra "github.com/filiksyos/ghostmrr/internal/infra/crypto"
	"github.com/filiksyos/ghostmrr/internal/logging"
)

// writeMu serializes keypair file writes within the process.
var writeMu deadlock.Mutex

type storedKeypair struct {
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
	DID        string `json:"did"`
}

// Repository persists a single keypair as JSON at a fixed path.
type Repository struct {
	path   string
	crypto *cryptoinfra.Service
	log    *logmatic.Logger
}

type Option func(*Repository)

func WithLogger(l *logmatic.Logger) Option {
	return func(r *Repository) {
		r.log = l
	}
}

func WithCrypto(svc *cryptoinfra.Service) Option {
	return func(r *Repository) {
		r.crypto = svc
	}
}

func NewRepository(path string, opts ...Option) *Repository {
	r := &Repository{path: path, crypto: cryptoinfra.NewService()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Path() string {
	return r.path
}

// LoadOrCreate returns the persisted keypair, generating and persisting one
// when the file is absent or unusable.
func (r *Repository) LoadOrCreate(ctx context.Context) (domain.Keypair, error) {
	if err := ctx.Err(); err != nil {
		return domain.Keypair{}, err
	}
	writeMu.Lock()
	defer writeMu.Unlock()

	kp, err := r.read()
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		logging.Or(r.log).Warn("existing keypair file %s is corrupted (%v); generating new keypair", r.path, err)
	}

	kp, err = r.crypto.GenerateKeypair()
	if err != nil {
		return domain.Keypair{}, err
	}
	if err := r.write(kp); err != nil {
		return domain.Keypair{}, err
	}
	return kp, nil
}

// Load returns the persisted keypair without creating one. A missing file
// yields os.ErrNotExist and an unreadable one domain.ErrCorruptKeypair.
func (r *Repository) Load(ctx context.Context) (domain.Keypair, error) {
	if err := ctx.Err(); err != nil {
		return domain.Keypair{}, err
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	return r.read()
}

// Reset deletes the persisted keypair and reports whether one existed.
func (r *Repository) Reset(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	writeMu.Lock()
	defer writeMu.Unlock()

	if err := os.Remove(r.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repository) read() (domain.Keypair, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return domain.Keypair{}, err
	}
	var stored storedKeypair
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Keypair{}, fmt.Errorf("%w: %v", domain.ErrCorruptKeypair, err)
	}
	kp, err := cryptoinfra.KeypairFromBase64(stored.PrivateKey, stored.PublicKey, stored.DID)
	if err != nil {
		return domain.Keypair{}, fmt.Errorf("%w: %v", domain.ErrCorruptKeypair, err)
	}
	return kp, nil
}

// write stores the seed form of the private key and replaces the file
// atomically so readers never see a partial keypair.
func (r *Repository) write(kp domain.Keypair) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create keypair dir: %w", err)
	}
	payload, err := json.MarshalIndent(storedKeypair{
		PrivateKey: encodeSeed(kp),
		PublicKey:  kp.PublicKeyBase64(),
		DID:        kp.DID,
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".keypair-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp keypair: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return err
	}
	if _, err := tmp.Write(payload); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("persist keypair: %w", err)
	}
	return nil
}

func encodeSeed(kp domain.Keypair) string {
	return base64.StdEncoding.EncodeToString(kp.PrivateKey.Seed())
}
