package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"xmrbet/internal/client/predictions"
	"xmrbet/internal/models"
	"xmrbet/internal/powauth"
	"xmrbet/internal/repository"
)

// AuthAPI is the slice of the remote client registration needs.
type AuthAPI interface {
	Register(ctx context.Context, req predictions.RegisterRequest) (*predictions.RegisterResponse, error)
}

// AuthService creates and re-opens anonymous identities. No usernames, no
// passwords, no email: an account is a keypair plus a solved puzzle, and the
// private key is the only credential.
type AuthService struct {
	Repo             repository.Repository
	API              AuthAPI
	Logger           *zap.Logger
	Difficulty       int
	ProgressEvery    int
	ProgressInterval time.Duration
}

// Register generates a keypair, solves the PoW puzzle, and registers the
// result with the remote API. onProgress, when non-nil, receives throttled
// solver updates for display. The returned keypair carries the private key;
// it is never persisted and this is the caller's only chance to show it.
func (s *AuthService) Register(ctx context.Context, onProgress func(powauth.Progress)) (*powauth.Keypair, error) {
	auth := powauth.Authenticator{
		Difficulty:       s.Difficulty,
		ProgressEvery:    s.ProgressEvery,
		ProgressInterval: s.ProgressInterval,
	}
	progress, result := auth.Start(ctx)

	go func() {
		for p := range progress {
			if onProgress != nil {
				onProgress(p)
			}
		}
	}()

	res := <-result
	if res.Err != nil {
		return nil, res.Err
	}
	kp := res.Keypair

	if _, err := s.API.Register(ctx, predictions.RegisterRequest{
		PublicKey: kp.PublicKeyHex,
		PoWNonce:  kp.Nonce,
	}); err != nil {
		return nil, err
	}

	if err := s.Repo.InsertIdentity(ctx, &models.Identity{
		KeyID:      kp.KeyID,
		PublicKey:  kp.PublicKeyHex,
		Difficulty: s.Difficulty,
		Nonce:      kp.Nonce,
	}); err != nil {
		return nil, err
	}

	s.Logger.Info("identity registered",
		zap.String("key_id", kp.KeyID),
		zap.Uint64("hashes", kp.Hashes))
	return kp, nil
}

// SignIn re-derives the key id from a supplied private key and checks it
// against the locally registered identity. Any failure collapses into
// powauth.ErrInvalidKey so callers leak nothing about which step failed.
func (s *AuthService) SignIn(ctx context.Context, privateKeyHex string) (*models.Identity, error) {
	kp, err := powauth.ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, powauth.ErrInvalidKey
	}
	identity, err := s.Repo.GetIdentityByKeyID(ctx, kp.KeyID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, powauth.ErrInvalidKey
	}
	if _, err := powauth.SignIn(privateKeyHex, identity.PublicKey); err != nil {
		return nil, err
	}
	return identity, nil
}
