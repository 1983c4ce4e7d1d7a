package service

import (
	"context"
	"log/slog"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/pkg/utils"
)

// ResolveCredentials loads and decrypts the credentials for the requested
// platforms, keyed by lower-case platform name. Platforms without a stored
// credential are absent from the map; a credential that fails to decrypt is
// skipped with a log line rather than failing the lookup.
func ResolveCredentials(ctx context.Context, cr repository.CredentialRepository, platforms []string, secretKey []byte) (map[string]*models.PlatformCredential, error) {
	creds, err := cr.ListByPlatforms(ctx, platforms)
	if err != nil {
		return nil, err
	}

	byPlatform := make(map[string]*models.PlatformCredential, len(creds))
	for _, cred := range creds {
		token, err := utils.Decrypt(cred.AccessToken, secretKey)
		if err != nil {
			slog.Info("failed to decrypt credential", "platform", cred.Platform, "error", err.Error())
			continue
		}
		cred.AccessToken = token
		byPlatform[cred.Platform] = cred
	}
	return byPlatform, nil
}

// CredentialService exposes the connected platforms with tokens redacted.
type CredentialService interface {
	List(ctx context.Context) ([]*models.PlatformCredential, error)
	Disconnect(ctx context.Context, platform string) error
}

type credentialService struct {
	cr repository.CredentialRepository
}

func NewCredentialService(cr repository.CredentialRepository) CredentialService {
	return &credentialService{cr: cr}
}

func (s *credentialService) List(ctx context.Context) ([]*models.PlatformCredential, error) {
	creds, err := s.cr.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, cred := range creds {
		cred.AccessToken = ""
		delete(cred.Extras, models.ExtraRefreshToken)
	}
	return creds, nil
}

func (s *credentialService) Disconnect(ctx context.Context, platform string) error {
	return s.cr.Remove(ctx, platform)
}
