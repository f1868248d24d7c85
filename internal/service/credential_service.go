package service

import (
	"context"
	"fmt"

	config "github.com/marqetly/marqetly/configs"
	"github.com/marqetly/marqetly/internal/models"
	"github.com/marqetly/marqetly/internal/repository"
	"github.com/marqetly/marqetly/pkg/oauth1"
	"github.com/marqetly/marqetly/pkg/utils"
)

// CredentialService resolves publisher credentials from the secret store in
// one place, instead of lookups scattered through the publishers.
type CredentialService interface {
	TwitterCredentials(ctx context.Context) (oauth1.Credentials, []string, error)
	GetSecret(ctx context.Context, name string) (string, bool, error)
}

type credentialService struct {
	cfg config.Config
	sr  repository.SecretRepository
}

func NewCredentialService(cfg config.Config, sr repository.SecretRepository) CredentialService {
	return &credentialService{cfg: cfg, sr: sr}
}

// GetSecret returns the decrypted secret value, reporting absence separately
// from lookup errors.
func (s *credentialService) GetSecret(ctx context.Context, name string) (string, bool, error) {
	secret, err := s.sr.GetByName(ctx, name)
	if err != nil {
		return "", false, err
	}
	if secret == nil {
		return "", false, nil
	}

	value, err := utils.Decrypt(secret.Value, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", false, fmt.Errorf("decrypting secret %s: %w", name, err)
	}
	return value, true, nil
}

// TwitterCredentials loads the four OAuth1 fields. The second return value
// names every secret that is absent or blank; credentials are only usable
// when it is empty.
func (s *credentialService) TwitterCredentials(ctx context.Context) (oauth1.Credentials, []string, error) {
	names := []string{
		models.SecretTwitterAPIKey,
		models.SecretTwitterAPISecret,
		models.SecretTwitterAccessToken,
		models.SecretTwitterAccessSecret,
	}

	values := make(map[string]string, len(names))
	var missing []string
	for _, name := range names {
		value, ok, err := s.GetSecret(ctx, name)
		if err != nil {
			return oauth1.Credentials{}, nil, err
		}
		if !ok || value == "" {
			missing = append(missing, name)
			continue
		}
		values[name] = value
	}
	if len(missing) > 0 {
		return oauth1.Credentials{}, missing, nil
	}

	return oauth1.Credentials{
		ConsumerKey:    values[models.SecretTwitterAPIKey],
		ConsumerSecret: values[models.SecretTwitterAPISecret],
		AccessToken:    values[models.SecretTwitterAccessToken],
		AccessSecret:   values[models.SecretTwitterAccessSecret],
	}, nil, nil
}
