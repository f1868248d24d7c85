package service

import (
	"context"
	"errors"
	"log/slog"

	config "github.com/marqetly/marqetly/configs"
	"github.com/marqetly/marqetly/internal/repository"
	"github.com/marqetly/marqetly/pkg/utils"
)

// SecretsService is the write side of the credential store. Values are
// encrypted before they reach the database and are never returned by List.
type SecretsService interface {
	Set(ctx context.Context, name, value string) error
	ListNames(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, name string) error
}

type secretsService struct {
	cfg config.Config
	sr  repository.SecretRepository
}

func NewSecretsService(cfg config.Config, sr repository.SecretRepository) SecretsService {
	return &secretsService{cfg: cfg, sr: sr}
}

func (s *secretsService) Set(ctx context.Context, name, value string) error {
	if name == "" {
		err := errors.New("secret name cannot be empty")
		slog.Info(err.Error())
		return err
	}
	if value == "" {
		err := errors.New("secret value cannot be empty")
		slog.Info(err.Error())
		return err
	}

	encrypted, err := utils.Encrypt([]byte(value), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	return s.sr.Upsert(ctx, name, encrypted)
}

func (s *secretsService) ListNames(ctx context.Context) ([]string, error) {
	return s.sr.ListNames(ctx)
}

func (s *secretsService) Remove(ctx context.Context, name string) error {
	if name == "" {
		err := errors.New("secret name cannot be empty")
		slog.Info(err.Error())
		return err
	}
	return s.sr.Remove(ctx, name)
}
