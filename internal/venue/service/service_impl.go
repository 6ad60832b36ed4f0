package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tipdrop/tipdrop/internal/gateway"
	"github.com/tipdrop/tipdrop/internal/vault"
	"github.com/tipdrop/tipdrop/internal/venue/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Vault *vault.Vault
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	vault *vault.Vault
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("venue.service"),
		genID: p.GenID,
		repo:  p.Repo,
		vault: p.Vault,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateVenueRequest) (*domain.Venue, error) {
	now := time.Now().UTC()
	venue := &domain.Venue{
		ID:          s.genID.Generate(),
		Name:        req.Name,
		Slug:        slug.Make(req.Name),
		Status:      domain.StatusActive,
		Environment: domain.EnvironmentSandbox,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, venue); err != nil {
		return nil, err
	}
	return venue, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Venue, error) {
	venue, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if venue == nil {
		return nil, domain.ErrNotFound
	}
	return venue, nil
}

// UpsertCredentials stores a venue's Midtrans keys, always encrypted.
// Supplying new keys replaces whatever was there, including legacy
// plaintext rows.
func (s *Service) UpsertCredentials(ctx context.Context, id snowflake.ID, req domain.UpsertCredentialsRequest) error {
	venue, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if venue == nil {
		return domain.ErrNotFound
	}

	serverKey, err := s.vault.Encrypt(strings.TrimSpace(req.ServerKey))
	if err != nil {
		return fmt.Errorf("encrypt server key: %w", err)
	}
	clientKey, err := s.vault.Encrypt(strings.TrimSpace(req.ClientKey))
	if err != nil {
		return fmt.Errorf("encrypt client key: %w", err)
	}

	venue.ServerKey = serverKey
	venue.ClientKey = clientKey
	venue.MidtransConnected = true
	if req.MerchantID != "" {
		venue.MerchantID = req.MerchantID
	}
	if req.Environment != "" {
		if req.Environment != domain.EnvironmentSandbox && req.Environment != domain.EnvironmentProduction {
			return fmt.Errorf("%w: unknown environment %q", domain.ErrPaymentConfig, req.Environment)
		}
		venue.Environment = req.Environment
	}
	venue.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, venue); err != nil {
		return err
	}
	s.log.Info("venue credentials updated",
		zap.String("venue_id", venue.ID.String()),
		zap.String("environment", venue.Environment),
	)
	return nil
}

func (s *Service) Credentials(ctx context.Context, id snowflake.ID) (gateway.Credentials, error) {
	venue, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return gateway.Credentials{}, err
	}
	if venue == nil {
		return gateway.Credentials{}, domain.ErrNotFound
	}
	if venue.ServerKey == "" {
		return gateway.Credentials{}, fmt.Errorf("%w: no server key configured", domain.ErrPaymentConfig)
	}

	serverKey, err := s.recoverKey(venue.ServerKey)
	if err != nil {
		s.log.Error("server key decrypt failed", zap.String("venue_id", venue.ID.String()), zap.Error(err))
		return gateway.Credentials{}, fmt.Errorf("%w: %v", domain.ErrPaymentConfig, err)
	}
	clientKey := ""
	if venue.ClientKey != "" {
		clientKey, err = s.recoverKey(venue.ClientKey)
		if err != nil {
			s.log.Error("client key decrypt failed", zap.String("venue_id", venue.ID.String()), zap.Error(err))
			return gateway.Credentials{}, fmt.Errorf("%w: %v", domain.ErrPaymentConfig, err)
		}
	}

	return gateway.Credentials{
		ServerKey:  serverKey,
		ClientKey:  clientKey,
		MerchantID: venue.MerchantID,
		Production: venue.Environment == domain.EnvironmentProduction,
	}, nil
}

// recoverKey handles both vault ciphertext and legacy plaintext rows.
func (s *Service) recoverKey(stored string) (string, error) {
	if vault.IsEncrypted(stored) {
		return s.vault.Decrypt(stored)
	}
	return stored, nil
}
