package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/security"
)

// AdminRegisterRequest contains the credentials for the dev-only admin registration flow.
type AdminRegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// AdminRegisterService creates admin profiles outside production.
type AdminRegisterService interface {
	Register(ctx context.Context, req AdminRegisterRequest) (*ProfileDTO, error)
}

type AdminRegisterServiceParams struct {
	Tx             db.TxRunner
	PasswordConfig config.PasswordConfig
}

type adminRegisterService struct {
	tx          db.TxRunner
	passwordCfg config.PasswordConfig
}

func NewAdminRegisterService(params AdminRegisterServiceParams) (AdminRegisterService, error) {
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &adminRegisterService{tx: params.Tx, passwordCfg: params.PasswordConfig}, nil
}

func (s *adminRegisterService) Register(ctx context.Context, req AdminRegisterRequest) (*ProfileDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email é obrigatório")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "senha inválida")
	}

	var created *ProfileDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewProfileRepository(tx)

		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email já cadastrado")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check profile email")
		}

		profile := &models.Profile{
			UserID:       uuid.New(),
			Email:        email,
			PasswordHash: &passwordHash,
			Role:         enums.RoleAdmin,
		}
		if err := repo.Create(ctx, profile); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create profile")
		}
		created = FromModel(profile)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
