package app

import (
	"context"
	"fmt"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/user"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// UserService manages back-office staff accounts.
type UserService struct {
	repo user.Repository
}

func NewUserService(repo user.Repository) *UserService {
	return &UserService{repo: repo}
}

// Create registers a staff account. Emails are unique.
func (s *UserService) Create(ctx context.Context, name, email string, role user.Role, passwordHash string) (*user.User, error) {
	taken, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return nil, fmt.Errorf("%w: %s", user.ErrEmailTaken, taken.Email)
	}
	u, err := user.New(name, email, role, passwordHash)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.repo.FindOne(ctx, user.NewByEmail(email))
}

func (s *UserService) ChangeRole(ctx context.Context, id domain.EntityID, role user.Role) error {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := u.ChangeRole(role); err != nil {
		return err
	}
	return s.repo.Update(ctx, u)
}

// ListByRole returns the active accounts holding any of roles.
func (s *UserService) ListByRole(ctx context.Context, roles ...user.Role) ([]*user.User, error) {
	spec, err := query.And[user.User](user.NewByRole(roles...), user.NewActive())
	if err != nil {
		return nil, err
	}
	return s.repo.FindNoTracking(ctx, spec)
}

func (s *UserService) Deactivate(ctx context.Context, id domain.EntityID) error {
	return s.repo.SoftDelete(ctx, id)
}
