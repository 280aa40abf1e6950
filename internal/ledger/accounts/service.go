package accounts

import (
	"context"
	"fmt"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// Create registers a new chart of accounts node.
func (s *Service) Create(ctx context.Context, code, name string, typ AccountType) (Account, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return Account{}, fmt.Errorf("accounts: code and name required")
	}
	if !typ.Valid() {
		return Account{}, ErrInvalidType
	}
	return s.repo.Insert(ctx, Account{Code: code, Name: name, Type: typ, IsActive: true})
}

// Deactivate hides the account from new postings without touching history.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

// Activate re-enables the account for posting.
func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, true)
}

// Delete removes an account that was never posted against. Accounts with
// journal history can only be deactivated.
func (s *Service) Delete(ctx context.Context, id int64) error {
	refs, err := s.repo.CountLineReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrReferenced
	}
	return s.repo.Delete(ctx, id)
}
