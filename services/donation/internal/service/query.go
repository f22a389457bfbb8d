package service

import (
	"context"

	"example.com/pet-adoption/services/donation/internal/domain"
	"example.com/pet-adoption/services/donation/internal/repository"
)

// =============================================================================
// QueryService
// =============================================================================

const (
	// defaultPageSize — размер страницы по умолчанию.
	defaultPageSize = 20

	// maxPageSize — максимальный размер страницы.
	maxPageSize = 100
)

// ListDonationsRequest — запрос списка пожертвований донора.
type ListDonationsRequest struct {
	DonorID string                 // ID донора (из JWT)
	Status  *domain.DonationStatus // Опциональный фильтр по статусу
	Page    int                    // Номер страницы, начиная с 1
	Limit   int                    // Размер страницы
}

// ListDonationsResult — страница пожертвований.
type ListDonationsResult struct {
	Donations  []*domain.Donation
	TotalCount int64
	Page       int
	Limit      int
}

// QueryService — read-only операции над пожертвованиями.
// Статусы не меняет и к шлюзу не обращается: отдаёт состояние из БД.
type QueryService struct {
	repo repository.DonationRepository
}

// NewQueryService создаёт сервис чтения пожертвований.
func NewQueryService(repo repository.DonationRepository) *QueryService {
	return &QueryService{repo: repo}
}

// GetByID возвращает пожертвование по ID с проверкой владельца.
func (s *QueryService) GetByID(ctx context.Context, id, donorID string) (*domain.Donation, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if donorID != "" && d.DonorID != donorID {
		// Чужое пожертвование неотличимо от несуществующего:
		// не раскрываем сам факт его существования
		return nil, domain.ErrDonationNotFound
	}

	return d, nil
}

// GetByIntentID возвращает пожертвование по ID платёжного намерения.
func (s *QueryService) GetByIntentID(ctx context.Context, intentID, donorID string) (*domain.Donation, error) {
	d, err := s.repo.GetByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if donorID != "" && d.DonorID != donorID {
		return nil, domain.ErrDonationNotFound
	}

	return d, nil
}

// List возвращает пожертвования донора с пагинацией.
func (s *QueryService) List(ctx context.Context, req ListDonationsRequest) (*ListDonationsResult, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = defaultPageSize
	}
	if req.Limit > maxPageSize {
		req.Limit = maxPageSize
	}

	offset := (req.Page - 1) * req.Limit

	donations, total, err := s.repo.ListByDonor(ctx, req.DonorID, req.Status, offset, req.Limit)
	if err != nil {
		return nil, err
	}

	return &ListDonationsResult{
		Donations:  donations,
		TotalCount: total,
		Page:       req.Page,
		Limit:      req.Limit,
	}, nil
}
