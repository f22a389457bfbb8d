// Package repository содержит реализацию доступа к данным для Donation Service.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/pet-adoption/pkg/outbox"
	"example.com/pet-adoption/services/donation/internal/domain"
)

// DonationRepository определяет интерфейс для работы с пожертвованиями в БД.
type DonationRepository interface {
	// Create создаёт новое пожертвование.
	// Возвращает domain.ErrDuplicateIntent, если external_intent_id уже существует.
	Create(ctx context.Context, donation *domain.Donation) error

	// GetByID возвращает пожертвование по ID.
	GetByID(ctx context.Context, id string) (*domain.Donation, error)

	// GetByIntentID возвращает пожертвование по ID платёжного намерения.
	GetByIntentID(ctx context.Context, intentID string) (*domain.Donation, error)

	// ListByDonor возвращает пожертвования донора с пагинацией.
	// status может быть nil для выборки во всех статусах.
	// Возвращает список и общее количество записей (для пагинации).
	ListByDonor(ctx context.Context, donorID string, status *domain.DonationStatus, offset, limit int) ([]*domain.Donation, int64, error)

	// ApplyTransition атомарно применяет переход статуса через условный UPDATE
	// по (id, version, status='PENDING') и записывает уведомление в outbox
	// в той же транзакции. Возвращает (false, nil), если условие не совпало —
	// конкурентный переход уже применён или статус терминален.
	ApplyTransition(ctx context.Context, d *domain.Donation, target domain.DonationStatus, chargeID *string, record *outbox.Outbox) (bool, error)
}

// DonationModel — GORM модель для таблицы donations.
// Отделена от доменной сущности для гибкости.
type DonationModel struct {
	ID               string    `gorm:"column:id;type:varchar(36);primaryKey"`
	DonorID          string    `gorm:"column:donor_id;type:varchar(36);not null;index"`
	Amount           int64     `gorm:"column:amount;not null"`
	Currency         string    `gorm:"column:currency;type:varchar(3);not null"`
	ExternalIntentID string    `gorm:"column:external_intent_id;type:varchar(64);not null;uniqueIndex"`
	ExternalChargeID *string   `gorm:"column:external_charge_id;type:varchar(64)"`
	Status           string    `gorm:"column:status;type:varchar(20);not null;index"`
	Version          int64     `gorm:"column:version;not null;default:0"`
	Message          *string   `gorm:"column:message;type:text"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (DonationModel) TableName() string {
	return "donations"
}

// toDomain конвертирует GORM модель в доменную сущность.
func (m *DonationModel) toDomain() *domain.Donation {
	d := &domain.Donation{
		ID:               m.ID,
		DonorID:          m.DonorID,
		Amount:           m.Amount,
		Currency:         m.Currency,
		ExternalIntentID: m.ExternalIntentID,
		ExternalChargeID: m.ExternalChargeID,
		Status:           domain.DonationStatus(m.Status),
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}

	if m.Message != nil {
		d.Message = *m.Message
	}

	return d
}

// modelFromDomain конвертирует доменную сущность в GORM модель.
func modelFromDomain(d *domain.Donation) *DonationModel {
	model := &DonationModel{
		ID:               d.ID,
		DonorID:          d.DonorID,
		Amount:           d.Amount,
		Currency:         d.Currency,
		ExternalIntentID: d.ExternalIntentID,
		ExternalChargeID: d.ExternalChargeID,
		Status:           string(d.Status),
		Version:          d.Version,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}

	// Пустое сообщение -> NULL
	if d.Message != "" {
		model.Message = &d.Message
	}

	return model
}

// donationRepository — GORM реализация DonationRepository.
type donationRepository struct {
	db *gorm.DB
}

// NewDonationRepository создаёт новый репозиторий пожертвований.
func NewDonationRepository(db *gorm.DB) DonationRepository {
	return &donationRepository{db: db}
}

// Create создаёт новое пожертвование.
func (r *donationRepository) Create(ctx context.Context, donation *domain.Donation) error {
	model := modelFromDomain(donation)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		// Дубликат external_intent_id (MySQL error 1062)
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicateIntent
		}
		return err
	}

	donation.CreatedAt = model.CreatedAt
	donation.UpdatedAt = model.UpdatedAt

	return nil
}

// GetByID возвращает пожертвование по ID.
func (r *donationRepository) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	var model DonationModel

	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDonationNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// GetByIntentID возвращает пожертвование по ID платёжного намерения.
func (r *donationRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Donation, error) {
	var model DonationModel

	if err := r.db.WithContext(ctx).
		Where("external_intent_id = ?", intentID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDonationNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// ListByDonor возвращает пожертвования донора с пагинацией.
func (r *donationRepository) ListByDonor(ctx context.Context, donorID string, status *domain.DonationStatus, offset, limit int) ([]*domain.Donation, int64, error) {
	var models []DonationModel
	var totalCount int64

	query := r.db.WithContext(ctx).Model(&DonationModel{}).Where("donor_id = ?", donorID)

	// Опциональный фильтр по статусу
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}

	// Подсчёт общего количества записей (до пагинации)
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	// Пагинация и сортировка (новые пожертвования первыми)
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	donations := make([]*domain.Donation, len(models))
	for i := range models {
		donations[i] = models[i].toDomain()
	}

	return donations, totalCount, nil
}

// errTransitionNotApplied — внутренний маркер для отката транзакции
// при несовпадении условия CAS. Наружу не выходит.
var errTransitionNotApplied = errors.New("переход не применён: версия или статус не совпали")

// ApplyTransition атомарно применяет переход статуса.
//
// Условный UPDATE по (id, version, status='PENDING') — оптимистичная блокировка:
// из двух конкурентных переходов выигрывает ровно один, второй получает
// RowsAffected=0 и откатывается вместе с записью outbox.
func (r *donationRepository) ApplyTransition(ctx context.Context, d *domain.Donation, target domain.DonationStatus, chargeID *string, record *outbox.Outbox) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     string(target),
			"version":    d.Version + 1,
			"updated_at": time.Now(),
		}
		if chargeID != nil {
			updates["external_charge_id"] = *chargeID
		}

		result := tx.Model(&DonationModel{}).
			Where("id = ? AND version = ? AND status = ?", d.ID, d.Version, string(domain.StatusPending)).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}

		// Условие не совпало — конкурентный переход успел раньше
		if result.RowsAffected == 0 {
			return errTransitionNotApplied
		}

		// Уведомление пишется в той же транзакции (transactional outbox):
		// либо переход и уведомление фиксируются вместе, либо ни одно из них
		if record != nil {
			if err := tx.Create(outbox.ModelFromDomain(record)).Error; err != nil {
				return err
			}
		}

		return nil
	})

	if errors.Is(err, errTransitionNotApplied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// isDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
// MySQL возвращает ошибку с кодом 1062 при попытке вставить дубликат.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// GORM v2 имеет ErrDuplicatedKey, также проверяем текст ошибки MySQL
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
