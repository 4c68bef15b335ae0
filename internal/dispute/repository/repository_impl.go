package repository

import (
	"context"
	"errors"

	"github.com/pazarlabs/pazar/internal/dispute/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindCaseByTicket(ctx context.Context, db *gorm.DB, ticketID string) (*domain.Case, error) {
	var c domain.Case
	err := db.WithContext(ctx).Where("ticket_id = ?", ticketID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) InsertCase(ctx context.Context, db *gorm.DB, c *domain.Case) error {
	return db.WithContext(ctx).Create(c).Error
}

func (r *repo) UpdateCase(ctx context.Context, db *gorm.DB, c *domain.Case) error {
	return db.WithContext(ctx).Save(c).Error
}

func (r *repo) FindTicket(ctx context.Context, db *gorm.DB, ticketID string) (*domain.Ticket, error) {
	var t domain.Ticket
	err := db.WithContext(ctx).Where("id = ?", ticketID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) UpdateTicketStatus(ctx context.Context, db *gorm.DB, ticketID, status string) error {
	return db.WithContext(ctx).Model(&domain.Ticket{}).
		Where("id = ?", ticketID).
		Update("status", status).Error
}

func (r *repo) InsertAction(ctx context.Context, db *gorm.DB, action *domain.Action) error {
	return db.WithContext(ctx).Create(action).Error
}

func (r *repo) FindActionByKey(ctx context.Context, db *gorm.DB, key string) (*domain.Action, error) {
	var a domain.Action
	err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, msg *domain.TicketMessage) error {
	return db.WithContext(ctx).Create(msg).Error
}
