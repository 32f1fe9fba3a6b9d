package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taska/internal/model"
)

// MemberRepository handles CRUD for team members.
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Create(ctx context.Context, member *model.TeamMember) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (r *MemberRepository) List(ctx context.Context) ([]model.TeamMember, error) {
	var members []model.TeamMember
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (r *MemberRepository) Get(ctx context.Context, id string) (model.TeamMember, error) {
	var member model.TeamMember
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.TeamMember{}, fmt.Errorf("member %s: %w", id, model.ErrNotFound)
		}
		return model.TeamMember{}, fmt.Errorf("find member: %w", err)
	}
	return member, nil
}

func (r *MemberRepository) FindByTelegramID(ctx context.Context, telegramID int64) (model.TeamMember, error) {
	var member model.TeamMember
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.TeamMember{}, fmt.Errorf("telegram user %d: %w", telegramID, model.ErrNotFound)
		}
		return model.TeamMember{}, fmt.Errorf("find member: %w", err)
	}
	return member, nil
}

// LinkTelegram stores the chat a member receives notifications in. A member
// linked to a different chat is refused; the chat is unlinked from anyone else.
func (r *MemberRepository) LinkTelegram(ctx context.Context, id string, telegramID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member model.TeamMember
		if err := tx.Where("id = ?", id).First(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("member %s: %w", id, model.ErrNotFound)
			}
			return fmt.Errorf("find member: %w", err)
		}
		if member.TelegramID == telegramID {
			return nil
		}
		if member.TelegramID != 0 {
			return fmt.Errorf("member %s: %w", id, model.ErrAlreadyLinked)
		}
		if err := tx.Model(&model.TeamMember{}).Where("telegram_id = ? AND id <> ?", telegramID, id).
			Update("telegram_id", 0).Error; err != nil {
			return fmt.Errorf("unlink telegram: %w", err)
		}
		if err := tx.Model(&model.TeamMember{}).Where("id = ?", id).Update("telegram_id", telegramID).Error; err != nil {
			return fmt.Errorf("link telegram: %w", err)
		}
		return nil
	})
}

func (r *MemberRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.TeamMember{})
	if res.Error != nil {
		return fmt.Errorf("delete member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("member %s: %w", id, model.ErrNotFound)
	}
	return nil
}
