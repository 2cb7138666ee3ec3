// Package sqlite is the relational rendition of the Persistence Store, backed
// by GORM over a pure-Go SQLite driver.
package sqlite

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ contract.IStore = (*Store)(nil)

type Store struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

// Open opens (or creates) the database file and migrates the schema.
// Use "file::memory:?cache=shared" for a throwaway database.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	if err = db.AutoMigrate(&userModel{}, &chatModel{}, &participantModel{}, &messageModel{}); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer.
	sqlDB.SetMaxOpenConns(1)
	return &Store{db: db, log: log, now: time.Now}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.log.Info("Closing SQLite...")
	return sqlDB.Close()
}

func notFound(err error, target error) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, username string) (domain.User, error) {
	model := userModel{Username: username, CreatedAt: s.now().UTC()}
	err := s.db.WithContext(ctx).Create(&model).Error
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.User{}, errors.ErrUserAlreadyExists
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(model), nil
}

func (s *Store) GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	var model userModel
	if err := s.db.WithContext(ctx).First(&model, int64(id)).Error; err != nil {
		return domain.User{}, notFound(err, errors.ErrUserNotFound)
	}
	return toUser(model), nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) error {
	updates := map[string]any{"is_online": user.IsOnline}
	if !user.LastSeen.IsZero() {
		updates["last_seen"] = user.LastSeen.UTC()
	}
	result := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", int64(user.ID)).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

// CreateChat stores the chat and its participants in one transaction.
// Creating a direct chat for a pair that already has one returns the existing chat.
func (s *Store) CreateChat(ctx context.Context, chat domain.Chat) (domain.Chat, error) {
	participants := lo.UniqBy(chat.Participants, func(p domain.Participant) domain.UserID { return p.UserID })
	direct := !chat.IsGroup && len(participants) == 2
	if direct {
		if existing, err := s.FindDirectChat(ctx, participants[0].UserID, participants[1].UserID); err == nil {
			return existing, nil
		}
	}

	now := s.now().UTC()
	model := chatModel{
		Name:      chat.Name,
		IsGroup:   chat.IsGroup,
		CreatedBy: int64(chat.CreatedBy),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if direct {
		model.DirectKey = lo.ToPtr(directKey(participants[0].UserID, participants[1].UserID))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		rows := lo.Map(participants, func(p domain.Participant, _ int) participantModel {
			return participantModel{
				ChatID:   model.ID,
				UserID:   int64(p.UserID),
				Role:     string(lo.CoalesceOrEmpty(p.Role, domain.RoleMember)),
				JoinedAt: now,
			}
		})
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if stderrors.Is(err, gorm.ErrDuplicatedKey) && direct {
		return s.FindDirectChat(ctx, participants[0].UserID, participants[1].UserID)
	}
	if err != nil {
		return domain.Chat{}, err
	}
	return s.GetChatByID(ctx, domain.ChatID(model.ID))
}

func (s *Store) GetChatByID(ctx context.Context, id domain.ChatID) (domain.Chat, error) {
	var model chatModel
	if err := s.db.WithContext(ctx).First(&model, int64(id)).Error; err != nil {
		return domain.Chat{}, notFound(err, errors.ErrChatNotFound)
	}
	chats, err := s.hydrate(ctx, []chatModel{model})
	if err != nil {
		return domain.Chat{}, err
	}
	return chats[0], nil
}

// GetUserChats returns the user's chats, most recently active first.
func (s *Store) GetUserChats(ctx context.Context, userID domain.UserID) ([]domain.Chat, error) {
	var models []chatModel
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_participants p ON p.chat_id = chats.id").
		Where("p.user_id = ?", int64(userID)).
		Order("chats.updated_at DESC, chats.id DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, models)
}

func (s *Store) GetAllChats(ctx context.Context) ([]domain.Chat, error) {
	var models []chatModel
	if err := s.db.WithContext(ctx).Order("updated_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return s.hydrate(ctx, models)
}

func (s *Store) FindDirectChat(ctx context.Context, a, b domain.UserID) (domain.Chat, error) {
	var model chatModel
	err := s.db.WithContext(ctx).Where("direct_key = ?", directKey(a, b)).First(&model).Error
	if err != nil {
		return domain.Chat{}, notFound(err, errors.ErrChatNotFound)
	}
	chats, err := s.hydrate(ctx, []chatModel{model})
	if err != nil {
		return domain.Chat{}, err
	}
	return chats[0], nil
}

func (s *Store) AddParticipant(ctx context.Context, participant domain.Participant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat chatModel
		if err := tx.First(&chat, int64(participant.ChatID)).Error; err != nil {
			return notFound(err, errors.ErrChatNotFound)
		}
		if !chat.IsGroup {
			return errors.Invalid(fmt.Errorf("chat %d is a direct chat", participant.ChatID))
		}
		err := tx.Create(&participantModel{
			ChatID:   int64(participant.ChatID),
			UserID:   int64(participant.UserID),
			Role:     string(lo.CoalesceOrEmpty(participant.Role, domain.RoleMember)),
			JoinedAt: s.now().UTC(),
		}).Error
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.ErrAlreadyParticipant
		}
		return err
	})
}

func (s *Store) RemoveParticipant(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error {
	var chat chatModel
	if err := s.db.WithContext(ctx).First(&chat, int64(chatID)).Error; err != nil {
		return notFound(err, errors.ErrChatNotFound)
	}
	result := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", int64(chatID), int64(userID)).
		Delete(&participantModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.ErrParticipantMissing
	}
	return nil
}

func (s *Store) DeleteChat(ctx context.Context, id domain.ChatID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&chatModel{}, int64(id))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errors.ErrChatNotFound
		}
		if err := tx.Where("chat_id = ?", int64(id)).Delete(&participantModel{}).Error; err != nil {
			return err
		}
		return tx.Where("chat_id = ?", int64(id)).Delete(&messageModel{}).Error
	})
}

func (s *Store) CreateMessage(ctx context.Context, message domain.Message) (domain.Message, error) {
	model := messageModel{
		ChatID:    int64(message.ChatID),
		SenderID:  int64(message.SenderID),
		Content:   message.Content,
		Status:    string(lo.CoalesceOrEmpty(message.Status, domain.StatusSent)),
		CreatedAt: lo.CoalesceOrEmpty(message.CreatedAt, s.now()).UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat chatModel
		if err := tx.First(&chat, model.ChatID).Error; err != nil {
			return notFound(err, errors.ErrChatNotFound)
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return tx.Model(&chatModel{}).Where("id = ?", model.ChatID).
			Updates(map[string]any{"last_message_id": model.ID, "updated_at": model.CreatedAt}).Error
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(model), nil
}

func (s *Store) GetMessageByID(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	var model messageModel
	if err := s.db.WithContext(ctx).First(&model, int64(id)).Error; err != nil {
		return domain.Message{}, notFound(err, errors.ErrMessageNotFound)
	}
	return toMessage(model), nil
}

func (s *Store) UpdateMessageStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) (domain.Message, error) {
	result := s.db.WithContext(ctx).Model(&messageModel{}).Where("id = ?", int64(id)).Update("status", string(status))
	if result.Error != nil {
		return domain.Message{}, result.Error
	}
	if result.RowsAffected == 0 {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	return s.GetMessageByID(ctx, id)
}

// GetChatMessages returns one page of a chat, newest first. Pages start at 1.
func (s *Store) GetChatMessages(ctx context.Context, chatID domain.ChatID, page, size int) ([]domain.Message, error) {
	var chat chatModel
	if err := s.db.WithContext(ctx).Select("id").First(&chat, int64(chatID)).Error; err != nil {
		return nil, notFound(err, errors.ErrChatNotFound)
	}
	var models []messageModel
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", int64(chatID)).
		Order("id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(models, func(m messageModel, _ int) domain.Message { return toMessage(m) }), nil
}

// hydrate attaches participants and last messages with one query each.
func (s *Store) hydrate(ctx context.Context, models []chatModel) ([]domain.Chat, error) {
	if len(models) == 0 {
		return []domain.Chat{}, nil
	}
	ids := lo.Map(models, func(m chatModel, _ int) int64 { return m.ID })

	var participants []participantModel
	if err := s.db.WithContext(ctx).Where("chat_id IN ?", ids).Order("joined_at, user_id").Find(&participants).Error; err != nil {
		return nil, err
	}
	byChat := lo.GroupBy(participants, func(p participantModel) int64 { return p.ChatID })

	lastIDs := lo.FilterMap(models, func(m chatModel, _ int) (int64, bool) {
		if m.LastMessageID == nil {
			return 0, false
		}
		return *m.LastMessageID, true
	})
	lastByID := map[int64]messageModel{}
	if len(lastIDs) > 0 {
		var last []messageModel
		if err := s.db.WithContext(ctx).Where("id IN ?", lastIDs).Find(&last).Error; err != nil {
			return nil, err
		}
		lastByID = lo.KeyBy(last, func(m messageModel) int64 { return m.ID })
	}

	return lo.Map(models, func(m chatModel, _ int) domain.Chat {
		var last *messageModel
		if m.LastMessageID != nil {
			if msg, ok := lastByID[*m.LastMessageID]; ok {
				last = &msg
			}
		}
		return toChat(m, byChat[m.ID], last)
	}), nil
}
