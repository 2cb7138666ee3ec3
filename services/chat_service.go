package services

import (
	"chat-hub/cache"
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/moderation"
	"chat-hub/runtime"
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type IChatService interface {
	CreateUser(ctx context.Context, username string) (domain.User, error)
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
	GetUserChats(ctx context.Context, userID domain.UserID) ([]domain.Chat, error)
	GetAllChats(ctx context.Context) ([]domain.Chat, error)
	GetChat(ctx context.Context, id domain.ChatID) (domain.Chat, error)
	GetChatMessages(ctx context.Context, chatID domain.ChatID, page, size int) ([]domain.Message, error)
	GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error)
	CreateChat(ctx context.Context, cmd CreateChatCommand) (domain.Chat, error)
	GetOrCreateDirectChat(ctx context.Context, a, b domain.UserID) (domain.Chat, error)
	AddParticipant(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error
	RemoveParticipant(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error
	DeleteChat(ctx context.Context, chatID domain.ChatID) error
	SendMessage(ctx context.Context, cmd SendMessageCommand) (domain.Message, error)
	UpdateMessageStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) (domain.Message, error)
}

type CreateChatCommand struct {
	Name         string          `json:"name" validate:"required_if=IsGroup true,max=200"`
	IsGroup      bool            `json:"isGroup"`
	CreatedBy    domain.UserID   `json:"createdBy" validate:"gt=0"`
	Participants []domain.UserID `json:"participants" validate:"dive,gt=0"`
}

type SendMessageCommand struct {
	ChatID   domain.ChatID `json:"chatId" validate:"gt=0"`
	SenderID domain.UserID `json:"senderId" validate:"gt=0"`
	Content  string        `json:"content" validate:"required,max=4000"`
}

type createUserRequest struct {
	Username string `validate:"required,max=100"`
}

type directChatRequest struct {
	A domain.UserID `validate:"gt=0"`
	B domain.UserID `validate:"gt=0,nefield=A"`
}

type participantRequest struct {
	ChatID domain.ChatID `validate:"gt=0"`
	UserID domain.UserID `validate:"gt=0"`
}

// ChatService is the write path and the cached read path over the store.
// Every write removes the cache keys it could have made stale before its
// notifications go out.
type ChatService struct {
	log        *slog.Logger
	store      contract.IStore
	cache      *cache.Cache
	tiers      cache.Tiers
	dispatcher contract.IDispatcher
	presence   *runtime.Presence
	membership *runtime.Membership
	filter     *moderation.Filter
}

// NewChatService builds the service. filter may be nil, content is then stored as sent.
func NewChatService(log *slog.Logger, store contract.IStore, c *cache.Cache, tiers cache.Tiers,
	dispatcher contract.IDispatcher, presence *runtime.Presence, membership *runtime.Membership,
	filter *moderation.Filter) *ChatService {
	return &ChatService{
		log:        log,
		store:      store,
		cache:      c,
		tiers:      tiers,
		dispatcher: dispatcher,
		presence:   presence,
		membership: membership,
		filter:     filter,
	}
}

func (s *ChatService) CreateUser(ctx context.Context, username string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if err := check(createUserRequest{Username: username}); err != nil {
		return domain.User{}, err
	}
	user, err := s.store.CreateUser(ctx, username)
	if err != nil {
		return domain.User{}, errors.Transient("create user", err)
	}
	s.log.Info("User created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *ChatService) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	return cache.ReadThrough(ctx, s.cache, cache.UserKey(id), s.tiers.User, func(ctx context.Context) (domain.User, error) {
		return s.store.GetUserByID(ctx, id)
	})
}

// InvalidateUser is called once a presence write-back reached the store.
func (s *ChatService) InvalidateUser(id domain.UserID) {
	s.cache.Invalidate(cache.UserKey(id))
}

func (s *ChatService) GetUserChats(ctx context.Context, userID domain.UserID) ([]domain.Chat, error) {
	return cache.ReadThrough(ctx, s.cache, cache.UserChatsKey(userID), s.tiers.UserChats, func(ctx context.Context) ([]domain.Chat, error) {
		return s.store.GetUserChats(ctx, userID)
	})
}

func (s *ChatService) GetAllChats(ctx context.Context) ([]domain.Chat, error) {
	return cache.ReadThrough(ctx, s.cache, cache.AllChatsKey, s.tiers.AllChats, s.store.GetAllChats)
}

func (s *ChatService) GetChat(ctx context.Context, id domain.ChatID) (domain.Chat, error) {
	return cache.ReadThrough(ctx, s.cache, cache.ChatKey(id), s.tiers.Chat, func(ctx context.Context) (domain.Chat, error) {
		return s.store.GetChatByID(ctx, id)
	})
}

// GetChatMessages pages newest first. Pages start at 1 and size is clamped to 1..MaxPageSize.
func (s *ChatService) GetChatMessages(ctx context.Context, chatID domain.ChatID, page, size int) ([]domain.Message, error) {
	page, size = ClampPage(page, size)
	key := cache.ChatMessagesKey(chatID, page, size)
	return cache.ReadThrough(ctx, s.cache, key, s.tiers.ChatMessages, func(ctx context.Context) ([]domain.Message, error) {
		return s.store.GetChatMessages(ctx, chatID, page, size)
	})
}

func (s *ChatService) GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	return cache.ReadThrough(ctx, s.cache, cache.MessageKey(id), s.tiers.Message, func(ctx context.Context) (domain.Message, error) {
		return s.store.GetMessageByID(ctx, id)
	})
}

func (s *ChatService) CreateChat(ctx context.Context, cmd CreateChatCommand) (domain.Chat, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	if err := check(cmd); err != nil {
		return domain.Chat{}, err
	}
	ids := lo.Uniq(append([]domain.UserID{cmd.CreatedBy}, cmd.Participants...))
	if !cmd.IsGroup && len(ids) != 2 {
		return domain.Chat{}, errors.Invalid(stderrors.New("a direct chat has exactly two participants"))
	}
	if !cmd.IsGroup {
		return s.GetOrCreateDirectChat(ctx, ids[0], ids[1])
	}
	return s.createChat(ctx, cmd.Name, true, cmd.CreatedBy, ids)
}

// GetOrCreateDirectChat returns the chat of the pair, creating it once.
// Concurrent requests for the same pair, in either order, share one lookup;
// the store keeps one direct chat per pair for lookups that don't.
func (s *ChatService) GetOrCreateDirectChat(ctx context.Context, a, b domain.UserID) (domain.Chat, error) {
	if err := check(directChatRequest{A: a, B: b}); err != nil {
		return domain.Chat{}, err
	}
	return cache.ReadThrough(ctx, s.cache, cache.DirectChatKey(a, b), s.tiers.DirectChat,
		func(ctx context.Context) (domain.Chat, error) {
			chat, err := s.store.FindDirectChat(ctx, a, b)
			if err == nil {
				return chat, nil
			}
			if !stderrors.Is(err, errors.ErrChatNotFound) {
				return domain.Chat{}, errors.Transient("find direct chat", err)
			}
			return s.createChat(ctx, "", false, a, []domain.UserID{a, b})
		})
}

func (s *ChatService) createChat(ctx context.Context, name string, isGroup bool, createdBy domain.UserID, ids []domain.UserID) (domain.Chat, error) {
	for _, id := range ids {
		if _, err := s.store.GetUserByID(ctx, id); err != nil {
			return domain.Chat{}, errors.Transient("resolve participant", err)
		}
	}
	participants := lo.Map(ids, func(id domain.UserID, _ int) domain.Participant {
		role := domain.RoleMember
		if id == createdBy && isGroup {
			role = domain.RoleAdmin
		}
		return domain.Participant{UserID: id, Role: role}
	})
	chat, err := s.store.CreateChat(ctx, domain.Chat{
		Name:         name,
		IsGroup:      isGroup,
		CreatedBy:    createdBy,
		Participants: participants,
	})
	if err != nil {
		return domain.Chat{}, errors.Transient("create chat", err)
	}

	s.cache.Invalidate(append(cache.UserChatsKeys(chat.ParticipantIDs()), cache.AllChatsKey)...)

	summary := event.New(event.ChatCreated, event.FromChat(chat))
	for _, id := range chat.ParticipantIDs() {
		for _, conn := range s.presence.Connections(id) {
			s.dispatcher.ToConnection(ctx, conn, summary)
		}
	}
	s.log.Info("Chat created", "chat_id", chat.ID, "is_group", chat.IsGroup, "participants", len(chat.Participants))
	return chat, nil
}

func (s *ChatService) AddParticipant(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error {
	if err := check(participantRequest{ChatID: chatID, UserID: userID}); err != nil {
		return err
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return errors.Transient("resolve participant", err)
	}
	if err := s.store.AddParticipant(ctx, domain.Participant{ChatID: chatID, UserID: userID, Role: domain.RoleMember}); err != nil {
		return errors.Transient("add participant", err)
	}
	s.cache.Invalidate(cache.ChatKey(chatID), cache.UserChatsKey(userID), cache.AllChatsKey)

	s.dispatcher.ToRoom(ctx, domain.RoomKeyFor(chatID), event.New(event.ParticipantAdded, event.ParticipantChange{ChatID: chatID, UserID: userID}))
	return nil
}

// RemoveParticipant also takes the user's live connections out of the room.
func (s *ChatService) RemoveParticipant(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error {
	if err := check(participantRequest{ChatID: chatID, UserID: userID}); err != nil {
		return err
	}
	if err := s.store.RemoveParticipant(ctx, chatID, userID); err != nil {
		return errors.Transient("remove participant", err)
	}
	s.cache.Invalidate(cache.ChatKey(chatID), cache.UserChatsKey(userID), cache.AllChatsKey)

	room := domain.RoomKeyFor(chatID)
	s.dispatcher.ToRoom(ctx, room, event.New(event.ParticipantRemoved, event.ParticipantChange{ChatID: chatID, UserID: userID}))
	for _, conn := range s.presence.Connections(userID) {
		s.membership.LeaveRoom(ctx, conn, chatID)
	}
	return nil
}

func (s *ChatService) DeleteChat(ctx context.Context, chatID domain.ChatID) error {
	if err := check(chatRequest{ChatID: chatID}); err != nil {
		return err
	}
	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		return errors.Transient("load chat", err)
	}
	if err = s.store.DeleteChat(ctx, chatID); err != nil {
		return errors.Transient("delete chat", err)
	}

	ids := chat.ParticipantIDs()
	keys := append(cache.UserChatsKeys(ids), cache.ChatKey(chatID), cache.AllChatsKey)
	if !chat.IsGroup && len(ids) == 2 {
		keys = append(keys, cache.DirectChatKey(ids[0], ids[1]))
	}
	s.cache.Invalidate(keys...)
	s.cache.InvalidatePrefix(cache.ChatMessagesPrefix(chatID))

	room := domain.RoomKeyFor(chatID)
	s.dispatcher.ToRoom(ctx, room, event.New(event.ChatDeleted, event.FromChat(chat)))
	for _, id := range ids {
		for _, conn := range s.presence.Connections(id) {
			s.membership.LeaveRoom(ctx, conn, chatID)
		}
	}
	s.log.Info("Chat deleted", "chat_id", chatID)
	return nil
}

// SendMessage checks participation against the store, never the cache.
// Blacklisted words are masked before the message is stored.
func (s *ChatService) SendMessage(ctx context.Context, cmd SendMessageCommand) (domain.Message, error) {
	if err := check(cmd); err != nil {
		return domain.Message{}, err
	}
	chat, err := s.store.GetChatByID(ctx, cmd.ChatID)
	if err != nil {
		return domain.Message{}, errors.Transient("load chat", err)
	}
	if !chat.HasParticipant(cmd.SenderID) {
		return domain.Message{}, errors.ErrNotAParticipant
	}
	content, masked := s.filter.Censor(cmd.Content)
	if len(masked) > 0 {
		s.log.Info("Message content masked", "chat_id", cmd.ChatID, "sender_id", cmd.SenderID,
			"words", len(masked), "lang", moderation.Language(cmd.Content))
	}
	message, err := s.store.CreateMessage(ctx, domain.Message{
		ChatID:   cmd.ChatID,
		SenderID: cmd.SenderID,
		Content:  content,
		Status:   domain.StatusSent,
	})
	if err != nil {
		return domain.Message{}, errors.Transient("create message", err)
	}

	s.cache.Invalidate(append(cache.UserChatsKeys(chat.ParticipantIDs()), cache.AllChatsKey)...)

	s.dispatcher.ToRoom(ctx, domain.RoomKeyFor(cmd.ChatID), event.New(event.ReceiveMessage, event.FromMessage(message)))
	s.log.Debug("Message sent", "chat_id", cmd.ChatID, "message_id", message.ID, "sender_id", cmd.SenderID)
	return message, nil
}

func (s *ChatService) UpdateMessageStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) (domain.Message, error) {
	if id <= 0 {
		return domain.Message{}, errors.Invalid(stderrors.New("message id must be positive"))
	}
	message, err := s.store.UpdateMessageStatus(ctx, id, status)
	if err != nil {
		return domain.Message{}, errors.Transient("update message status", err)
	}
	s.cache.Invalidate(cache.MessageKey(id))

	s.dispatcher.ToRoom(ctx, domain.RoomKeyFor(message.ChatID), event.New(event.MessageStatusUpdated, event.StatusUpdate{
		MessageID: id,
		Status:    status,
	}))
	return message, nil
}

// ClampPage normalises paging input, pages are 1-based.
func ClampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return page, size
}
