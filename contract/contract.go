//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ITransport is the minimal capability the core needs from the real-time layer.
// Groups are named broadcast sets of connections; removing a connection from a
// group it does not belong to is a no-op.
type ITransport interface {
	JoinGroup(ctx context.Context, conn domain.ConnectionID, group domain.RoomKey) error
	LeaveGroup(ctx context.Context, conn domain.ConnectionID, group domain.RoomKey) error
	SendToGroup(ctx context.Context, group domain.RoomKey, env event.Envelope, except ...domain.ConnectionID) error
	SendToAll(ctx context.Context, env event.Envelope, except ...domain.ConnectionID) error
	SendToConnection(ctx context.Context, conn domain.ConnectionID, env event.Envelope) error
}

// IDispatcher never reports failures: a notification that cannot be delivered
// must not fail the operation that produced it.
type IDispatcher interface {
	ToRoom(ctx context.Context, room domain.RoomKey, env event.Envelope)
	ToAllExcept(ctx context.Context, room domain.RoomKey, exclude domain.ConnectionID, env event.Envelope)
	ToAll(ctx context.Context, env event.Envelope)
	ToConnection(ctx context.Context, conn domain.ConnectionID, env event.Envelope)
}

type IUserStore interface {
	CreateUser(ctx context.Context, username string) (domain.User, error)
	GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) error
}

type IChatStore interface {
	CreateChat(ctx context.Context, chat domain.Chat) (domain.Chat, error)
	GetChatByID(ctx context.Context, id domain.ChatID) (domain.Chat, error)
	GetUserChats(ctx context.Context, userID domain.UserID) ([]domain.Chat, error)
	GetAllChats(ctx context.Context) ([]domain.Chat, error)
	FindDirectChat(ctx context.Context, a, b domain.UserID) (domain.Chat, error)
	AddParticipant(ctx context.Context, participant domain.Participant) error
	RemoveParticipant(ctx context.Context, chatID domain.ChatID, userID domain.UserID) error
	DeleteChat(ctx context.Context, id domain.ChatID) error
}

type IMessageStore interface {
	CreateMessage(ctx context.Context, message domain.Message) (domain.Message, error)
	GetMessageByID(ctx context.Context, id domain.MessageID) (domain.Message, error)
	UpdateMessageStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) (domain.Message, error)
	GetChatMessages(ctx context.Context, chatID domain.ChatID, page, size int) ([]domain.Message, error)
}

// IStore is the Persistence Store. Lookups of absent entities return the
// matching errors.ErrXxxNotFound.
type IStore interface {
	IUserStore
	IChatStore
	IMessageStore
	Close() error
}
