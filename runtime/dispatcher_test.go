package runtime

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/mocks"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDispatcher_ToAllExcept_Excludes_Sender(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockITransport(ctrl)
	dispatcher := NewDispatcher(slog.Default(), transport, time.Second)
	env := event.New(event.UserTyping, event.Typing{UserID: 1, Username: "alice", IsTyping: true})

	// Then the room is addressed with the sender excluded
	transport.EXPECT().SendToGroup(gomock.Any(), domain.RoomKeyFor(5), env, domain.ConnectionID("C")).Return(nil)

	// When C types in chat 5
	dispatcher.ToAllExcept(context.Background(), domain.RoomKeyFor(5), "C", env)
}

func TestDispatcher_Failures_Are_Swallowed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockITransport(ctrl)
	dispatcher := NewDispatcher(logs.GetLoggerFromLevel(slog.LevelDebug), transport, time.Second)
	env := event.New(event.UserOnline, event.UserPresence{UserID: 1, Username: "alice"})

	// Given a transport that fails then panics
	transport.EXPECT().SendToAll(gomock.Any(), env).Return(stderrors.New("broken pipe"))
	transport.EXPECT().SendToConnection(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.ConnectionID, event.Envelope) error { panic("boom") })

	// When broadcasts are made, then the caller never sees the failure
	req.NotPanics(func() {
		dispatcher.ToAll(context.Background(), env)
		dispatcher.ToConnection(context.Background(), "c1", env)
	})
	req.Equal(uint64(2), dispatcher.Failures())
}

func TestDispatcher_Send_Outlives_Caller_Cancellation(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockITransport(ctrl)
	dispatcher := NewDispatcher(slog.Default(), transport, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Then the transport gets a live, bounded context
	transport.EXPECT().SendToGroup(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.RoomKey, _ event.Envelope, _ ...domain.ConnectionID) error {
			req.NoError(ctx.Err())
			_, hasDeadline := ctx.Deadline()
			req.True(hasDeadline)
			return nil
		})

	// When the caller already went away
	dispatcher.ToRoom(ctx, domain.RoomKeyFor(1), event.New(event.ReceiveMessage, nil))
}
