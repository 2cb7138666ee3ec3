package workers

import (
	"chat-hub/domain"
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

func TestStatusWriter_Writes_Offline_With_LastSeen(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIUserStore(ctrl)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	written := make(chan domain.UserID, 1)
	writer := NewStatusWriter(logs.GetLoggerFromLevel(slog.LevelDebug), store, 4, time.Second,
		func(id domain.UserID) { written <- id })

	// Then alice is stored offline with her last seen time
	store.EXPECT().GetUserByID(gomock.Any(), domain.UserID(1)).
		Return(domain.User{ID: 1, Username: "alice", IsOnline: true}, nil)
	store.EXPECT().UpdateUser(gomock.Any(), domain.User{ID: 1, Username: "alice", IsOnline: false, LastSeen: at}).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = writer.Run(ctx) }()

	// When alice's last connection goes away
	req.True(writer.Enqueue(StatusUpdate{UserID: 1, IsOnline: false, At: at}))

	select {
	case id := <-written:
		req.Equal(domain.UserID(1), id)
	case <-time.After(time.Second):
		req.Fail("status was not written")
	}
}

func TestStatusWriter_Full_Queue_Drops(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIUserStore(ctrl)
	writer := NewStatusWriter(slog.Default(), store, 1, time.Second, nil)

	// Given nobody drains the queue
	req.True(writer.Enqueue(StatusUpdate{UserID: 1, IsOnline: true}))

	// When another update arrives, then it is dropped without blocking
	req.False(writer.Enqueue(StatusUpdate{UserID: 2, IsOnline: true}))
}

func TestStatusWriter_Failed_Write_Skips_Callback(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIUserStore(ctrl)
	called := false
	writer := NewStatusWriter(slog.Default(), store, 1, time.Second, func(domain.UserID) { called = true })

	store.EXPECT().GetUserByID(gomock.Any(), domain.UserID(1)).Return(domain.User{ID: 1}, nil)
	store.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).Return(stderrors.New("read only"))

	writer.write(context.Background(), StatusUpdate{UserID: 1, IsOnline: true})

	req.False(called)
}

func TestStatusWriter_Drains_On_Stop(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIUserStore(ctrl)
	writer := NewStatusWriter(slog.Default(), store, 4, time.Second, nil)

	store.EXPECT().GetUserByID(gomock.Any(), gomock.Any()).Return(domain.User{ID: 1}, nil).Times(2)
	store.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	// Given two queued updates and an already cancelled context
	writer.Enqueue(StatusUpdate{UserID: 1, IsOnline: true})
	writer.Enqueue(StatusUpdate{UserID: 1, IsOnline: false})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When the worker runs, then both are flushed before it returns
	req.NoError(writer.Run(ctx))
}
