package service

import (
	"Storefront/internal/pkg/rest"
	"Storefront/internal/readmodel"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIMFixture() (*readmodel.Store, *fakeIMBackend, *fakeChannel, IMService) {
	store := readmodel.NewStore()
	store.SetSelf("u1")
	backend := newFakeIMBackend()
	rooms := newFakeChannel()
	return store, backend, rooms, NewIMService(store, backend, rooms, 20)
}

func TestIMService_OpenConversationFetchesOnce(t *testing.T) {
	store, backend, rooms, svc := newIMFixture()
	backend.pages["c1|"] = &rest.MessagePage{
		Messages:   []readmodel.Message{msg("m1", "c1", "u2", 0), msg("m2", "c1", "u2", time.Second)},
		Pagination: &readmodel.Pagination{HasMore: true, NextCursor: "m1"},
	}
	store.ApplyConversations([]readmodel.Conversation{{ID: "c1", UnreadCount: 2}})
	backend.markResult = 0

	page, err := svc.OpenConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, readmodel.StateLoaded, page.State)
	assert.Len(t, page.Messages, 2)
	assert.Equal(t, []string{"c1"}, rooms.joined())
	assert.Equal(t, []string{"c1"}, backend.markCalls)

	conv, _ := store.Conversation("c1")
	assert.Equal(t, 0, conv.UnreadCount)

	_, err = svc.OpenConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.listCount("c1"), "loaded conversation is not refetched on reopen")
}

func TestIMService_SwitchingConversationLeavesPrevious(t *testing.T) {
	store, _, rooms, svc := newIMFixture()

	_, err := svc.OpenConversation(context.Background(), "c1")
	require.NoError(t, err)
	_, err = svc.OpenConversation(context.Background(), "c2")
	require.NoError(t, err)

	assert.Equal(t, []string{"c1"}, rooms.leaves)
	assert.Equal(t, "c2", store.OpenConversation())

	svc.CloseConversation("c1")
	assert.Equal(t, "c2", store.OpenConversation(), "closing a conversation that is not open is a no-op")

	svc.CloseConversation("c2")
	assert.Empty(t, store.OpenConversation())
	assert.Equal(t, []string{"c1", "c2"}, rooms.leaves)
}

func TestIMService_OpenWhileDisconnectedStillLoads(t *testing.T) {
	_, backend, rooms, svc := newIMFixture()
	rooms.disconnect = true
	backend.pages["c1|"] = &rest.MessagePage{Messages: []readmodel.Message{msg("m1", "c1", "u2", 0)}}

	page, err := svc.OpenConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 1)
	assert.Empty(t, rooms.joined())
}

func TestIMService_FailedLoadCanBeRetried(t *testing.T) {
	store, backend, _, svc := newIMFixture()
	backend.listErr = errors.New("boom")

	_, err := svc.OpenConversation(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, readmodel.StateUnloaded, store.LoadState("c1"))

	backend.listErr = nil
	page, err := svc.OpenConversation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, readmodel.StateLoaded, page.State)
	assert.Equal(t, 2, backend.listCount("c1"))
}

func TestIMService_MarkAsReadFailureIsNotRolledBack(t *testing.T) {
	store, backend, _, svc := newIMFixture()
	store.ApplyConversations([]readmodel.Conversation{{ID: "c1", UnreadCount: 3}})
	backend.markErr = errors.New("server rejected")

	require.NoError(t, svc.MarkAsRead(context.Background(), "c1"))

	conv, _ := store.Conversation("c1")
	assert.Equal(t, 0, conv.UnreadCount)
	assert.Equal(t, 0, svc.TotalUnread())
}

func TestIMService_MarkAsReadAlwaysReachesServer(t *testing.T) {
	store, backend, _, svc := newIMFixture()

	// 会话列表尚未同步
	require.NoError(t, svc.MarkAsRead(context.Background(), "c1"))
	assert.Equal(t, []string{"c1"}, backend.markCalls)

	// 本地已读但服务端仍有未读
	store.ApplyConversations([]readmodel.Conversation{{ID: "c2"}})
	backend.markResult = 0
	require.NoError(t, svc.MarkAsRead(context.Background(), "c2"))
	assert.Equal(t, []string{"c1", "c2"}, backend.markCalls)

	_, err := svc.OpenConversation(context.Background(), "c3")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, backend.markCalls)

	assert.ErrorIs(t, svc.MarkAsRead(context.Background(), ""), ErrParamInvalid)
}

func TestIMService_MarkAsReadTakesServerCount(t *testing.T) {
	store, backend, _, svc := newIMFixture()
	store.ApplyConversations([]readmodel.Conversation{{ID: "c1", UnreadCount: 5}})
	backend.markResult = 1

	require.NoError(t, svc.MarkAsRead(context.Background(), "c1"))

	conv, _ := store.Conversation("c1")
	assert.Equal(t, 1, conv.UnreadCount)
}

func TestIMService_SendResultAndEchoAreMergedOnce(t *testing.T) {
	store, _, _, svc := newIMFixture()
	_, err := svc.OpenConversation(context.Background(), "c1")
	require.NoError(t, err)

	sent, err := svc.SendMessage(context.Background(), "c1", "hello")
	require.NoError(t, err)
	svc.HandleIncomingMessage(context.Background(), *sent)

	page := svc.GetMessages("c1")
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "sent-1", page.Messages[0].ID)
	conv, _ := store.Conversation("c1")
	assert.Equal(t, 0, conv.UnreadCount)
}

func TestIMService_SendValidatesInput(t *testing.T) {
	_, _, _, svc := newIMFixture()
	_, err := svc.SendMessage(context.Background(), "c1", "   ")
	assert.ErrorIs(t, err, ErrParamInvalid)
}

func TestIMService_SendFailureSurfaces(t *testing.T) {
	store, backend, _, svc := newIMFixture()
	backend.sendErr = &rest.StatusError{Status: 500, Message: "down"}

	_, err := svc.SendMessage(context.Background(), "c1", "hello")
	var statusErr *rest.StatusError
	require.ErrorAs(t, err, &statusErr)
	_, ok := store.Conversation("c1")
	assert.False(t, ok)
}

func TestIMService_LoadOlderUsesCursor(t *testing.T) {
	_, backend, _, svc := newIMFixture()
	backend.pages["c1|"] = &rest.MessagePage{
		Messages:   []readmodel.Message{msg("m3", "c1", "u2", 3*time.Second)},
		Pagination: &readmodel.Pagination{HasMore: true, NextCursor: "cursor-1"},
	}
	backend.pages["c1|cursor-1"] = &rest.MessagePage{
		Messages:   []readmodel.Message{msg("m1", "c1", "u2", time.Second), msg("m2", "c1", "u2", 2*time.Second)},
		Pagination: &readmodel.Pagination{HasMore: false},
	}
	_, err := svc.OpenConversation(context.Background(), "c1")
	require.NoError(t, err)

	page, err := svc.LoadOlder(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 3)
	assert.Equal(t, "m1", page.Messages[0].ID)
	assert.False(t, page.Pagination.HasMore)

	_, err = svc.LoadOlder(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "cursor-1"}, backend.befores, "no request once history is exhausted")
}

func TestIMService_RefreshLoadedKeepsPagination(t *testing.T) {
	store, backend, _, svc := newIMFixture()
	backend.pages["c1|"] = &rest.MessagePage{
		Messages:   []readmodel.Message{msg("m1", "c1", "u2", 0)},
		Pagination: &readmodel.Pagination{HasMore: true, NextCursor: "m1"},
	}
	_, err := svc.OpenConversation(context.Background(), "c1")
	require.NoError(t, err)
	store.ApplyIncomingMessage(msg("x1", "c2", "u2", 0))

	backend.pages["c1|"] = &rest.MessagePage{
		Messages:   []readmodel.Message{msg("m1", "c1", "u2", 0), msg("m2", "c1", "u2", time.Second)},
		Pagination: &readmodel.Pagination{HasMore: false},
	}
	backend.conversations = []readmodel.Conversation{{ID: "c1"}, {ID: "c2", UnreadCount: 5}}

	require.NoError(t, svc.RefreshLoaded(context.Background()))

	page := svc.GetMessages("c1")
	assert.Len(t, page.Messages, 2)
	assert.Equal(t, readmodel.StateLoaded, page.State)
	assert.True(t, page.Pagination.HasMore)
	assert.Equal(t, 0, backend.listCount("c2"), "unloaded conversations stay lazy")
	conv, _ := svc.GetConversation("c2")
	assert.Equal(t, 5, conv.UnreadCount)
}

func TestIMService_GetConversationNotFound(t *testing.T) {
	_, _, _, svc := newIMFixture()
	_, err := svc.GetConversation("missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestIMService_IncompletePushIsDropped(t *testing.T) {
	store, _, _, svc := newIMFixture()
	svc.HandleIncomingMessage(context.Background(), readmodel.Message{ID: "m1"})
	svc.HandleReadReceipt(context.Background(), readmodel.ReadReceipt{UserID: "u2"})
	assert.Empty(t, store.Conversations())
}
