package service

import (
	"Storefront/internal/pkg/rest"
	"Storefront/internal/pkg/socket"
	"Storefront/internal/readmodel"
	"context"
	"sync"
	"time"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id, conv, sender string, offset time.Duration) readmodel.Message {
	return readmodel.Message{ID: id, ConversationID: conv, SenderID: sender, Content: "hi " + id, CreatedAt: base.Add(offset)}
}

type fakeIMBackend struct {
	mu            sync.Mutex
	conversations []readmodel.Conversation
	pages         map[string]*rest.MessagePage
	listErr       error
	markErr       error
	sendErr       error
	listCalls     []string
	befores       []string
	markCalls     []string
	markResult    int64
}

func newFakeIMBackend() *fakeIMBackend {
	return &fakeIMBackend{pages: make(map[string]*rest.MessagePage)}
}

func (f *fakeIMBackend) ListConversations(context.Context) ([]readmodel.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]readmodel.Conversation(nil), f.conversations...), nil
}

func (f *fakeIMBackend) ListMessages(_ context.Context, conversationID, before string, _ int) (*rest.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, conversationID)
	f.befores = append(f.befores, before)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if page, ok := f.pages[conversationID+"|"+before]; ok {
		return page, nil
	}
	return &rest.MessagePage{}, nil
}

func (f *fakeIMBackend) SendMessage(_ context.Context, conversationID, content string) (*readmodel.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &readmodel.Message{ID: "sent-1", ConversationID: conversationID, SenderID: "u1", Content: content, CreatedAt: base.Add(time.Hour)}, nil
}

func (f *fakeIMBackend) MarkConversationRead(_ context.Context, conversationID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls = append(f.markCalls, conversationID)
	return f.markResult, f.markErr
}

func (f *fakeIMBackend) listCount(conversationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.listCalls {
		if id == conversationID {
			n++
		}
	}
	return n
}

// fakeChannel 记录房间操作，可模拟断线
type fakeChannel struct {
	mu         sync.Mutex
	rooms      map[string]bool
	joins      []string
	leaves     []string
	tokens     []string
	stateFns   []func(socket.State)
	disconnect bool
	running    chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{rooms: make(map[string]bool), running: make(chan struct{}, 4)}
}

func (f *fakeChannel) Join(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disconnect {
		return socket.ErrNotConnected
	}
	f.joins = append(f.joins, id)
	f.rooms[id] = true
	return nil
}

func (f *fakeChannel) Leave(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, id)
	delete(f.rooms, id)
	return nil
}

func (f *fakeChannel) LeaveAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = make(map[string]bool)
}

func (f *fakeChannel) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
}

func (f *fakeChannel) Run(ctx context.Context) error {
	f.running <- struct{}{}
	<-ctx.Done()
	return nil
}

func (f *fakeChannel) OnState(fn func(socket.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateFns = append(f.stateFns, fn)
}

func (f *fakeChannel) emitState(st socket.State) {
	f.mu.Lock()
	fns := append(([]func(socket.State))(nil), f.stateFns...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (f *fakeChannel) lastToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tokens) == 0 {
		return ""
	}
	return f.tokens[len(f.tokens)-1]
}

func (f *fakeChannel) joined() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joins...)
}

type fakeNotificationBackend struct {
	mu       sync.Mutex
	count    int64
	list     []readmodel.Notification
	markErr  error
	countErr error
	calls    int
}

func (f *fakeNotificationBackend) NotificationUnreadCount(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.count, f.countErr
}

func (f *fakeNotificationBackend) ListNotifications(context.Context, int, int) ([]readmodel.Notification, *readmodel.Pagination, error) {
	return f.list, &readmodel.Pagination{Page: 1, HasMore: false}, nil
}

func (f *fakeNotificationBackend) MarkAllNotificationsRead(context.Context) error {
	return f.markErr
}

type fakeWishlistBackend struct {
	mu        sync.Mutex
	members   map[string]bool
	checks    [][]string
	mutateErr error
	checkErr  error
	added     []string
	removed   []string
	// entered 记录进入 mutation 的商品，gate 非空时 mutation 等待其关闭
	entered chan string
	gate    chan struct{}
}

func (f *fakeWishlistBackend) waitGate(id string) {
	if f.entered != nil {
		f.entered <- id
	}
	if f.gate != nil {
		<-f.gate
	}
}

func newFakeWishlistBackend(in ...string) *fakeWishlistBackend {
	f := &fakeWishlistBackend{members: make(map[string]bool)}
	for _, id := range in {
		f.members[id] = true
	}
	return f
}

func (f *fakeWishlistBackend) CheckWishlist(_ context.Context, ids []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, append([]string(nil), ids...))
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	res := make(map[string]bool, len(ids))
	for _, id := range ids {
		res[id] = f.members[id]
	}
	return res, nil
}

func (f *fakeWishlistBackend) AddToWishlist(_ context.Context, id string) error {
	f.waitGate(id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.added = append(f.added, id)
	f.members[id] = true
	return nil
}

func (f *fakeWishlistBackend) RemoveFromWishlist(_ context.Context, id string) error {
	f.waitGate(id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.removed = append(f.removed, id)
	delete(f.members, id)
	return nil
}

func (f *fakeWishlistBackend) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checks)
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newMemRevocations() *memRevocations {
	return &memRevocations{revoked: make(map[string]time.Duration)}
}

func (m *memRevocations) Revoke(_ context.Context, signature string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[signature] = ttl
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[signature]
	return ok, nil
}

type memSnapshots struct {
	mu    sync.Mutex
	snaps map[string]*readmodel.Snapshot
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{snaps: make(map[string]*readmodel.Snapshot)}
}

func (m *memSnapshots) Save(_ context.Context, snap *readmodel.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.UserID] = snap
	return nil
}

func (m *memSnapshots) Load(_ context.Context, userID string) (*readmodel.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[userID], nil
}

func (m *memSnapshots) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, userID)
	return nil
}

type tokenRecorder struct {
	mu    sync.Mutex
	token string
}

func (r *tokenRecorder) SetToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
}

func (r *tokenRecorder) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}
