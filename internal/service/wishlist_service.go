package service

import (
	"Storefront/internal/pkg/batch"
	"Storefront/internal/pkg/clock"
	"Storefront/internal/readmodel"
	"context"
	log "log/slog"
	"sync"
	"time"
)

// WishlistBackend 收藏 REST 接口
type WishlistBackend interface {
	CheckWishlist(ctx context.Context, productIDs []string) (map[string]bool, error)
	AddToWishlist(ctx context.Context, productID string) error
	RemoveFromWishlist(ctx context.Context, productID string) error
}

// WishlistService 收藏状态查询与切换
type WishlistService interface {
	IsInWishlist(productID string) readmodel.Membership
	Prefetch(productIDs []string) map[string]readmodel.Membership
	ToggleWishlist(ctx context.Context, productID string) (readmodel.Membership, error)
	Flush() error
	ResolverState() batch.State
	Reset()
	Close()
}

type wishlistServiceImpl struct {
	store    *readmodel.Store
	backend  WishlistBackend
	resolver *batch.Resolver[string, bool]
	toggles  keyedMutex
}

// NewWishlistService 创建收藏服务，window 为批量查询的防抖窗口
func NewWishlistService(ctx context.Context, store *readmodel.Store, backend WishlistBackend, window time.Duration, clk clock.Clock) WishlistService {
	return &wishlistServiceImpl{
		store:   store,
		backend: backend,
		resolver: batch.New(ctx, batch.Config[string, bool]{
			Name:     "wishlist",
			Window:   window,
			Clock:    clk,
			Lookup:   backend.CheckWishlist,
			Resolved: store.WishlistKnown,
			Deliver:  store.ApplyWishlistResults,
		}),
	}
}

// IsInWishlist 返回当前已知状态；未知时登记批量查询，结果通过变更通知送达
func (s *wishlistServiceImpl) IsInWishlist(productID string) readmodel.Membership {
	m := s.store.Wishlist(productID)
	if !m.Known() && productID != "" {
		s.resolver.Request(productID)
	}
	return m
}

// Prefetch 批量登记，返回每个商品当前的状态
func (s *wishlistServiceImpl) Prefetch(productIDs []string) map[string]readmodel.Membership {
	res := make(map[string]readmodel.Membership, len(productIDs))
	for _, id := range productIDs {
		if id == "" {
			continue
		}
		res[id] = s.IsInWishlist(id)
	}
	return res
}

// ToggleWishlist 乐观切换；未知状态按加入处理，失败时恢复原状态并返回错误
func (s *wishlistServiceImpl) ToggleWishlist(ctx context.Context, productID string) (readmodel.Membership, error) {
	if productID == "" {
		return readmodel.MembershipUnknown, ErrParamInvalid
	}

	// 同一商品的切换串行执行，回滚时的原状态总是上一次切换完成后的结果
	unlock := s.toggles.Lock(productID)
	defer unlock()

	target := s.store.Wishlist(productID) != readmodel.MembershipIn
	prior := s.store.SetWishlist(productID, target, readmodel.OriginOptimistic)

	var err error
	if target {
		err = s.backend.AddToWishlist(ctx, productID)
	} else {
		err = s.backend.RemoveFromWishlist(ctx, productID)
	}
	if err != nil {
		s.store.RestoreWishlist(productID, target, prior)
		log.WarnContext(ctx, "切换收藏失败，已恢复", "productID", productID, "prior", prior.String(), "err", err)
		return prior, err
	}

	s.store.SetWishlist(productID, target, readmodel.OriginMutation)
	return readmodel.MembershipOf(target), nil
}

// Flush 立即发起当前队列的批量查询
func (s *wishlistServiceImpl) Flush() error {
	return s.resolver.Flush()
}

func (s *wishlistServiceImpl) ResolverState() batch.State {
	return s.resolver.State()
}

// Reset 会话切换时丢弃排队与在途的查询
func (s *wishlistServiceImpl) Reset() {
	s.resolver.Reset()
}

func (s *wishlistServiceImpl) Close() {
	s.resolver.Close()
}

// keyedMutex 按 key 加锁，没有等待者时释放对应的锁
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
