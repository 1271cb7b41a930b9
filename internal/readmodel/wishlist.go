package readmodel

import "sort"

// Wishlist 商品收藏状态，未解析时返回 MembershipUnknown
func (s *Store) Wishlist(productID string) Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.wishlist[productID]
	if !ok {
		return MembershipUnknown
	}
	return MembershipOf(in)
}

// WishlistKnown 是否已有确定结果，供批量解析器判断是否需要查询
func (s *Store) WishlistKnown(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.wishlist[productID]
	return ok
}

// ApplyWishlistResults 写入批量查询结果，结果中缺失的商品保持未知
// 查询期间已被 mutation 确定的商品以 mutation 为准，不会被覆盖
func (s *Store) ApplyWishlistResults(results map[string]bool) {
	if len(results) == 0 {
		return
	}
	s.mu.Lock()
	ids := make([]string, 0, len(results))
	for id, in := range results {
		if id == "" {
			continue
		}
		if _, known := s.wishlist[id]; known {
			continue
		}
		s.wishlist[id] = in
		ids = append(ids, id)
	}
	s.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)
	s.emit(Change{Kind: ChangeWishlist, Origin: OriginREST, ProductIDs: ids})
}

// SetWishlist 乐观写入或 mutation 成功后的确认，返回写入前的状态供失败时恢复
func (s *Store) SetWishlist(productID string, in bool, origin Origin) Membership {
	s.mu.Lock()
	prev, ok := s.wishlist[productID]
	s.wishlist[productID] = in
	s.mu.Unlock()

	prior := MembershipUnknown
	if ok {
		prior = MembershipOf(prev)
	}
	if prior != MembershipOf(in) {
		s.emit(Change{Kind: ChangeWishlist, Origin: origin, ProductIDs: []string{productID}})
	}
	return prior
}

// RestoreWishlist 回滚乐观写入；prior 为未知时删除条目
// 只有条目仍是本次乐观写入的值时才回滚，已被其他写入覆盖或已重置时不做任何事
func (s *Store) RestoreWishlist(productID string, optimistic bool, prior Membership) bool {
	s.mu.Lock()
	current, ok := s.wishlist[productID]
	if !ok || current != optimistic {
		s.mu.Unlock()
		return false
	}
	switch prior {
	case MembershipIn:
		s.wishlist[productID] = true
	case MembershipOut:
		s.wishlist[productID] = false
	default:
		delete(s.wishlist, productID)
	}
	s.mu.Unlock()

	if prior != MembershipOf(optimistic) {
		s.emit(Change{Kind: ChangeWishlist, Origin: OriginOptimistic, ProductIDs: []string{productID}})
	}
	return true
}
