package readmodel

import "sort"

// SetNotificationUnread 用服务端推送或查询得到的值覆盖通知未读数
// 未读数只来自服务端，不会通过统计本地通知条目计算
func (s *Store) SetNotificationUnread(n int64, origin Origin) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	changed := !s.notificationKnown || s.notificationUnread != n
	s.notificationUnread = n
	s.notificationKnown = true
	s.mu.Unlock()

	if changed {
		s.emit(Change{Kind: ChangeNotificationCount, Origin: origin, Count: n})
	}
}

// NotificationUnread 通知未读数；第二个返回值为 false 表示尚未从服务端获取
func (s *Store) NotificationUnread() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notificationUnread, s.notificationKnown
}

// AddNotification 记录一条新通知，按 ID 去重，只保留最近的若干条
// 不改变未读数，未读数由 unread_count 事件单独下发
func (s *Store) AddNotification(n Notification, origin Origin) bool {
	if n.ID == "" {
		return false
	}
	s.mu.Lock()
	for _, existing := range s.notifications {
		if existing.ID == n.ID {
			s.mu.Unlock()
			return false
		}
	}
	s.notifications = append([]Notification{n}, s.notifications...)
	if len(s.notifications) > maxRecentNotifications {
		s.notifications = s.notifications[:maxRecentNotifications]
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeNotification, Origin: origin})
	return true
}

// ApplyNotifications 合并 REST 拉取的通知列表
func (s *Store) ApplyNotifications(list []Notification) int {
	s.mu.Lock()
	index := make(map[string]int, len(s.notifications))
	for i, n := range s.notifications {
		index[n.ID] = i
	}
	added := 0
	for _, n := range list {
		if n.ID == "" {
			continue
		}
		if i, ok := index[n.ID]; ok {
			s.notifications[i] = n
			continue
		}
		index[n.ID] = len(s.notifications)
		s.notifications = append(s.notifications, n)
		added++
	}
	sortNotifications(s.notifications)
	if len(s.notifications) > maxRecentNotifications {
		s.notifications = s.notifications[:maxRecentNotifications]
	}
	s.mu.Unlock()

	if added > 0 {
		s.emit(Change{Kind: ChangeNotification, Origin: OriginREST, Count: int64(added)})
	}
	return added
}

// Notifications 最近的通知，按时间倒序
func (s *Store) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Notification, len(s.notifications))
	copy(res, s.notifications)
	return res
}

// MarkAllNotificationsRead 本地立即清零通知未读数，返回之前的值
func (s *Store) MarkAllNotificationsRead() int64 {
	s.mu.Lock()
	prior := s.notificationUnread
	s.notificationUnread = 0
	s.notificationKnown = true
	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
	s.mu.Unlock()

	s.emit(Change{Kind: ChangeNotificationCount, Origin: OriginOptimistic, Count: 0})
	return prior
}

func sortNotifications(list []Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		return newerNotification(list[i], list[j])
	})
}

func newerNotification(a, b Notification) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
