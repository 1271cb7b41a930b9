package readmodel

import "sort"

// MergeMessages 把 incoming 合并到 existing 之后
// 按 ID 去重（包括 incoming 内部重复），新消息按到达顺序追加，不重新排序
// 返回新切片与实际追加的条数，existing 不会被修改
func MergeMessages(existing, incoming []Message) ([]Message, int) {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}

	merged := make([]Message, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	added := 0
	for _, m := range incoming {
		if m.ID == "" {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
		added++
	}
	return merged, added
}

// OrderedMessages 返回按 CreatedAt、ID 排序后的副本，跨分页展示必须使用它
func OrderedMessages(msgs []Message) []Message {
	res := make([]Message, len(msgs))
	copy(res, msgs)
	sort.SliceStable(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// newerSummary 仅当 m 比当前预览更新时返回新的预览
func newerSummary(current *MessageSummary, m Message) (*MessageSummary, bool) {
	if current != nil {
		if current.MessageID == m.ID {
			return current, false
		}
		if m.CreatedAt.Before(current.CreatedAt) {
			return current, false
		}
		if m.CreatedAt.Equal(current.CreatedAt) && m.ID < current.MessageID {
			return current, false
		}
	}
	return &MessageSummary{
		MessageID: m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}, true
}

// latest 取一组消息中最新的一条
func latest(msgs []Message) (Message, bool) {
	if len(msgs) == 0 {
		return Message{}, false
	}
	best := msgs[0]
	for _, m := range msgs[1:] {
		if m.CreatedAt.After(best.CreatedAt) || (m.CreatedAt.Equal(best.CreatedAt) && m.ID > best.ID) {
			best = m
		}
	}
	return best, true
}
