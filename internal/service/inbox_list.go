package service

import (
	"slices"
	"sync"

	"github.com/webitel/im-realtime-client/internal/domain/model"
)

// ItemSink is how the inbox controller mutates the UI-owned list. The controller never
// reads items back.
type ItemSink interface {
	// PrependIfAbsent reports whether the item was added.
	PrependIfAbsent(item model.NotificationItem) bool
	// Update applies fn to the item with id; false when it is gone.
	Update(id string, fn func(*model.NotificationItem)) bool
	Remove(id string) bool
}

// InboxList is the in-memory notification list, newest first. Process lifetime only.
type InboxList struct {
	mu    sync.RWMutex
	items []model.NotificationItem
}

var _ ItemSink = (*InboxList)(nil)

func NewInboxList() *InboxList {
	return &InboxList{}
}

func (l *InboxList) PrependIfAbsent(item model.NotificationItem) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexOf(item.ID) >= 0 {
		return false
	}
	l.items = slices.Insert(l.items, 0, item)
	return true
}

func (l *InboxList) Update(id string, fn func(*model.NotificationItem)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	fn(&l.items[i])
	return true
}

func (l *InboxList) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(id)
	if i < 0 {
		return false
	}
	l.items = slices.Delete(l.items, i, i+1)
	return true
}

func (l *InboxList) Get(id string) (model.NotificationItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.indexOf(id); i >= 0 {
		return l.items[i], true
	}
	return model.NotificationItem{}, false
}

// Items returns a snapshot, newest first.
func (l *InboxList) Items() []model.NotificationItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

func (l *InboxList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *InboxList) indexOf(id string) int {
	return slices.IndexFunc(l.items, func(it model.NotificationItem) bool { return it.ID == id })
}
