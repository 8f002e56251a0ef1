package cache

import (
	"slices"
	"sync"

	"github.com/asquebay/print-queue-service/internal/model"
)

// NotifyCache представляет потокобезопасный in-memory кэш уведомлений по пользователям
type NotifyCache struct {
	// ключ — string (ID пользователя), значение — *inbox
	storage sync.Map
}

// inbox хранит уведомления одного пользователя, новые первыми
type inbox struct {
	mu    sync.Mutex
	items []model.Notification
}

// NewNotifyCache создаёт новый экземпляр кэша
func NewNotifyCache() *NotifyCache {
	return &NotifyCache{}
}

func (c *NotifyCache) box(userID string) *inbox {
	value, _ := c.storage.LoadOrStore(userID, &inbox{})
	return value.(*inbox)
}

// Add кладёт уведомление в начало ящиков получателей, которые уже есть в кэше
// ящик, которого нет, при следующем чтении целиком загрузится из БД
func (c *NotifyCache) Add(n model.Notification) {
	for _, userID := range n.ReceiverIDs {
		value, ok := c.storage.Load(userID)
		if !ok {
			continue
		}
		value.(*inbox).push(n)
	}
}

// push добавляет уведомление, уже известный ID повторно не добавляется
func (b *inbox) push(n model.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slices.ContainsFunc(b.items, func(x model.Notification) bool { return x.ID == n.ID }) {
		return
	}
	b.items = slices.Insert(b.items, 0, n)
}

// Get возвращает копию ящика пользователя и true, если ящик есть в кэше
func (c *NotifyCache) Get(userID string) ([]model.Notification, bool) {
	value, ok := c.storage.Load(userID)
	if !ok {
		return nil, false
	}

	box, ok := value.(*inbox)
	if !ok {
		return nil, false
	}
	box.mu.Lock()
	defer box.mu.Unlock()
	return slices.Clone(box.items), true
}

// Set заменяет ящик пользователя целиком, порядок items сохраняется
func (c *NotifyCache) Set(userID string, items []model.Notification) {
	box := c.box(userID)
	box.mu.Lock()
	box.items = slices.Clone(items)
	if box.items == nil {
		box.items = []model.Notification{}
	}
	box.mu.Unlock()
}

// LoadAll загружает в кэш уведомления в порядке создания
// используется для первоначального заполнения кэша при старте сервиса
func (c *NotifyCache) LoadAll(items []model.Notification) {
	for _, n := range items {
		for _, userID := range n.ReceiverIDs {
			c.box(userID).push(n)
		}
	}
}
