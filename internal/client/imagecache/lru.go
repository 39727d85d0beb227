package imagecache

import "container/list"

// lru is the in-memory tier: a least-recently-used map bounded by both item
// count and total bytes. Not safe for concurrent use; Cache serializes
// access through its mutex.
type lru struct {
	maxItems int
	maxBytes int64
	curBytes int64
	order    *list.List // front = most recently used
	items    map[string]*list.Element
}

type lruEntry struct {
	key  string
	data []byte
}

func newLRU(maxItems int, maxBytes int64) *lru {
	return &lru{
		maxItems: maxItems,
		maxBytes: maxBytes,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (l *lru) get(key string) ([]byte, bool) {
	el, ok := l.items[key]
	if !ok {
		return nil, false
	}
	l.order.MoveToFront(el)
	return el.Value.(*lruEntry).data, true
}

func (l *lru) add(key string, data []byte) {
	if el, ok := l.items[key]; ok {
		entry := el.Value.(*lruEntry)
		l.curBytes += int64(len(data)) - int64(len(entry.data))
		entry.data = data
		l.order.MoveToFront(el)
		l.evict()
		return
	}

	el := l.order.PushFront(&lruEntry{key: key, data: data})
	l.items[key] = el
	l.curBytes += int64(len(data))
	l.evict()
}

func (l *lru) evict() {
	for (l.order.Len() > l.maxItems || l.curBytes > l.maxBytes) && l.order.Len() > 1 {
		el := l.order.Back()
		if el == nil {
			return
		}
		entry := el.Value.(*lruEntry)
		l.order.Remove(el)
		delete(l.items, entry.key)
		l.curBytes -= int64(len(entry.data))
	}
}

func (l *lru) len() int { return l.order.Len() }

func (l *lru) clear() {
	l.order.Init()
	l.items = make(map[string]*list.Element)
	l.curBytes = 0
}
