package cache

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Cache is a weight bounded LRU cache.
type Cache interface {
	// SetLogger enables eviction logging.
	SetLogger(log *logrus.Entry)

	GetWeight() int
	GetBudget() int

	// Insert adds or replaces the value at key, evicting the least recently
	// used entries until the cache fits its budget.
	Insert(key string, value interface{}, weight int)

	// Retrieve returns the value at key and marks it as recently used.
	Retrieve(key string) (interface{}, bool)

	Remove(key string)
	Clear()
}

type entry struct {
	next   *entry
	prev   *entry
	key    string
	value  interface{}
	weight int
}

type cache struct {
	mu sync.Mutex

	// head is the most recently used entry
	head   *entry
	tail   *entry
	lookup map[string]*entry

	weight int
	budget int

	log *logrus.Entry
}

func NewCache(budget int) Cache {
	return &cache{
		lookup: make(map[string]*entry),
		budget: budget,
	}
}

func (c *cache) SetLogger(log *logrus.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log = log
}

func (c *cache) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.weight
}

func (c *cache) GetBudget() int {
	return c.budget
}

func (c *cache) Insert(key string, value interface{}, weight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.lookup[key]; ok {
		c.unlink(existing)
		c.weight -= existing.weight
		delete(c.lookup, key)
	}

	e := &entry{
		key:    key,
		value:  value,
		weight: weight,
	}
	c.pushFront(e)
	c.lookup[key] = e
	c.weight += weight

	for c.weight > c.budget && c.tail != nil {
		evicted := c.tail
		c.unlink(evicted)
		c.weight -= evicted.weight
		delete(c.lookup, evicted.key)

		if c.log != nil {
			c.log.WithFields(logrus.Fields{
				"key":    evicted.key,
				"weight": evicted.weight,
				"spare":  c.budget - c.weight,
			}).Debug("evicted cache entry")
		}
	}
}

func (c *cache) Retrieve(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup[key]
	if !ok {
		return nil, false
	}

	if e != c.head {
		c.unlink(e)
		c.pushFront(e)
	}

	return e.value, true
}

func (c *cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup[key]
	if !ok {
		return
	}

	c.unlink(e)
	c.weight -= e.weight
	delete(c.lookup, key)
}

func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.head = nil
	c.tail = nil
	c.lookup = make(map[string]*entry)
	c.weight = 0
}

func (c *cache) pushFront(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.next = nil
	e.prev = nil
}
