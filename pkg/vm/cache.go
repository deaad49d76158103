package vm

import (
	"container/list"

	"github.com/mettalang/mork/pkg/term"
)

// lru is a small fixed-capacity cache mapping a call's (head, hash(args))
// key to its previously computed result list, backing the CallCached
// opcode (§4.4: "the VM holds a small LRU of (head, hash(args)) ->
// result"). Every call that reaches CallCached is cached; package
// bytecode does not emit CallCached, so no compiler side-effect analysis
// selects these calls.
type lru struct {
	cap   int
	ll    *list.List
	items map[string]*list.Element
}

type lruEntry struct {
	key   string
	value []term.Value
}

func newLRU(capacity int) *lru {
	if capacity <= 0 {
		capacity = 1
	}
	return &lru{
		cap:   capacity,
		ll:    list.New(),
		items: make(map[string]*list.Element, capacity),
	}
}

func (c *lru) get(key string) ([]term.Value, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

func (c *lru) put(key string, value []term.Value) {
	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry).value = value
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruEntry{key: key, value: value})
	c.items[key] = el
	if c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).key)
		}
	}
}

// cacheKey builds a cache key from a call head and its already-evaluated
// argument list. Each argument contributes its term.Encode CBOR bytes;
// CBOR items are self-delimiting, so two different argument lists never
// share a key (String renderings can: the atom `a b` and the expression
// `(a b)` print alike).
func cacheKey(head string, args []term.Value) string {
	key := head + "\x00"
	for _, a := range args {
		data, err := term.Encode(a)
		if err != nil {
			data = []byte(a.Kind().String() + ":" + a.String())
		}
		key += string(data)
	}
	return key
}
