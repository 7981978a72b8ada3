package module

// Cache maps module names to their resolution and remembers insertion order
// so the archive is written deterministically. It is owned by one assembly
// and is not safe for concurrent use.
type Cache struct {
	order []string
	items map[string]*Resolved
}

func NewCache() *Cache {
	return &Cache{items: make(map[string]*Resolved)}
}

// Has reports whether name has been resolved.
func (c *Cache) Has(name Name) bool {
	_, ok := c.items[name.String()]
	return ok
}

// Add stores r unless its name is already present. It reports whether r was stored.
func (c *Cache) Add(r Resolved) bool {
	key := r.Name.String()
	if _, ok := c.items[key]; ok {
		return false
	}
	stored := r
	c.items[key] = &stored
	c.order = append(c.order, key)
	return true
}

func (c *Cache) Get(name Name) (Resolved, bool) {
	r, ok := c.items[name.String()]
	if !ok {
		return Resolved{}, false
	}
	return *r, true
}

func (c *Cache) Len() int {
	return len(c.order)
}

// Entries returns the cached modules in insertion order.
func (c *Cache) Entries() []Resolved {
	out := make([]Resolved, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, *c.items[key])
	}
	return out
}

// Names returns the dotted names in insertion order.
func (c *Cache) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
