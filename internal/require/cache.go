package require

import "sync"

// Cache stores requirement check results for the lifetime of a command, so
// a project with several applications looks each tool up once.
type Cache struct {
	mu      sync.Mutex
	results map[string]CheckResult // toolName -> result
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		results: make(map[string]CheckResult),
	}
}

// Get retrieves a cached result for a tool.
func (c *Cache) Get(tool string) (CheckResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, ok := c.results[tool]
	return result, ok
}

// Set stores a result for a tool.
func (c *Cache) Set(tool string, result CheckResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[tool] = result
}

// Clear removes all cached results, e.g. after the user installed a tool.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = make(map[string]CheckResult)
}
