package tektronix

import (
	"sort"
	"strings"
	"sync"
)

// Catalog caches the names in the waveform list of one instrument.  It is
// filled on first use and dropped by Invalidate, so a set loaded behind the
// driver's back is only seen after an Invalidate.
type Catalog struct {
	mu     sync.Mutex
	t      Transport
	names  map[string]struct{}
	loaded bool
}

// NewCatalog returns an empty cache over t
func NewCatalog(t Transport) *Catalog {
	return &Catalog{t: t}
}

func (c *Catalog) refresh() error {
	resp, err := c.t.Query("WLISt:LIST?")
	if err != nil {
		return err
	}
	c.names = map[string]struct{}{}
	for _, n := range strings.Split(strings.ReplaceAll(resp, `"`, ""), ",") {
		n = strings.TrimSpace(n)
		if n != "" {
			c.names[n] = struct{}{}
		}
	}
	c.loaded = true
	return nil
}

// Contains reports whether the instrument holds a waveform called name
func (c *Catalog) Contains(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		if err := c.refresh(); err != nil {
			return false, err
		}
	}
	_, ok := c.names[name]
	return ok, nil
}

// Names lists the cached waveform names, sorted
func (c *Catalog) Names() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		if err := c.refresh(); err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Ensure makes sure name is in the waveform list, calling load if it is not.
// The list is read again after load.
func (c *Catalog) Ensure(name string, load func() error) error {
	ok, err := c.Contains(name)
	if err != nil || ok {
		return err
	}
	if err := load(); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// Invalidate forgets the cached list
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = nil
	c.loaded = false
}
