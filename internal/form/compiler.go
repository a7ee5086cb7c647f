// internal/form/compiler.go
package form

import (
	"sync"

	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
	"github.com/Annany2002/nebula-cms/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// Compiler compiles table plans from the CMS document once and caches them
// by table id. The document is treated as immutable for the process lifetime.
type Compiler struct {
	cfg *cmsconfig.CMSConfig

	mu    sync.RWMutex
	plans map[string]*Plan
}

// NewCompiler creates a Compiler over a loaded CMS document.
func NewCompiler(cfg *cmsconfig.CMSConfig) *Compiler {
	return &Compiler{
		cfg:   cfg,
		plans: make(map[string]*Plan),
	}
}

// Config returns the underlying CMS document.
func (c *Compiler) Config() *cmsconfig.CMSConfig {
	return c.cfg
}

// Plan returns the cached plan for tableID, compiling it on first use.
func (c *Compiler) Plan(tableID string) (*Plan, error) {
	c.mu.RLock()
	plan, ok := c.plans[tableID]
	c.mu.RUnlock()
	if ok {
		return plan, nil
	}

	table, err := c.cfg.Table(tableID)
	if err != nil {
		return nil, err
	}

	plan, err = Compile(table)
	if err != nil {
		customLog.Warnf("Form: Failed to compile plan for table '%s': %v", tableID, err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.plans[tableID]; ok {
		return existing, nil
	}
	c.plans[tableID] = plan
	customLog.Debugf("Form: Compiled plan for table '%s' (%d visible fields)", tableID, len(plan.Fields))
	return plan, nil
}

// CheckAll compiles every table and returns the failures keyed by table id.
func (c *Compiler) CheckAll() map[string]error {
	failures := make(map[string]error)
	for _, id := range c.cfg.TableIDs() {
		if _, err := c.Plan(id); err != nil {
			failures[id] = err
		}
	}
	return failures
}
