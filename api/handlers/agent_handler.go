// api/handlers/agent_handler.go
package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-cms/internal/auth"
	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
	"github.com/Annany2002/nebula-cms/internal/core"
	"github.com/Annany2002/nebula-cms/internal/form"
	"github.com/Annany2002/nebula-cms/internal/metrics"
	"github.com/Annany2002/nebula-cms/internal/storage"
)

// AgentHandler serves the agent profile collection. The collection is read
// whole and written whole; there is no per-agent write endpoint.
type AgentHandler struct {
	MetaDB   *sql.DB
	Compiler *form.Compiler
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(metaDB *sql.DB, compiler *form.Compiler) *AgentHandler {
	return &AgentHandler{MetaDB: metaDB, Compiler: compiler}
}

// ListAgents returns every agent keyed by agent key.
func (h *AgentHandler) ListAgents(c *gin.Context) {
	agents, err := storage.ListAgents(c.Request.Context(), h.MetaDB)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, agents)
}

// GetAgent returns one agent with its key echoed as "id".
func (h *AgentHandler) GetAgent(c *gin.Context) {
	key := c.Param("agent_id")
	if !core.IsValidRecordKey(key) {
		_ = c.Error(fmt.Errorf("%w: invalid agent id '%s'", auth.ErrBadRequest, key))
		return
	}

	agent, err := storage.GetAgent(c.Request.Context(), h.MetaDB, key)
	if err != nil {
		_ = c.Error(err)
		return
	}
	agent["id"] = key
	c.JSON(http.StatusOK, agent)
}

// ReplaceAgents overwrites the whole collection. Every key is checked and,
// when the CMS document declares an agents table, every body is validated;
// failures are reported together as "<key>" or "<key>.<field>". Agents that
// already exist are validated as updates of their stored body.
func (h *AgentHandler) ReplaceAgents(c *gin.Context) {
	var agents map[string]map[string]any
	if err := c.ShouldBindJSON(&agents); err != nil {
		_ = c.Error(fmt.Errorf("%w: body must be an object of agent bodies", auth.ErrBadRequest))
		return
	}

	plan, err := h.Compiler.Plan(cmsconfig.AgentsTable)
	if err != nil && !errors.Is(err, cmsconfig.ErrTableNotFound) {
		_ = c.Error(err)
		return
	}

	// stored bodies decide hidden and readonly values of existing agents
	var existing map[string]map[string]any
	if plan != nil {
		if existing, err = storage.ListAgents(c.Request.Context(), h.MetaDB); err != nil {
			_ = c.Error(err)
			return
		}
	}

	failures := map[string]string{}
	validated := make(map[string]map[string]any, len(agents))
	for key, body := range agents {
		if !core.IsValidRecordKey(key) {
			failures[key] = "invalid agent key"
			continue
		}
		delete(body, "id")
		if plan == nil {
			validated[key] = body
			continue
		}
		var res form.Result
		if current, ok := existing[key]; ok {
			res = plan.ValidateUpdate(current, body)
		} else {
			res = plan.Validate(body)
		}
		for field, msg := range res.Errors {
			failures[key+"."+field] = msg
		}
		validated[key] = res.Values
	}

	if len(failures) > 0 {
		metrics.ValidationFailuresTotal.WithLabelValues(cmsconfig.AgentsTable).Inc()
		_ = c.Error(&form.ValidationError{Table: cmsconfig.AgentsTable, Errors: failures})
		return
	}

	if err := storage.ReplaceAgents(c.Request.Context(), h.MetaDB, validated); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Agent configuration saved", "count": len(validated)})
}
