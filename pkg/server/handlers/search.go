// Package handlers implements the HTTP endpoint handlers.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/venturegraph/venturegraph"
	"github.com/venturegraph/venturegraph/pkg/server/dto"
	"github.com/venturegraph/venturegraph/pkg/store"
)

// SearchHandler handles retrieval requests
type SearchHandler struct {
	client venturegraph.VentureGraph
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(client venturegraph.VentureGraph) *SearchHandler {
	return &SearchHandler{client: client}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	response, err := h.client.Search(c.Request.Context(), req.Query, &venturegraph.SearchOptions{
		TopK:         req.TopK,
		GraphDepth:   req.GraphDepth,
		MinScore:     req.MinScore,
		FilterType:   req.FilterType,
		MinRepoStars: req.MinRepoStars,
		PersonRoles:  req.PersonRoles,
		SkipGraph:    req.SkipGraph,
		SkipSummary:  req.SkipSummary,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, response)
}

// Similar handles POST /api/v1/similar
func (h *SearchHandler) Similar(c *gin.Context) {
	var req dto.SimilarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	matches, err := h.client.FindSimilar(c.Request.Context(), req.NodeID, req.TopK)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"node_id": req.NodeID, "matches": matches})
}

// Network handles GET /api/v1/entity/:id/network
func (h *SearchHandler) Network(c *gin.Context) {
	nodeID := c.Param("id")
	if nodeID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "entity id is required"})
		return
	}

	depth := 1
	if raw := c.Query("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 4 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "depth must be an integer between 1 and 4"})
			return
		}
		depth = parsed
	}

	network, err := h.client.EntityNetwork(c.Request.Context(), nodeID, depth)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, network)
}
