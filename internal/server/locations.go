package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monorkin/airgradient-dashboard/internal/locations"
)

type pageParams struct {
	Limit  int `form:"limit" binding:"min=0"`
	Offset int `form:"offset" binding:"min=0"`
}

func (handler *Handler) ListLocations(c *gin.Context) {
	var page pageParams
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	result, err := handler.locations.List(c.Request.Context(), page.Limit, page.Offset)
	if err != nil {
		handler.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (handler *Handler) GetLocation(c *gin.Context) {
	location, err := handler.locations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, location)
}

func (handler *Handler) CreateLocation(c *gin.Context) {
	var input locations.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	location, err := handler.locations.Create(c.Request.Context(), input)
	if err != nil {
		handler.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, location)
}

func (handler *Handler) UpdateLocation(c *gin.Context) {
	var input locations.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	location, err := handler.locations.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		handler.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, location)
}

func (handler *Handler) DeleteLocation(c *gin.Context) {
	result, err := handler.locations.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SyncLocations refreshes the location catalog from the vendor feed.
func (handler *Handler) SyncLocations(c *gin.Context) {
	synced, err := handler.locations.SyncFromAPI(c.Request.Context())
	if err != nil {
		handler.logger.Error("Error in location sync", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, synced)
}
