package handler

import (
	"net/http"
	"strings"

	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type DocumentHandler struct {
	Store  docstore.Store
	Logger zerolog.Logger
}

func docPath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

func bindFields(c *gin.Context) (map[string]any, bool) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "invalid-argument"})
		return nil, false
	}
	return fields, true
}

// Set handles PUT; ?merge=true merges into an existing document.
func (h *DocumentHandler) Set(c *gin.Context) {
	fields, ok := bindFields(c)
	if !ok {
		return
	}
	var opts []docstore.SetOption
	if c.Query("merge") == "true" {
		opts = append(opts, docstore.Merge())
	}
	h.respond(c, "set", h.Store.Set(c.Request.Context(), docPath(c), fields, opts...))
}

func (h *DocumentHandler) Update(c *gin.Context) {
	fields, ok := bindFields(c)
	if !ok {
		return
	}
	h.respond(c, "update", h.Store.Update(c.Request.Context(), docPath(c), fields))
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	h.respond(c, "delete", h.Store.Delete(c.Request.Context(), docPath(c)))
}

func (h *DocumentHandler) respond(c *gin.Context, op string, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}
	uid, _ := middleware.UserIDFromContext(c)
	code := docstore.Code(err)
	h.Logger.Warn().
		Err(err).
		Str("op", op).
		Str("path", docPath(c)).
		Str("uid", uid).
		Str("code", code).
		Str("request_id", middleware.RequestIDFromContext(c)).
		Msg("document write failed")
	writeStoreError(c, err)
}

func writeStoreError(c *gin.Context, err error) {
	code := docstore.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case "invalid-argument":
		status = http.StatusBadRequest
	case "permission-denied":
		status = http.StatusForbidden
	case "not-found":
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
