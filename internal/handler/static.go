package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// StaticHandler serves the application shell and its assets from Root.
// Dotfiles are never served. A directory redirects to its trailing-slash form
// and then serves its EntryDocument.
type StaticHandler struct {
	Root          string
	EntryDocument string
}

func (h *StaticHandler) Entry(c *gin.Context) {
	h.serve(c, h.EntryDocument)
}

// NoRoute serves unmatched GET and HEAD requests from Root.
func (h *StaticHandler) NoRoute(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		notFound(c)
		return
	}
	h.serve(c, c.Request.URL.Path)
}

func (h *StaticHandler) serve(c *gin.Context, name string) {
	// Cleaning against "/" drops any ".." that would climb out of Root.
	clean := path.Clean("/" + name)
	if hasDotSegment(clean) {
		notFound(c)
		return
	}
	full := filepath.Join(h.Root, filepath.FromSlash(clean))

	info, err := os.Stat(full)
	if err != nil {
		notFound(c)
		return
	}
	if info.IsDir() {
		if !strings.HasSuffix(name, "/") {
			target := *c.Request.URL
			target.Path += "/"
			target.RawPath = ""
			c.Redirect(http.StatusMovedPermanently, target.String())
			return
		}
		full = filepath.Join(full, h.EntryDocument)
	}

	f, err := os.Open(full)
	if err != nil {
		notFound(c)
		return
	}
	defer f.Close()

	info, err = f.Stat()
	if err != nil || info.IsDir() {
		notFound(c)
		return
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

func hasDotSegment(clean string) bool {
	for _, seg := range strings.Split(clean, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}
