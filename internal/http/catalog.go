package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxSearchResults = 50

type CatalogController struct {
	catalog Catalog
}

func NewCatalogController(catalog Catalog) *CatalogController {
	return &CatalogController{catalog: catalog}
}

// Search handles GET /api/items/search?q=&limit=
func (cc *CatalogController) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respondBadRequest(c, "q is required")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > maxSearchResults {
		limit = 20
	}

	items, err := cc.catalog.SearchItems(query, limit)
	if err != nil {
		respondInternalError(c, err, "item search")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
