package handlers

// handlers serve the search front end: a form, the enriched result page and
// a health probe. Enrichment itself happens behind the Enricher interface.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"albumvibe/models"
	"albumvibe/pages"
	"albumvibe/sentry"
)

const defaultRequestTimeout = 10 * time.Second

type Enricher interface {
	Enrich(ctx context.Context, query string) (*models.EnrichedResult, error)
}

type Options struct {
	RequestTimeout time.Duration
	EnableSentry   bool
}

type Manager struct {
	enricher Enricher
	timeout  time.Duration
}

func NewManager(enricher Enricher, opts Options) *Manager {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Manager{enricher: enricher, timeout: timeout}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(enricher Enricher, opts Options) *gin.Engine {
	manager := NewManager(enricher, opts)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if opts.EnableSentry {
		router.Use(sentry.Middleware())
	}
	router.SetHTMLTemplate(pages.Templates)

	router.GET("/", manager.Home)
	router.POST("/results", manager.Results)
	router.GET("/health", manager.Health)

	return router
}

func (m *Manager) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "home.html", gin.H{"Query": ""})
}

// Results runs one enrichment for the submitted query. Both the search_term
// and the older artist field names are accepted.
func (m *Manager) Results(c *gin.Context) {
	query := strings.TrimSpace(c.PostForm("search_term"))
	if query == "" {
		query = strings.TrimSpace(c.PostForm("artist"))
	}
	if query == "" {
		c.HTML(http.StatusBadRequest, "home.html", gin.H{
			"Query":   "",
			"Message": "Type an album or artist name to search.",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), m.timeout)
	defer cancel()

	result, err := m.enricher.Enrich(ctx, query)
	if err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			log.Debugf("No results for %q", query)
			c.HTML(http.StatusOK, "noresults.html", gin.H{"Title": "No results", "Query": query})
			return
		}

		status, message := describe(err)
		log.Errorf("Enrichment of %q failed with %d: %v", query, status, err)
		sentry.ReportError(ctx, err)
		c.HTML(status, "error.html", gin.H{
			"Title":   fmt.Sprintf("%d %s", status, http.StatusText(status)),
			"Message": message,
			"Query":   query,
		})
		return
	}

	c.HTML(http.StatusOK, "results.html", gin.H{
		"Title":  result.Album.Name,
		"Query":  query,
		"Result": result,
	})
}

func (m *Manager) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// describe maps a failed enrichment to a response status and a message safe
// to show the visitor.
func describe(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrAuth):
		return http.StatusServiceUnavailable, "The music catalog rejected our credentials. Please try again later."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The music catalog took too long to answer."
	case errors.Is(err, models.ErrUpstream):
		return http.StatusBadGateway, "The music catalog is not responding correctly."
	}
	return http.StatusInternalServerError, "Something went wrong while building this page."
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("Handled request")
	}
}
