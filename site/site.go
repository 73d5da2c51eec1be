package site

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quid/common"
	"quid/metrics"
	"quid/models"
)

type SiteModule struct {
	db     *gorm.DB
	domain string
}

func NewSiteModule(db *gorm.DB, domain string) *SiteModule {
	if domain == "" {
		domain = "http://localhost:5000"
	}
	return &SiteModule{db: db, domain: strings.TrimSuffix(domain, "/")}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/interest", s.interest)
	router.GET("/_health", s.health)
	router.GET("/sitemap.xml", s.sitemap)
}

func (s *SiteModule) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// interest stores an email for launch news and sends the visitor back where
// they came from.
func (s *SiteModule) interest(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))

	if email == "" {
		metrics.ValidationRejected.WithLabelValues("interest").Inc()
		common.Flash(c, common.FlashError, "email invalide")
	} else if err := s.db.Create(&models.InterestEmail{Email: email}).Error; err != nil {
		log.Printf("Error saving interest email: %v", err)
		common.RenderError(c, s.db, http.StatusInternalServerError, "erreur lors de l’enregistrement")
		return
	} else {
		metrics.InterestCaptured.Inc()
		common.Flash(c, common.FlashOK, "merci, on vous tient au courant")
	}

	c.Redirect(http.StatusFound, backTo(c.Request.Referer()))
}

// backTo keeps redirects on this site: only the path and query of the
// referrer are reused, and paths a browser would read as another host fall
// back to the home page.
func backTo(referrer string) string {
	if referrer == "" {
		return "/"
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return "/"
	}
	path := u.EscapedPath()
	if !localPath(path) || !localPath(u.Path) {
		return "/"
	}
	if u.RawQuery != "" {
		return path + "?" + u.RawQuery
	}
	return path
}

func localPath(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	return !strings.HasPrefix(path, "//") && !strings.HasPrefix(path, `/\`)
}

func (s *SiteModule) sitemap(c *gin.Context) {
	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	writeURL := func(loc, lastmod, changefreq, priority string) {
		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + xmlEscape(loc) + "</loc>\n")
		if lastmod != "" {
			sitemap.WriteString("    <lastmod>" + lastmod + "</lastmod>\n")
		}
		sitemap.WriteString("    <changefreq>" + changefreq + "</changefreq>\n")
		sitemap.WriteString("    <priority>" + priority + "</priority>\n")
		sitemap.WriteString("  </url>\n")
	}

	writeURL(s.domain+"/", "", "daily", "1.0")

	var cats []models.Category
	if err := s.db.Order("name").Find(&cats).Error; err != nil {
		log.Printf("Error loading categories for sitemap: %v", err)
		common.RenderError(c, s.db, http.StatusInternalServerError, "erreur lors du chargement du plan du site")
		return
	}
	for _, cat := range cats {
		writeURL(s.domain+"/?category="+url.QueryEscape(cat.Name), "", "daily", "0.7")
	}

	var prologues []models.Prologue
	if err := s.db.Order("id DESC").Find(&prologues).Error; err != nil {
		log.Printf("Error loading prologues for sitemap: %v", err)
		common.RenderError(c, s.db, http.StatusInternalServerError, "erreur lors du chargement du plan du site")
		return
	}
	for _, p := range prologues {
		writeURL(fmt.Sprintf("%s/p/%d", s.domain, p.ID), p.CreatedAt.Format("2006-01-02"), "weekly", "0.6")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}

var xmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
