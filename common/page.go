package common

import (
	"log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quid/models"
)

const (
	FlashOK    = "ok"
	FlashError = "error"

	// SessionAdminKey marks a session that entered the admin code.
	SessionAdminKey = "admin"
	// AliasCookie remembers the alias of an anonymous poster.
	AliasCookie = "alias"
	// AliasCookieMaxAge is 180 days.
	AliasCookieMaxAge = 60 * 60 * 24 * 180
)

// Flash queues a notice for the next rendered page.
func Flash(c *gin.Context, kind, message string) {
	session := sessions.Default(c)
	session.AddFlash(message, kind)
	if err := session.Save(); err != nil {
		log.Printf("Error saving flash: %v", err)
	}
}

// IsAdmin reports whether the session carries the admin flag.
func IsAdmin(c *gin.Context) bool {
	v, ok := sessions.Default(c).Get(SessionAdminKey).(bool)
	return ok && v
}

func flashes(session sessions.Session, kind string) []string {
	var out []string
	for _, f := range session.Flashes(kind) {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// BaseData collects what every page needs: navigation categories, pending
// flashes and the admin flag. Pending flashes are consumed.
func BaseData(c *gin.Context, db *gorm.DB) gin.H {
	var cats []models.Category
	if err := db.Order("name").Find(&cats).Error; err != nil {
		log.Printf("Error loading nav categories: %v", err)
	}

	session := sessions.Default(c)
	ok := flashes(session, FlashOK)
	errs := flashes(session, FlashError)
	if len(ok)+len(errs) > 0 {
		if err := session.Save(); err != nil {
			log.Printf("Error saving session: %v", err)
		}
	}

	return gin.H{
		"nav_categories": cats,
		"flash_ok":       ok,
		"flash_error":    errs,
		"is_admin":       IsAdmin(c),
	}
}

// Page merges handler specific values into BaseData.
func Page(c *gin.Context, db *gorm.DB, data gin.H) gin.H {
	h := BaseData(c, db)
	for k, v := range data {
		h[k] = v
	}
	return h
}

// RenderError renders the error page and stops the handler chain.
func RenderError(c *gin.Context, db *gorm.DB, status int, message string) {
	c.HTML(status, "error.html", Page(c, db, gin.H{
		"title": message,
		"error": message,
	}))
	c.Abort()
}
