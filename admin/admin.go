package admin

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quid/activity"
	"quid/common"
	"quid/metrics"
	"quid/models"
)

type AdminModule struct {
	db            *gorm.DB
	activity      *activity.ActivityModule
	codeHash      string
	basicEnabled  bool
	basicUser     string
	basicPassword string
}

func NewAdminModule(db *gorm.DB, activityModule *activity.ActivityModule, cfg *common.Config) *AdminModule {
	codeHash := cfg.AdminCodeHash
	if codeHash == "" && cfg.AdminCode != "" {
		hash, err := hashPassword(cfg.AdminCode)
		if err != nil {
			log.Printf("Error hashing admin code, code login disabled: %v", err)
		} else {
			codeHash = hash
		}
	}

	return &AdminModule{
		db:            db,
		activity:      activityModule,
		codeHash:      codeHash,
		basicEnabled:  cfg.BasicAuthConfigured(),
		basicUser:     cfg.AdminUser,
		basicPassword: cfg.AdminPassword,
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/login", a.loginPage)
	router.POST("/login", a.loginPost)
	router.GET("/logout", a.logout)
	router.POST("/", a.createFromIndex)

	adminGroup := router.Group("/admin")
	adminGroup.Use(a.requireAdmin)
	{
		adminGroup.GET("", a.dashboard)
		adminGroup.GET("/new", a.newPrologue)
		adminGroup.POST("/new", a.savePrologue)
		adminGroup.GET("/interest.csv", a.interestCSV)
	}
}

func (a *AdminModule) loginPage(c *gin.Context) {
	if common.IsAdmin(c) {
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.HTML(http.StatusOK, "login.html", common.Page(c, a.db, gin.H{
		"title": "mode créateur",
	}))
}

func (a *AdminModule) loginPost(c *gin.Context) {
	code := strings.TrimSpace(c.PostForm("code"))

	if !a.checkCode(code) {
		metrics.AdminDenied.WithLabelValues("401").Inc()
		common.Flash(c, common.FlashError, "code incorrect")
		c.HTML(http.StatusUnauthorized, "login.html", common.Page(c, a.db, gin.H{
			"title": "mode créateur",
		}))
		return
	}

	session := sessions.Default(c)
	session.Set(common.SessionAdminKey, true)
	if err := session.Save(); err != nil {
		log.Printf("Error saving admin session: %v", err)
	}

	common.Flash(c, common.FlashOK, "mode créateur activé")
	c.Redirect(http.StatusFound, "/")
}

func (a *AdminModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete(common.SessionAdminKey)
	if err := session.Save(); err != nil {
		log.Printf("Error saving session: %v", err)
	}

	common.Flash(c, common.FlashOK, "mode créateur désactivé")
	c.Redirect(http.StatusFound, "/")
}

// createFromIndex handles the creation form embedded in the home page. It
// only honors the session flag; Basic credentials are for /admin routes.
func (a *AdminModule) createFromIndex(c *gin.Context) {
	if !common.IsAdmin(c) {
		metrics.AdminDenied.WithLabelValues("302").Inc()
		common.Flash(c, common.FlashError, "seule la fondatrice peut créer un prologue (connectez-vous)")
		c.Redirect(http.StatusFound, "/login")
		return
	}
	a.createPrologue(c, "/")
}

func (a *AdminModule) newPrologue(c *gin.Context) {
	c.HTML(http.StatusOK, "new_prologue.html", common.Page(c, a.db, gin.H{
		"title": "nouveau prologue",
	}))
}

func (a *AdminModule) savePrologue(c *gin.Context) {
	a.createPrologue(c, "/admin/new")
}

var errUnknownCategory = errors.New("unknown category")

// parseCategory resolves the optional category_id form value.
func (a *AdminModule) parseCategory(raw string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errUnknownCategory
	}

	var cat models.Category
	if err := a.db.First(&cat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUnknownCategory
		}
		return nil, err
	}
	return &cat.ID, nil
}

// createPrologue validates and stores a new prologue, then redirects to it.
// Validation failures go back to formPath with a notice.
func (a *AdminModule) createPrologue(c *gin.Context, formPath string) {
	title := strings.TrimSpace(c.PostForm("title"))
	content := strings.TrimSpace(c.PostForm("content"))

	if title == "" {
		metrics.ValidationRejected.WithLabelValues("prologue").Inc()
		common.Flash(c, common.FlashError, "titre obligatoire")
		c.Redirect(http.StatusFound, formPath)
		return
	}

	categoryID, err := a.parseCategory(c.PostForm("category_id"))
	if errors.Is(err, errUnknownCategory) {
		metrics.ValidationRejected.WithLabelValues("prologue").Inc()
		common.Flash(c, common.FlashError, "catégorie inconnue")
		c.Redirect(http.StatusFound, formPath)
		return
	}
	if err != nil {
		log.Printf("Error loading category: %v", err)
		common.RenderError(c, a.db, http.StatusInternalServerError, "erreur lors de l’enregistrement")
		return
	}

	prologue := models.Prologue{
		Title:      title,
		Content:    content,
		CategoryID: categoryID,
	}
	if err := a.db.Create(&prologue).Error; err != nil {
		log.Printf("Error saving prologue: %v", err)
		common.RenderError(c, a.db, http.StatusInternalServerError, "erreur lors de l’enregistrement")
		return
	}
	metrics.ProloguesCreated.Inc()
	log.Printf("Prologue %d created: %q", prologue.ID, prologue.Title)

	common.Flash(c, common.FlashOK, "prologue ajouté")
	c.Redirect(http.StatusFound, fmt.Sprintf("/p/%d", prologue.ID))
}

// DayReplyChart is one bar of the replies-per-day chart.
type DayReplyChart struct {
	Date       string
	Count      int64
	Percentage float64
}

func (a *AdminModule) dashboard(c *gin.Context) {
	repliesByDay := a.activity.GetRepliesByDay(15)

	maxPerDay := int64(1)
	for _, day := range repliesByDay {
		if day.Count > maxPerDay {
			maxPerDay = day.Count
		}
	}

	dayCharts := make([]DayReplyChart, len(repliesByDay))
	for i, day := range repliesByDay {
		dayCharts[i] = DayReplyChart{
			Date:       day.Date,
			Count:      day.Count,
			Percentage: float64(day.Count) / float64(maxPerDay) * 100,
		}
	}

	var emails []models.InterestEmail
	if err := a.db.Order("id DESC").Limit(20).Find(&emails).Error; err != nil {
		log.Printf("Error loading interest emails: %v", err)
	}

	c.HTML(http.StatusOK, "admin_dashboard.html", common.Page(c, a.db, gin.H{
		"title":        "tableau de bord",
		"totals":       a.activity.GetTotals(),
		"repliesByDay": dayCharts,
		"topPrologues": a.activity.GetTopPrologues(30, 10),
		"emails":       emails,
		"aliases":      a.activity.RecentAliases(20),
	}))
}

func (a *AdminModule) interestCSV(c *gin.Context) {
	var emails []models.InterestEmail
	if err := a.db.Order("id ASC").Find(&emails).Error; err != nil {
		log.Printf("Error exporting interest emails: %v", err)
		common.RenderError(c, a.db, http.StatusInternalServerError, "erreur lors de l’export")
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="interest.csv"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"id", "email", "created_at"})
	for _, e := range emails {
		w.Write([]string{strconv.FormatUint(uint64(e.ID), 10), csvCell(e.Email), e.CreatedAt.UTC().Format(time.RFC3339)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Printf("Error writing interest csv: %v", err)
	}
}

// csvCell stops spreadsheets from evaluating visitor input as a formula.
func csvCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
