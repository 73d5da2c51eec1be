package board

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quid/activity"
	"quid/common"
	"quid/metrics"
	"quid/models"
)

// DefaultAlias is used when a poster gives no alias and has none remembered.
const DefaultAlias = "anonyme"

type BoardModule struct {
	db            *gorm.DB
	activity      *activity.ActivityModule
	listLimit     int
	secureCookies bool
}

func NewBoardModule(db *gorm.DB, activityModule *activity.ActivityModule, cfg *common.Config) *BoardModule {
	return &BoardModule{
		db:            db,
		activity:      activityModule,
		listLimit:     cfg.ListLimit,
		secureCookies: cfg.SSL,
	}
}

func (b *BoardModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", b.index)
	router.GET("/p/:id", b.prologue)
	router.POST("/p/:id", b.postReply)
	router.POST("/reply", b.postReplyForm)
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (b *BoardModule) index(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))

	prologues, err := b.listPrologues(category)
	if err != nil {
		log.Printf("Error listing prologues: %v", err)
		common.RenderError(c, b.db, http.StatusInternalServerError, "erreur lors du chargement des prologues")
		return
	}

	data := gin.H{
		"prologues":        prologues,
		"current_category": category,
	}

	if id, ok := parseID(c.Query("p")); ok {
		if selected, err := b.getPrologue(id); err == nil {
			replies, err := b.listReplies(id)
			if err != nil {
				log.Printf("Error listing replies for prologue %d: %v", id, err)
				common.RenderError(c, b.db, http.StatusInternalServerError, "erreur lors du chargement des répliques")
				return
			}
			data["selected"] = selected
			data["replies"] = replies
			data["reply_form"] = b.replyForm(c, id)
		}
	}

	c.HTML(http.StatusOK, "home.html", common.Page(c, b.db, data))
}

func (b *BoardModule) prologue(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		common.RenderError(c, b.db, http.StatusNotFound, "prologue introuvable")
		return
	}

	p, err := b.getPrologue(id)
	if err != nil {
		b.prologueError(c, id, err)
		return
	}

	replies, err := b.listReplies(id)
	if err != nil {
		log.Printf("Error listing replies for prologue %d: %v", id, err)
		common.RenderError(c, b.db, http.StatusInternalServerError, "erreur lors du chargement des répliques")
		return
	}

	c.HTML(http.StatusOK, "prologue.html", common.Page(c, b.db, gin.H{
		"title":      p.Title,
		"p":          p,
		"replies":    replies,
		"reply_form": b.replyForm(c, id),
	}))
}

func (b *BoardModule) postReply(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		common.RenderError(c, b.db, http.StatusNotFound, "prologue introuvable")
		return
	}
	b.reply(c, id)
}

func (b *BoardModule) postReplyForm(c *gin.Context) {
	id, ok := parseID(c.PostForm("prologue_id"))
	if !ok {
		common.RenderError(c, b.db, http.StatusNotFound, "prologue introuvable")
		return
	}
	b.reply(c, id)
}

func (b *BoardModule) reply(c *gin.Context, id uint) {
	if _, err := b.getPrologue(id); err != nil {
		b.prologueError(c, id, err)
		return
	}

	target := fmt.Sprintf("/p/%d", id)
	alias := b.resolveAlias(c)
	content := strings.TrimSpace(c.PostForm("content"))

	if content == "" {
		metrics.ValidationRejected.WithLabelValues("reply").Inc()
		common.Flash(c, common.FlashError, "le contenu est vide")
		c.Redirect(http.StatusFound, target)
		return
	}

	ip := c.ClientIP()
	reply := models.Reply{
		PrologueID: id,
		Alias:      alias,
		Content:    content,
		IP:         ip,
	}
	if err := b.createReply(&reply); err != nil {
		log.Printf("Error saving reply on prologue %d: %v", id, err)
		common.RenderError(c, b.db, http.StatusInternalServerError, "erreur lors de l’enregistrement")
		return
	}
	metrics.RepliesCreated.Inc()

	b.activity.LogAlias(ip, alias)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.AliasCookie, alias, common.AliasCookieMaxAge, "/", "", b.secureCookies, true)
	common.Flash(c, common.FlashOK, "réplique ajoutée")
	c.Redirect(http.StatusFound, target)
}

// resolveAlias picks the form alias, then the remembered cookie, then DefaultAlias.
func (b *BoardModule) resolveAlias(c *gin.Context) string {
	if alias := strings.TrimSpace(c.PostForm("alias")); alias != "" {
		return alias
	}
	if alias := rememberedAlias(c); alias != "" {
		return alias
	}
	return DefaultAlias
}

func rememberedAlias(c *gin.Context) string {
	cookie, err := c.Cookie(common.AliasCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie)
}

// replyForm prefills the alias with the cookie value or the last alias seen
// from this address.
func (b *BoardModule) replyForm(c *gin.Context, id uint) gin.H {
	alias := rememberedAlias(c)
	if alias == "" {
		alias = b.activity.KnownAlias(c.ClientIP())
	}
	return gin.H{
		"id":    id,
		"alias": alias,
	}
}

func (b *BoardModule) prologueError(c *gin.Context, id uint, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		common.RenderError(c, b.db, http.StatusNotFound, "prologue introuvable")
		return
	}
	log.Printf("Error loading prologue %d: %v", id, err)
	common.RenderError(c, b.db, http.StatusInternalServerError, "erreur lors du chargement du prologue")
}
