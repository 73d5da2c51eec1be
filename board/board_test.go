package board

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"quid/activity"
	"quid/common"
	"quid/database"
	"quid/models"
	"quid/views"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.RunMigrations(db))
	require.NoError(t, database.SeedCategories(db))
	return db
}

func newTestModule(db *gorm.DB) *BoardModule {
	return NewBoardModule(db, activity.NewActivityModule(db), common.DefaultConfig())
}

func setupTestRouter(boardModule *BoardModule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))
	views.Load(router)
	boardModule.RegisterRoutes(router)
	return router
}

func createTestPrologue(db *gorm.DB, title, category string) *models.Prologue {
	p := &models.Prologue{Title: title, Content: "intro de " + title}
	if category != "" {
		var cat models.Category
		db.Where("name = ?", category).First(&cat)
		p.CategoryID = &cat.ID
	}
	db.Create(p)
	return p
}

func postForm(router *gin.Engine, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router *gin.Engine, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// responseCookies keeps the last value written for each cookie name.
func responseCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	resp := http.Response{Header: w.Header()}
	last := map[string]*http.Cookie{}
	var order []string
	for _, c := range resp.Cookies() {
		if _, seen := last[c.Name]; !seen {
			order = append(order, c.Name)
		}
		last[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(order))
	for _, name := range order {
		out = append(out, last[name])
	}
	return out
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func countReplies(db *gorm.DB, prologueID uint) int64 {
	var n int64
	db.Model(&models.Reply{}).Where("prologue_id = ?", prologueID).Count(&n)
	return n
}

func TestListPrologues_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	boardModule := newTestModule(db)

	createTestPrologue(db, "premier", "")
	createTestPrologue(db, "second", "")
	newest := createTestPrologue(db, "troisième", "")

	prologues, err := boardModule.listPrologues("")

	require.NoError(t, err)
	require.Len(t, prologues, 3)
	assert.Equal(t, newest.ID, prologues[0].ID)
	assert.Equal(t, "premier", prologues[2].Title)
}

func TestListPrologues_FilterByCategory(t *testing.T) {
	db := setupTestDB(t)
	boardModule := newTestModule(db)

	createTestPrologue(db, "foot", "sport")
	createTestPrologue(db, "élections", "politique")
	createTestPrologue(db, "tennis", "sport")

	prologues, err := boardModule.listPrologues("sport")

	require.NoError(t, err)
	require.Len(t, prologues, 2)
	assert.Equal(t, "tennis", prologues[0].Title)
	assert.Equal(t, "sport", prologues[0].CategoryName())
}

func TestListPrologues_UnknownCategory(t *testing.T) {
	db := setupTestDB(t)
	boardModule := newTestModule(db)

	createTestPrologue(db, "foot", "sport")

	prologues, err := boardModule.listPrologues("inexistante")

	require.NoError(t, err)
	assert.Empty(t, prologues)
}

func TestListPrologues_Limit(t *testing.T) {
	db := setupTestDB(t)
	boardModule := newTestModule(db)
	boardModule.listLimit = 2

	for i := 0; i < 5; i++ {
		createTestPrologue(db, fmt.Sprintf("p%d", i), "")
	}

	prologues, err := boardModule.listPrologues("")

	require.NoError(t, err)
	require.Len(t, prologues, 2)
	assert.Equal(t, "p4", prologues[0].Title)
}

func TestListReplies_AscendingIDRegardlessOfTimestamps(t *testing.T) {
	db := setupTestDB(t)
	boardModule := newTestModule(db)
	p := createTestPrologue(db, "p", "")

	now := time.Now().UTC()
	db.Create(&models.Reply{PrologueID: p.ID, Alias: "a", Content: "un", CreatedAt: now})
	db.Create(&models.Reply{PrologueID: p.ID, Alias: "b", Content: "deux", CreatedAt: now.Add(-time.Hour)})
	db.Create(&models.Reply{PrologueID: p.ID, Alias: "c", Content: "trois", CreatedAt: now.Add(-48 * time.Hour)})

	replies, err := boardModule.listReplies(p.ID)

	require.NoError(t, err)
	require.Len(t, replies, 3)
	assert.Equal(t, "un", replies[0].Content)
	assert.Equal(t, "deux", replies[1].Content)
	assert.Equal(t, "trois", replies[2].Content)
	assert.Less(t, replies[0].ID, replies[1].ID)
	assert.Less(t, replies[1].ID, replies[2].ID)
}

func TestIndex_ListsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(newTestModule(db))

	createTestPrologue(db, "ancien sujet", "")
	createTestPrologue(db, "nouveau sujet", "")

	w := get(router, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Less(t, strings.Index(body, "nouveau sujet"), strings.Index(body, "ancien sujet"))
}

func TestIndex_SelectedPrologue(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(newTestModule(db))

	p := createTestPrologue(db, "sujet choisi", "")
	db.Create(&models.Reply{PrologueID: p.ID, Alias: "zoé", Content: "première réplique"})

	w := get(router, fmt.Sprintf("/?p=%d", p.ID))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "première réplique")
	assert.Contains(t, w.Body.String(), fmt.Sprintf(`action="/p/%d"`, p.ID))
}

func TestPrologue_Success(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(newTestModule(db))

	p := createTestPrologue(db, "un sujet", "sport")
	db.Create(&models.Reply{PrologueID: p.ID, Alias: "alice", Content: "réplique A"})
	db.Create(&models.Reply{PrologueID: p.ID, Alias: "bob", Content: "réplique B"})

	w := get(router, fmt.Sprintf("/p/%d", p.ID))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "un sujet")
	assert.Contains(t, body, "sport")
	assert.Less(t, strings.Index(body, "réplique A"), strings.Index(body, "réplique B"))
}

func TestPrologue_NotFound(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(newTestModule(db))

	w := get(router, "/p/999")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "prologue introuvable")

	w = get(router, "/p/abc")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostReply_Success(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(newTestModule(db))
	p := createTestPrologue(db, "p", "")

	w := postForm(router, fmt.Sprintf("/p/%d", p.ID), url.Values{
		"alias":   {"  camille "},
		"content": {" bonjour "},
	})

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/p/%d", p.ID), w.Header().Get("Location"))
	assert.Equal(t, int64(1), countReplies(db, p.ID))

	var reply models.Reply
	db.Where("prologue_id = ?", p.ID).First(&reply)
	assert.Equal(t, "camille", reply.Alias)
	assert.Equal(t, "bonjour", reply.Content)
	assert.Equal(t, "192.0.2.1", reply.IP)

	aliasCookie := findCookie(responseCookies(w), common.AliasCookie)
	require.NotNil(t, aliasCookie)
	assert.Equal(t, "camille", aliasCookie.Value)
	assert.Equal(t, common.AliasCookieMaxAge, aliasCookie.MaxAge)
	assert.True(t, aliasCookie.HttpOnly)

	var logged models.AliasIP
	require.NoError(t, db.Where("ip = ?", "192.0.2.1").First(&logged).Error)
	assert.Equal(t, "camille", logged.Alias)
}

func TestPostReply_EmptyContent(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(newTestModule(db))
	p := createTestPrologue(db, "p", "")
	path := fmt.Sprintf("/p/%d", p.ID)

	w := postForm(router, path, url.Values{"alias": {"x"}, "content": {"   "}})

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, path, w.Header().Get("Location"))
	assert.Equal(t, int64(0), countReplies(db, p.ID))
	assert.Nil(t, findCookie(responseCookies(w), common.AliasCookie))

	// the notice shows up on the next page
	w = get(router, path, responseCookies(w)...)
	assert.Contains(t, w.Body.String(), "le contenu est vide")
}

func TestPostReply_AliasFallbacks(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(newTestModule(db))
	p := createTestPrologue(db, "p", "")
	path := fmt.Sprintf("/p/%d", p.ID)

	postForm(router, path, url.Values{"content": {"sans alias"}})
	postForm(router, path, url.Values{"content": {"avec cookie"}}, &http.Cookie{Name: common.AliasCookie, Value: url.QueryEscape("mémoire")})

	replies, err := newTestModule(db).listReplies(p.ID)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, DefaultAlias, replies[0].Alias)
	assert.Equal(t, "mémoire", replies[1].Alias)
}

func TestPostReply_FormAliasBeatsCookie(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(newTestModule(db))
	p := createTestPrologue(db, "p", "")

	postForm(router, fmt.Sprintf("/p/%d", p.ID),
		url.Values{"alias": {"nouveau"}, "content": {"x"}},
		&http.Cookie{Name: common.AliasCookie, Value: "ancien"})

	var reply models.Reply
	db.Where("prologue_id = ?", p.ID).First(&reply)
	assert.Equal(t, "nouveau", reply.Alias)
}

func TestPostReply_ReplyRoute(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(newTestModule(db))
	p := createTestPrologue(db, "p", "")

	w := postForm(router, "/reply", url.Values{
		"prologue_id": {fmt.Sprint(p.ID)},
		"content":     {"via /reply"},
	})

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, int64(1), countReplies(db, p.ID))
}

func TestPostReply_UnknownPrologue(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(newTestModule(db))

	w := postForm(router, "/p/42", url.Values{"content": {"orphan"}})

	assert.Equal(t, http.StatusNotFound, w.Code)
	var n int64
	db.Model(&models.Reply{}).Count(&n)
	assert.Equal(t, int64(0), n)
}

func TestReplyForm_PrefillsKnownAlias(t *testing.T) {
	db := setupTestDB(t)
	boardModule := newTestModule(db)
	router := setupTestRouter(boardModule)
	p := createTestPrologue(db, "p", "")

	boardModule.activity.LogAlias("192.0.2.1", "habitué")

	w := get(router, fmt.Sprintf("/p/%d", p.ID))

	assert.Contains(t, w.Body.String(), `value="habitué"`)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input string
		id    uint
		ok    bool
	}{
		{"1", 1, true},
		{" 12 ", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			id, ok := parseID(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}
