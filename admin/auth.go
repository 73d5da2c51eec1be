package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"quid/common"
	"quid/metrics"
)

const basicRealm = `Basic realm="quid"`

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// checkCode validates the shared admin code.
func (a *AdminModule) checkCode(code string) bool {
	if code == "" || a.codeHash == "" {
		return false
	}
	return checkPasswordHash(code, a.codeHash)
}

func (a *AdminModule) checkBasic(user, password string) bool {
	if !a.basicEnabled {
		return false
	}
	userOK := secureEqual(user, a.basicUser)
	passOK := secureEqual(password, a.basicPassword)
	return userOK && passOK
}

// requireAdmin lets through sessions that entered the admin code and requests
// carrying the configured Basic credentials. Without Basic credentials
// configured, anyone else gets 403; with them, a 401 challenge.
func (a *AdminModule) requireAdmin(c *gin.Context) {
	if common.IsAdmin(c) {
		c.Next()
		return
	}

	if !a.basicEnabled {
		metrics.AdminDenied.WithLabelValues("403").Inc()
		common.RenderError(c, a.db, http.StatusForbidden, "accès réservé")
		return
	}

	user, password, ok := c.Request.BasicAuth()
	if !ok || !a.checkBasic(user, password) {
		metrics.AdminDenied.WithLabelValues("401").Inc()
		c.Header("WWW-Authenticate", basicRealm)
		common.RenderError(c, a.db, http.StatusUnauthorized, "identifiants requis")
		return
	}

	c.Next()
}
