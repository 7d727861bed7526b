package httpapi

import (
	"net/http"

	"github.com/pixelating-community/web-sub001/internal/perspectives/token"
)

// adminTokenHeader carries the server-held operator credential for the
// elevated write path.
const adminTokenHeader = "X-Admin-Token"

// Cookie names are derived from the perspective id so tokens for different
// perspectives never collide in the browser jar.
func accessCookieName(perspectiveID string) string {
	return "perspective_" + perspectiveID
}

func writeCookieName(perspectiveID string) string {
	return accessCookieName(perspectiveID) + "_w"
}

func readCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func setAccessCookie(w http.ResponseWriter, perspectiveID, value string) {
	setTokenCookie(w, accessCookieName(perspectiveID), value, int(token.MaxAge.Seconds()))
}

func setWriteCookie(w http.ResponseWriter, perspectiveID, value string) {
	setTokenCookie(w, writeCookieName(perspectiveID), value, int(token.MaxAge.Seconds()))
}

// clearWriteCookie expires the client's copy of a spent write token.  The
// token is inert either way; this is hygiene, not enforcement.
func clearWriteCookie(w http.ResponseWriter, perspectiveID string) {
	setTokenCookie(w, writeCookieName(perspectiveID), "", -1)
}

func setTokenCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
