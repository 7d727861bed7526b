package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// writeNotAuthorized is the single answer for every authorization failure:
// bad signature, expired token, ineligible or spent charge.  Keeping them
// indistinguishable denies attackers an oracle.
func writeNotAuthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "not_authorized", "not authorized")
}

// clientIP is the rate-limit identity: first X-Forwarded-For hop when
// present, otherwise the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func itoa(n int) string { return strconv.Itoa(n) }
