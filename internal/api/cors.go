package api

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// The browser calls the agent directly from the web app, so the agent
// must answer CORS preflights itself. Only the app's origins are
// allowed; everything else gets no CORS headers at all.

const (
	corsAllowMethods = "GET, HEAD, POST, DELETE, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type, Range, X-Filmroom-Request-Id, X-Filmroom-Device-Id"
	corsExposeHeader = "Content-Range, Accept-Ranges, Content-Length, Content-Type"
)

func CORSAllowlist() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := origin != "" && isAllowedOrigin(origin)

			if allowed {
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Expose-Headers", corsExposeHeader)
			}

			if r.Method == http.MethodOptions {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isAllowedOrigin accepts localhost and 127.0.0.1 on any port, and the
// app's per-team subdomains: https://<team>.app.filmroom.co and the
// .local development equivalent.
func isAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return false
	}

	host := u.Hostname()
	if port := u.Port(); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return false
		}
	}
	// url.Parse tolerates some malformed ports; reject anything whose
	// reassembled host does not match.
	if !validHostPort(u.Host, host, u.Port()) {
		return false
	}

	switch u.Scheme {
	case "http":
		if host == "localhost" || host == "127.0.0.1" {
			return true
		}
		// Plain http is for local development only.
		return isTeamSubdomain(host, ".app.filmroom.local")
	case "https":
		return isTeamSubdomain(host, ".app.filmroom.co") ||
			isTeamSubdomain(host, ".app.filmroom.local")
	}
	return false
}

func validHostPort(full, host, port string) bool {
	want := host
	if strings.Contains(host, ":") {
		want = "[" + host + "]"
	}
	if port != "" {
		want += ":" + port
	}
	return full == want
}

func isTeamSubdomain(host, suffix string) bool {
	if !strings.HasSuffix(host, suffix) {
		return false
	}
	team := strings.TrimSuffix(host, suffix)
	if team == "" || strings.Contains(team, ".") {
		return false
	}
	if strings.HasPrefix(team, "-") || strings.HasSuffix(team, "-") {
		return false
	}
	for _, r := range team {
		valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
		if !valid {
			return false
		}
	}
	return true
}

// LoopbackGuard rejects requests that did not originate on this machine.
// The server binds 127.0.0.1, so this is belt and suspenders against
// port-forwarding setups.
func LoopbackGuard() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemoteAddr(r.RemoteAddr) {
				WriteError(w, http.StatusForbidden, "loopback connections only", "FORBIDDEN")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isLoopbackRemoteAddr(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
