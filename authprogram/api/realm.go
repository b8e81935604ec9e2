package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/andrebq/cgitauth/authprogram"
	"github.com/andrebq/cgitauth/internal/logutil"
	"github.com/julienschmidt/httprouter"
)

type (
	// Realm exposes the session checks over HTTP for front ends that
	// authenticate through a sub-request.
	Realm struct {
		sessions *authprogram.Sessions
		accounts authprogram.Accounts
	}

	health struct {
		Status string `json:"status"`
	}
)

const (
	maxFormSize = 64 * 1024
	pingTimeout = 2 * time.Second
)

func NewRealm(sessions *authprogram.Sessions, accounts authprogram.Accounts) *Realm {
	return &Realm{
		sessions: sessions,
		accounts: accounts,
	}
}

// Handler routes the realm endpoints.
func (s *Realm) Handler() http.Handler {
	router := httprouter.New()
	s.Register(router)
	return router
}

// Register adds the realm endpoints to router.
func (s *Realm) Register(router *httprouter.Router) {
	router.HandlerFunc("GET", "/auth", s.checkAuth)
	router.HandlerFunc("POST", "/login", s.login)
	router.HandlerFunc("POST", "/logout", s.logout)
	router.HandlerFunc("GET", "/health", s.health)
}

// Protect only calls sensitive for requests carrying a valid session.
func (s *Realm) Protect(sensitive http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.check(r) != authprogram.Granted {
			http.Error(w, "Invalid credentials", http.StatusForbidden)
			return
		}
		sensitive.ServeHTTP(w, r)
	})
}

func (s *Realm) check(r *http.Request) authprogram.Decision {
	return s.sessions.VerifyCookie(r.Context(), strings.Join(r.Header.Values("Cookie"), "; "))
}

func (s *Realm) checkAuth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store")
	if s.check(r) != authprogram.Granted {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Realm) login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store")
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	err := r.ParseForm()
	if err != nil {
		http.Error(w, "unable to parse login form", http.StatusBadRequest)
		return
	}
	passwd := authprogram.PlainText(r.PostFormValue("password"))
	defer passwd.Zero()
	tk, err := s.sessions.Login(r.Context(), s.accounts, r.PostFormValue("username"), passwd)
	if err != nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	http.SetCookie(w, authprogram.NewCookie(tk, "", s.sessions.TTL(), isSecure(r)))
	http.Redirect(w, r, redirectTarget(r.PostFormValue("redirect")), http.StatusSeeOther)
}

func (s *Realm) logout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store")
	err := s.sessions.Logout(r.Context(), strings.Join(r.Header.Values("Cookie"), "; "))
	if err != nil {
		http.Error(w, "unable to revoke session, check logs for more information", http.StatusBadGateway)
		return
	}
	http.SetCookie(w, authprogram.ExpiredCookie("", isSecure(r)))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Realm) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()
	status, code := health{Status: "ok"}, http.StatusOK
	if err := s.sessions.Cache().Ping(ctx); err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Error().Err(err).Msg("Session cache is not reachable")
		status, code = health{Status: "degraded"}, http.StatusServiceUnavailable
	}
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// redirectTarget only follows local paths so the login form cannot be
// used to bounce users to another site.
func redirectTarget(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	return target
}
