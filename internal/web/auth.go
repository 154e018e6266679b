package web

import (
	"cmp"
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/raine/petition-web/internal/actions"
	"github.com/raine/petition-web/internal/api"
	"github.com/rs/zerolog/hlog"
)

const googleCSRFCookie = "g_csrf_token"

type signInView struct {
	GoogleClientID string
	GoogleLoginURI string
}

func (s *Server) handleSignInForm(w http.ResponseWriter, r *http.Request) {
	s.renderSignIn(w, r, http.StatusOK, &page{
		Form: url.Values{"next": {localPath(r.URL.Query().Get("next"))}},
	})
}

func (s *Server) renderSignIn(w http.ResponseWriter, r *http.Request, status int, p *page) {
	view := signInView{}
	if s.google != nil {
		scheme := "http"
		if s.opts.Secure || r.TLS != nil {
			scheme = "https"
		}
		view.GoogleClientID = s.google.ClientID()
		view.GoogleLoginURI = scheme + "://" + r.Host + "/signin/google"
	}

	p.Title = "Sign in"
	p.Data = view
	s.render(w, r, status, "signin", p)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form")
		return
	}

	next := localPath(r.PostForm.Get("next"))
	res := s.actions.SignIn(r.Context(), sessionFrom(r), api.SignInRequest{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	})
	if !res.Ok() {
		if res.Failure.Kind == actions.KindUnavailable {
			s.fail(w, r, res.Failure)
			return
		}
		form := url.Values{"email": {r.PostForm.Get("email")}, "next": {next}}
		s.renderSignIn(w, r, http.StatusUnprocessableEntity, &page{
			Error:  res.Failure.Message,
			Fields: res.Failure.Fields,
			Form:   form,
		})
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// handleGoogleSignIn receives the credential Google Identity Services posts
// back in redirect mode.
func (s *Server) handleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form")
		return
	}

	cookie, err := r.Cookie(googleCSRFCookie)
	formToken := r.PostForm.Get(googleCSRFCookie)
	if err != nil || formToken == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(formToken)) != 1 {
		hlog.FromRequest(r).Warn().Msg("Google sign-in without matching CSRF token")
		s.renderError(w, r, http.StatusBadRequest, "Sign-in request could not be verified")
		return
	}

	profile, err := s.google.Verify(r.Context(), r.PostForm.Get("credential"))
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Google ID token rejected")
		s.renderSignIn(w, r, http.StatusUnauthorized, &page{
			Error: "Google sign-in failed. Please try again.",
			Form:  url.Values{"next": {"/"}},
		})
		return
	}

	lang := profile.Locale
	if lang == "" {
		lang = "en"
	}
	res := s.actions.SignInWithGoogle(r.Context(), sessionFrom(r), api.GoogleSignInRequest{
		Email:       profile.Email,
		Picture:     profile.Picture,
		DisplayName: cmp.Or(profile.Name, profile.Email),
		Lang:        lang,
	})
	if !res.Ok() {
		s.fail(w, r, res.Failure)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleVerifyForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "verify", &page{
		Title: "Verify your email",
		Form:  url.Values{"email": {r.URL.Query().Get("email")}},
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form")
		return
	}

	res := s.actions.VerifyEmail(r.Context(), sessionFrom(r), api.VerifyEmailRequest{
		Email: strings.TrimSpace(r.PostForm.Get("email")),
		Code:  r.PostForm.Get("code"),
	})
	if !res.Ok() {
		if res.Failure.Kind == actions.KindUnavailable {
			s.fail(w, r, res.Failure)
			return
		}
		s.render(w, r, http.StatusUnprocessableEntity, "verify", &page{
			Title:  "Verify your email",
			Error:  res.Failure.Message,
			Fields: res.Failure.Fields,
			Form:   r.PostForm,
		})
		return
	}
	redirectWithNotice(w, r, "/", "verified")
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.actions.SignOut(r.Context(), sessionFrom(r))
	redirectWithNotice(w, r, "/", "signedout")
}
