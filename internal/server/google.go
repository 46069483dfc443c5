package server

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"mainq/internal/config"
	"mainq/internal/middleware"
	"mainq/internal/models"
	"mainq/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const oauthStateCookie = "mainq_oauth_state"

// googleUserInfoURL is the OAuth2 v2 userinfo endpoint.
var googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

func googleOAuthConfig(cfg *config.Config) *oauth2.Config {
	if !cfg.GoogleEnabled() {
		return nil
	}
	return &oauth2.Config{
		RedirectURL:  cfg.GoogleCallbackURL,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: endpoints.Google,
	}
}

// GoogleLogin handles GET /api/auth/google/login
func (s *Server) GoogleLogin(c *fiber.Ctx) error {
	if s.googleOAuth == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Google sign-in is not configured",
		})
	}

	state := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(s.googleOAuth.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleCallback handles GET /api/auth/google/callback. On success the
// browser is sent back to the front end with the token in the URL fragment.
func (s *Server) GoogleCallback(c *fiber.Ctx) error {
	if s.googleOAuth == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Google sign-in is not configured",
		})
	}

	state := c.Query("state")
	if state == "" || state != c.Cookies(oauthStateCookie) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid sign-in state"))
	}
	c.ClearCookie(oauthStateCookie)

	ctx := c.UserContext()
	token, err := s.googleOAuth.Exchange(ctx, c.Query("code"))
	if err != nil {
		middleware.Logger.WarnContext(ctx, "google oauth exchange failed", "error", err)
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Failed to exchange authorization code"))
	}

	info, err := s.fetchGoogleUser(c, token)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to get google user info", "error", err)
		return models.RespondWithError(c, fiber.StatusBadGateway,
			models.NewInternalError(err))
	}

	user, err := s.accountService.GoogleSignIn(ctx, service.GoogleIdentity{
		Email:         info.Email,
		Name:          info.Name,
		Picture:       info.Picture,
		EmailVerified: info.VerifiedEmail,
	})
	if err != nil {
		return respondError(c, err)
	}

	jwtToken, err := s.generateToken(user)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	middleware.Logger.InfoContext(ctx, "google sign-in", "user_id", user.ID)
	base := strings.TrimRight(s.config.PublicBaseURL, "/")
	return c.Redirect(base+"/masuk#token="+url.QueryEscape(jwtToken), fiber.StatusSeeOther)
}

func (s *Server) fetchGoogleUser(c *fiber.Ctx, token *oauth2.Token) (*googleUserInfo, error) {
	client := s.googleOAuth.Client(c.UserContext(), token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("userinfo has no email")
	}
	return &info, nil
}
