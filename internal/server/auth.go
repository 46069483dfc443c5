package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mainq/internal/middleware"
	"mainq/internal/models"
	"mainq/internal/service"
	"mainq/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "mainq-api"
	tokenAudience = "mainq-client"
	tokenTTL      = 7 * 24 * time.Hour

	wsTicketPrefix = "ws_ticket:"
	wsTicketTTL    = 30 * time.Second
	blacklistKey   = "blacklist:"

	localSession = "session"
	localClaims  = "claims"
)

var (
	errNoToken      = errors.New("no token")
	errTokenRevoked = errors.New("token has been revoked")
)

// generateToken signs a session token for user. The admin claim is advisory;
// admin routes re-read the flag from the store.
func (s *Server) generateToken(user *models.User) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":            user.ID,
		"email":          user.Email,
		"name":           user.DisplayName,
		"email_verified": user.EmailVerified,
		"admin":          user.IsAdmin,
		"iss":            tokenIssuer,
		"aud":            tokenAudience,
		"exp":            now.Add(tokenTTL).Unix(),
		"iat":            now.Unix(),
		"nbf":            now.Unix(),
		"jti":            s.generateJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func (s *Server) generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}

// parseToken validates signature, issuer, audience, subject and revocation.
func (s *Server) parseToken(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, errors.New("invalid subject claim")
	}

	if jti, _ := claims["jti"].(string); jti != "" && s.redis != nil {
		revoked, err := s.redis.Exists(ctx, blacklistKey+jti).Result()
		if err == nil && revoked > 0 {
			return nil, errTokenRevoked
		}
	}
	return claims, nil
}

func sessionFromClaims(claims jwt.MapClaims) *session.Session {
	sess := &session.Session{}
	sess.UserID, _ = claims["sub"].(string)
	sess.Email, _ = claims["email"].(string)
	sess.DisplayName, _ = claims["name"].(string)
	sess.EmailVerified, _ = claims["email_verified"].(bool)
	sess.IsAdmin, _ = claims["admin"].(bool)
	return sess
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// consumeWSTicket redeems a single-use websocket ticket for a session.
func (s *Server) consumeWSTicket(ctx context.Context, ticket string) (*session.Session, error) {
	if s.redis == nil {
		return nil, errors.New("tickets unavailable")
	}
	userID, err := s.redis.GetDel(ctx, wsTicketPrefix+ticket).Result()
	if err != nil {
		return nil, err
	}
	return s.accountService.Session(ctx, userID)
}

// authenticate resolves the caller from a websocket ticket or a bearer token.
// It returns errNoToken when the request carries neither.
func (s *Server) authenticate(c *fiber.Ctx) (*session.Session, jwt.MapClaims, error) {
	ctx := c.UserContext()

	if ticket := c.Query("ticket"); ticket != "" && strings.HasPrefix(c.Path(), "/api/ws") {
		sess, err := s.consumeWSTicket(ctx, ticket)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid or expired websocket ticket: %w", err)
		}
		return sess, nil, nil
	}

	tokenString := bearerToken(c)
	if tokenString == "" {
		return nil, nil, errNoToken
	}
	claims, err := s.parseToken(ctx, tokenString)
	if err != nil {
		return nil, nil, err
	}
	return sessionFromClaims(claims), claims, nil
}

func setSession(c *fiber.Ctx, sess *session.Session, claims jwt.MapClaims) {
	c.Locals("userID", sess.UserID)
	c.Locals(localSession, sess)
	if claims != nil {
		c.Locals(localClaims, claims)
	}
	ctx := session.With(c.UserContext(), sess)
	ctx = context.WithValue(ctx, middleware.UserIDKey, sess.UserID)
	c.SetUserContext(ctx)
}

// currentSession returns the caller's session, or nil for anonymous requests.
func currentSession(c *fiber.Ctx) *session.Session {
	sess, _ := c.Locals(localSession).(*session.Session)
	return sess
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, claims, err := s.authenticate(c)
		switch {
		case errors.Is(err, errNoToken):
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		case errors.Is(err, errTokenRevoked):
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		case err != nil:
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		setSession(c, sess, claims)
		return c.Next()
	}
}

// optionalAuth attaches a session when the request carries valid credentials
// and otherwise continues anonymously.
func (s *Server) optionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, claims, err := s.authenticate(c)
		if err == nil {
			setSession(c, sess, claims)
		}
		return c.Next()
	}
}

// AdminRequired re-reads the admin flag from the store on every request.
// Anonymous and non-admin callers get the same 403.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := currentSession(c)
		if !sess.Authenticated() {
			return models.RespondWithError(c, fiber.StatusForbidden, models.NewForbiddenError())
		}

		admin, err := s.isAdminByUserID(c.UserContext(), sess.UserID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden, models.NewForbiddenError())
		}

		sess.IsAdmin = true
		return c.Next()
	}
}

func (s *Server) isAdminByUserID(ctx context.Context, userID string) (bool, error) {
	return s.userRepo.IsAdmin(ctx, userID)
}

// authResponse issues a token for user and renders it with the session.
func (s *Server) authResponse(c *fiber.Ctx, status int, user *models.User) error {
	token, err := s.generateToken(user)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	sess, err := s.accountService.Session(c.UserContext(), user.ID)
	if err != nil {
		sess = service.SessionFor(user)
	}
	return c.Status(status).JSON(fiber.Map{
		"token":   token,
		"session": sess,
	})
}

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.accountService.Signup(c.UserContext(), service.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return respondError(c, err)
	}
	return s.authResponse(c, fiber.StatusCreated, user)
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.accountService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return s.authResponse(c, fiber.StatusOK, user)
}

// revoke blacklists the token's jti until the token would have expired anyway.
func (s *Server) revoke(ctx context.Context, claims jwt.MapClaims) error {
	jti, _ := claims["jti"].(string)
	if jti == "" || s.redis == nil {
		return nil
	}
	ttl := tokenTTL
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = time.Until(exp.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, blacklistKey+jti, "1", ttl).Err()
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, _ := c.Locals(localClaims).(jwt.MapClaims)
	if claims != nil {
		if err := s.revoke(c.UserContext(), claims); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Refresh handles POST /api/auth/refresh. The session is rebuilt from the
// account record and the old token is revoked.
func (s *Server) Refresh(c *fiber.Ctx) error {
	sess := currentSession(c)
	user, err := s.userRepo.GetByID(c.UserContext(), sess.UserID)
	if err != nil {
		return respondError(c, err)
	}
	if claims, _ := c.Locals(localClaims).(jwt.MapClaims); claims != nil {
		if err := s.revoke(c.UserContext(), claims); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "failed to revoke refreshed token", "error", err)
		}
	}
	return s.authResponse(c, fiber.StatusOK, user)
}

// GetSession handles GET /api/auth/session. It always reflects the stored
// account, so a changed admin flag shows up without signing in again.
func (s *Server) GetSession(c *fiber.Ctx) error {
	tokenString := bearerToken(c)
	if tokenString == "" {
		return c.JSON(fiber.Map{"authenticated": false})
	}
	claims, err := s.parseToken(c.UserContext(), tokenString)
	if err != nil {
		return c.JSON(fiber.Map{"authenticated": false})
	}
	sub, _ := claims["sub"].(string)
	sess, err := s.accountService.Session(c.UserContext(), sub)
	if err != nil {
		if models.StatusFor(err) == fiber.StatusNotFound {
			return c.JSON(fiber.Map{"authenticated": false})
		}
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"authenticated": true,
		"session":       sess,
	})
}

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set headers on
// a websocket upgrade, so they trade their bearer token for a one-shot ticket.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewValidationError("Live updates are unavailable"))
	}
	sess := currentSession(c)
	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), wsTicketPrefix+ticket, sess.UserID, wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// RequestEmailVerification handles POST /api/auth/verify-email. The link is
// returned to the caller; delivery is left to the front end's mail relay.
func (s *Server) RequestEmailVerification(c *fiber.Ctx) error {
	sess := currentSession(c)
	token, err := s.accountService.IssueVerification(c.UserContext(), sess.UserID)
	if err != nil {
		return respondError(c, err)
	}
	link := strings.TrimRight(s.config.PublicBaseURL, "/") + "/api/auth/verify-email/confirm?token=" + token
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"verification_link": link,
		"expires_in":        int(service.VerificationTTL.Seconds()),
	})
}

// ConfirmEmailVerification handles GET /api/auth/verify-email/confirm
func (s *Server) ConfirmEmailVerification(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("token is required"))
	}
	user, err := s.accountService.ConfirmVerification(c.UserContext(), token)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":        "Email verified",
		"email_verified": user.EmailVerified,
	})
}
