package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tazhibayda/identity-service/internal/domain"
	"github.com/tazhibayda/identity-service/internal/linking"
	"github.com/tazhibayda/identity-service/internal/security"
	"github.com/tazhibayda/identity-service/internal/signin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Linker *linking.Service
	Flow   *signin.Flow
	Users  domain.UserStore
	Tokens TokenParser
	Keys   *security.KeyManager
	Deps   map[string]Pinger
	Log    *zap.Logger
}

func NewHandler(linker *linking.Service, flow *signin.Flow, users domain.UserStore, tokens TokenParser, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Linker: linker,
		Flow:   flow,
		Users:  users,
		Tokens: tokens,
		Deps:   map[string]Pinger{},
		Log:    log,
	}
}

type checkReq struct {
	Email             string `json:"email" form:"email"`
	Provider          string `json:"provider" form:"provider"`
	ProviderAccountID string `json:"providerAccountId" form:"providerAccountId"`
}

// Check godoc
// @Summary Pre-flight account linking
// @Tags linking
// @Accept json
// @Produce json
// @Param payload body checkReq true "email, provider, providerAccountId"
// @Success 200 {object} linking.CheckReport
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/auth/check [post]
func (h *Handler) Check(c *gin.Context) {
	var in checkReq
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&in)
	} else {
		err = c.ShouldBindJSON(&in)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rep, err := h.Linker.Check(c.Request.Context(), linking.CheckQuery{
		Email:             domain.NormalizeEmail(in.Email),
		Provider:          in.Provider,
		ProviderAccountID: in.ProviderAccountID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

type linkReq struct {
	Email             string `json:"email"`
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"providerAccountId"`
	RefreshToken      string `json:"refreshToken"`
	ExpiresAt         *int64 `json:"expiresAt"` // unix seconds
}

type linkResp struct {
	Message string `json:"message"`
	Linked  bool   `json:"linked"`
	Outcome string `json:"outcome"`
	UserID  string `json:"userId"`
}

// Link godoc
// @Summary Link a provider account to the user owning the e-mail
// @Tags linking
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body linkReq true "email, provider, providerAccountId"
// @Success 200 {object} linkResp
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/auth/link [post]
func (h *Handler) Link(c *gin.Context) {
	var in linkReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	a := domain.Assertion{
		Email:             domain.NormalizeEmail(in.Email),
		Provider:          in.Provider,
		ProviderAccountID: in.ProviderAccountID,
		RefreshToken:      in.RefreshToken,
	}
	if in.ExpiresAt != nil {
		t := time.Unix(*in.ExpiresAt, 0)
		a.ExpiresAt = &t
	}

	res, err := h.Linker.Reconcile(c.Request.Context(), a)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	msg := "Account successfully linked"
	if res.Outcome == linking.AlreadyLinked {
		msg = "Account already linked"
	}
	c.JSON(http.StatusOK, linkResp{Message: msg, Linked: true, Outcome: res.Outcome.String(), UserID: res.UserID.Hex()})
}

type accountView struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// Accounts godoc
// @Summary Linked accounts of the caller
// @Tags linking
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /api/auth/accounts [get]
func (h *Handler) Accounts(c *gin.Context) {
	uid, ok := h.callerID(c)
	if !ok {
		return
	}
	creds, err := h.Linker.Accounts(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]accountView, 0, len(creds))
	for _, cr := range creds {
		out = append(out, accountView{ID: cr.ID.Hex(), Provider: cr.Provider, Type: cr.Type, CreatedAt: cr.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out, "linkedProviders": linking.LinkedProvidersOf(creds)})
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} domain.User
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	uid, ok := h.callerID(c)
	if !ok {
		return
	}
	u, err := h.Users.FindUserByID(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	checks := gin.H{}
	status, code := "healthy", http.StatusOK
	for name, p := range h.Deps {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(code, gin.H{"status": status, "timestamp": time.Now().UTC(), "checks": checks})
}

func (h *Handler) JWKS(c *gin.Context) {
	if h.Keys == nil {
		c.JSON(http.StatusOK, security.JWKSet{Keys: []security.JWK{}})
		return
	}
	c.JSON(http.StatusOK, h.Keys.JWKS())
}

func (h *Handler) callerID(c *gin.Context) (primitive.ObjectID, bool) {
	uid, err := primitive.ObjectIDFromHex(c.GetString(uidKey))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return primitive.NilObjectID, false
	}
	return uid, true
}

// fail maps the error taxonomy onto status codes. Storage details never
// reach the client.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *linking.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "missing": verr.Missing})
	case errors.Is(err, linking.ErrValidation),
		errors.Is(err, signin.ErrInvalidEmail),
		errors.Is(err, signin.ErrUnknownProvider):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, linking.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No existing user found with this email"})
	case errors.Is(err, linking.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "This account is already linked to another user"})
	case errors.Is(err, signin.ErrBlocked):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, signin.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, signin.ErrEmailDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.Log.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
