package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tazhibayda/identity-service/internal/oauth"
)

// Providers lists the sign-in methods that are configured.
func (h *Handler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.Flow.Providers(), "email": h.Flow.EmailEnabled()})
}

// SignIn godoc
// @Summary Start an OAuth sign-in
// @Tags auth
// @Param provider path string true "google or github"
// @Success 302
// @Failure 400 {object} map[string]string
// @Router /api/auth/signin/{provider} [get]
func (h *Handler) SignIn(c *gin.Context) {
	u, err := h.Flow.Begin(c.Param("provider"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

// Callback godoc
// @Summary Finish an OAuth sign-in
// @Tags auth
// @Produce json
// @Param provider path string true "google or github"
// @Param code query string true "authorization code"
// @Param state query string true "state from /signin"
// @Success 200 {object} signin.Session
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/auth/callback/{provider} [get]
func (h *Handler) Callback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": e})
		return
	}
	sess, err := h.Flow.Complete(c.Request.Context(), c.Param("provider"), c.Query("code"), c.Query("state"))
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrBadState):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, oauth.ErrNoEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.fail(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, sess)
}

type emailReq struct {
	Email string `json:"email"`
}

// EmailSignIn godoc
// @Summary Send a magic sign-in link
// @Tags auth
// @Accept json
// @Param payload body emailReq true "email"
// @Success 202
// @Failure 400 {object} map[string]string
// @Router /api/auth/signin/email [post]
func (h *Handler) EmailSignIn(c *gin.Context) {
	var in emailReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.Flow.StartEmail(c.Request.Context(), in.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Check your email for a sign-in link"})
}

// EmailCallback godoc
// @Summary Consume a magic sign-in link
// @Tags auth
// @Produce json
// @Param token query string true "token from the e-mail"
// @Success 200 {object} signin.Session
// @Failure 401 {object} map[string]string
// @Router /api/auth/callback/email [get]
func (h *Handler) EmailCallback(c *gin.Context) {
	sess, err := h.Flow.CompleteEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}
