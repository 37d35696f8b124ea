package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yairfalse/autotag/internal/account"
	"github.com/yairfalse/autotag/internal/credentials"
	"github.com/yairfalse/autotag/internal/discovery"
	awsplugin "github.com/yairfalse/autotag/internal/plugin/aws"
)

// validationError marks a malformed request.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func badRequest(msg string) error { return &validationError{msg: msg} }

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	var (
		ve  *validationError
		de  *credentials.DelegationError
		rde *awsplugin.RegionDiscoveryError
		ce  *discovery.CollectorError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &de):
		return http.StatusForbidden
	case errors.As(err, &rde), errors.As(err, &ce):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithContext(c.Request.Context()).Error().
			Err(err).
			Str("path", c.FullPath()).
			Int("status", status).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
