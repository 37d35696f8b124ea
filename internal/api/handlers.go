package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yairfalse/autotag/internal/auth"
	"github.com/yairfalse/autotag/pkg/resource"
)

type accountURI struct {
	AccountID string `uri:"accountId" binding:"required,numeric,len=12"`
}

func (s *Server) bindAccount(c *gin.Context) (principal, accountID string, ok bool) {
	principal, ok = auth.PrincipalFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrNoPrincipal.Error()})
		return "", "", false
	}

	var uri accountURI
	if err := c.ShouldBindUri(&uri); err != nil {
		s.fail(c, badRequest("invalid account id"))
		return "", "", false
	}
	return principal, uri.AccountID, true
}

func (s *Server) handleDiscover(c *gin.Context) {
	principal, accountID, ok := s.bindAccount(c)
	if !ok {
		return
	}

	inv, err := s.discoverer.Discover(c.Request.Context(), principal, accountID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) handleTag(c *gin.Context) {
	principal, accountID, ok := s.bindAccount(c)
	if !ok {
		return
	}

	var requests resource.TagRequests
	if err := c.ShouldBindJSON(&requests); err != nil {
		s.fail(c, badRequest("invalid request body: "+err.Error()))
		return
	}
	if err := s.validateRequests(requests); err != nil {
		s.fail(c, err)
		return
	}

	result, err := s.tagger.Tag(c.Request.Context(), principal, accountID, requests)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) validateRequests(requests resource.TagRequests) error {
	for category, reqs := range requests {
		if err := s.validate.Var(string(category), "required,category"); err != nil {
			return badRequest("unknown category " + string(category))
		}
		for _, r := range reqs {
			if err := s.validate.Var(r.ID, "required"); err != nil {
				return badRequest("resource in " + string(category) + " has no id")
			}
		}
	}
	return nil
}
