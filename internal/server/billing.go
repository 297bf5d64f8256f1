package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/taskforge/internal/billing/domain"
)

type creditPackWebhook struct {
	EventID string `json:"event_id"`
	OwnerID string `json:"owner_id"`
	Credits int    `json:"credits"`
}

func (s *Server) HandleCreditPackWebhook(c *gin.Context) {
	var req creditPackWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	owner, err := snowflake.ParseString(req.OwnerID)
	if err != nil {
		AbortWithError(c, newValidationError("owner_id", "invalid_owner_id", "invalid owner identifier"))
		return
	}

	event := billingdomain.CreditPackEvent{EventID: req.EventID, Credits: req.Credits}
	if err := s.billingsvc.ApplyCreditPack(c.Request.Context(), owner, event); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) DowngradeToFree(c *gin.Context) {
	granted, err := s.billingsvc.DowngradeToFree(c.Request.Context(), ownerID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bonus_granted": granted})
}
