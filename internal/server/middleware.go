package server

import (
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	contextOwnerIDKey  = "owner_id"
	contextPlanHintKey = "plan_hint"
)

// AuthRequired validates the bearer token and stashes the caller identity.
// The optional plan_id claim is a hint for quota resolution, not a grant:
// it is re-checked against the subscription on use.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrUnauthorized
			}
			return []byte(s.cfg.AuthJWTSecret), nil
		})
		if err != nil || !token.Valid {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		ownerID, err := snowflake.ParseString(sub)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(contextOwnerIDKey, ownerID)

		if planID, ok := planIDClaim(claims); ok {
			c.Set(contextPlanHintKey, planID)
		}

		c.Next()
	}
}

// planIDClaim extracts the optional plan_id claim. Issuers are not
// consistent about the JSON type: some mint it as a string, others as a
// number, which encoding/json hands back as float64. A malformed claim
// drops the hint rather than failing the request.
func planIDClaim(claims jwt.MapClaims) (snowflake.ID, bool) {
	switch v := claims["plan_id"].(type) {
	case string:
		if v == "" {
			return 0, false
		}
		id, err := snowflake.ParseString(v)
		if err != nil {
			return 0, false
		}
		return id, true
	case float64:
		if v <= 0 {
			return 0, false
		}
		return snowflake.ID(int64(v)), true
	case json.Number:
		n, err := v.Int64()
		if err != nil || n <= 0 {
			return 0, false
		}
		return snowflake.ID(n), true
	}
	return 0, false
}

func ownerID(c *gin.Context) snowflake.ID {
	v, _ := c.Get(contextOwnerIDKey)
	id, _ := v.(snowflake.ID)
	return id
}

func planHint(c *gin.Context) *snowflake.ID {
	v, ok := c.Get(contextPlanHintKey)
	if !ok {
		return nil
	}
	id, ok := v.(snowflake.ID)
	if !ok {
		return nil
	}
	return &id
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.Param(name))
	if err != nil {
		return 0, newValidationError(name, "invalid_id", "invalid identifier")
	}
	return id, nil
}
