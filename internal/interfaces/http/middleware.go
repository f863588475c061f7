package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Approver roles carried on the X-User-Roles header
const (
	RoleL1Approver = "l1_approver"
	RoleL2Approver = "l2_approver"
	RoleL3Approver = "l3_approver"
)

// roleForLevel maps an approval level to the role that may act at it
func roleForLevel(level int) string {
	switch level {
	case 1:
		return RoleL1Approver
	case 2:
		return RoleL2Approver
	default:
		return RoleL3Approver
	}
}

// callerID returns the caller identity from the X-User-ID header
func callerID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-User-ID")); id != "" {
		return id
	}
	return "anonymous"
}

// callerRoles parses the comma-separated X-User-Roles header
func callerRoles(c *gin.Context) []string {
	var roles []string
	for _, r := range strings.Split(c.GetHeader("X-User-Roles"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// requireRole rejects requests whose caller does not carry the given role
func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, r := range callerRoles(c) {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "access denied: " + role + " role required",
		})
	}
}
