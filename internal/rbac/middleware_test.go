package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"outbound-dialer/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveAs(t *testing.T, accountID, role string, allowed ...string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", accountID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireAccount(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serveAs(t, "a", RoleSuperAdmin, RoleOwner); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AnalystCannotControl(t *testing.T) {
	if code := serveAs(t, "a", RoleAnalyst, CampaignControl...); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveAs(t, "a", RoleAnalyst, CampaignRead...); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAccount_Required(t *testing.T) {
	if code := serveAs(t, "", RoleOwner, RoleOwner); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestCanActFor(t *testing.T) {
	if !CanActFor(RoleOwner, "a", "a") {
		t.Fatalf("owner must act for own account")
	}
	if CanActFor(RoleOperator, "a", "b") {
		t.Fatalf("operator must not cross accounts")
	}
	if !CanActFor(RoleSuperAdmin, "a", "b") {
		t.Fatalf("super_admin crosses accounts")
	}
	if CanActFor(RoleOwner, "", "") {
		t.Fatalf("empty account never matches")
	}
}
