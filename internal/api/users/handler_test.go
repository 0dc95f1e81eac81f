package usersapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"poll-app/internal/domain/access"
	"poll-app/internal/domain/billing"
	"poll-app/internal/domain/companies"
	"poll-app/internal/domain/plans"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeCompanies struct {
	byOwner map[string][]companies.Company
	err     error
}

func (f fakeCompanies) ListByOwner(_ context.Context, ownerID string) ([]companies.Company, error) {
	return f.byOwner[ownerID], f.err
}

type fakeSubscriptions map[string]*billing.Subscription

func (f fakeSubscriptions) GetSubscriptionByCompany(_ context.Context, companyID string) (*billing.Subscription, error) {
	if companyID == "broken" {
		return nil, errors.New("db down")
	}
	return f[companyID], nil
}

func serve(t *testing.T, h *Handler, userID string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h.now = func() time.Time { return now }

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
			c.Set("email", "ana@example.com")
			c.Set("name", "Ana")
			c.Set("role", "user")
		}
		c.Next()
	})
	r.GET("/api/me", h.GetCurrentUser)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	return w
}

func quietLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestGetCurrentUser(t *testing.T) {
	owned := []companies.Company{
		{ID: "c-1", Name: "Acme", Slug: "acme"},
		{ID: "c-2", Name: "Globex", Slug: "globex"},
	}
	subs := fakeSubscriptions{
		"c-1": {
			ID:               "sub-1",
			CompanyID:        "c-1",
			PlanID:           "plan_pro_monthly",
			Status:           billing.StatusActive,
			Gateway:          billing.GatewayStripe,
			CurrentPeriodEnd: now.AddDate(0, 1, 0),
			PlanSnapshot: datatypes.NewJSONType(billing.PlanSnapshot{
				Name:   "Pro",
				Limits: plans.Limits{PollsPerMonth: 100, ActivePolls: 20, Profiles: 1, TeamMembers: 1},
			}),
		},
	}
	h := NewHandler(fakeCompanies{byOwner: map[string][]companies.Company{"user-1": owned}}, subs, quietLog())

	w := serve(t, h, "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, UserDTO{ID: "user-1", Email: "ana@example.com", Name: "Ana", Role: "user"}, resp.User)
	require.Len(t, resp.Companies, 2)

	acme := resp.Companies[0]
	require.NotNil(t, acme.Subscription)
	assert.Equal(t, "Pro", acme.Subscription.PlanName)
	assert.Equal(t, "ACTIVE", acme.Subscription.Status)
	assert.Equal(t, access.AccessFull, acme.Access.State)
	assert.Equal(t, []string{access.CapCreatePolls}, acme.Access.Capabilities)
	assert.Equal(t, 100, acme.Access.Limits.PollsPerMonth)

	globex := resp.Companies[1]
	assert.Nil(t, globex.Subscription)
	assert.Equal(t, access.AccessLocked, globex.Access.State)
	assert.Empty(t, globex.Access.Capabilities)
}

func TestGetCurrentUserWithoutCompanies(t *testing.T) {
	h := NewHandler(fakeCompanies{}, fakeSubscriptions{}, quietLog())

	w := serve(t, h, "user-2")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []interface{}{}, body["companies"])
}

func TestGetCurrentUserErrors(t *testing.T) {
	h := NewHandler(fakeCompanies{}, fakeSubscriptions{}, quietLog())
	assert.Equal(t, http.StatusUnauthorized, serve(t, h, "").Code)

	h = NewHandler(fakeCompanies{err: errors.New("db down")}, fakeSubscriptions{}, quietLog())
	assert.Equal(t, http.StatusInternalServerError, serve(t, h, "user-1").Code)

	broken := fakeCompanies{byOwner: map[string][]companies.Company{"user-1": {{ID: "broken"}}}}
	h = NewHandler(broken, fakeSubscriptions{}, quietLog())
	w := serve(t, h, "user-1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to load subscription"}`, w.Body.String())
}
