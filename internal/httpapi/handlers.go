package httpapi

import (
	"errors"
	"net/http"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/auth"
	"dialer-platform/internal/callerid"
	"dialer-platform/internal/dialer"
	"dialer-platform/internal/leads"
	"dialer-platform/internal/rbac"
	"dialer-platform/internal/reporting"
	"dialer-platform/internal/scoring"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Scoring   *scoring.Service
	CallerID  *callerid.Service
	Dialer    *dialer.Planner
	Reporting *reporting.Service
	Audit     *audit.Service
}

// abortWithServiceError maps engine sentinels onto HTTP statuses.
func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scoring.ErrNotFound), errors.Is(err, callerid.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, callerid.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, callerid.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
	case errors.Is(err, scoring.ErrInvalidArgument), errors.Is(err, callerid.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h Handlers) organizationID(c *gin.Context) (string, bool) {
	orgID, err := auth.OrganizationID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization_id required"})
		return "", false
	}
	return orgID, true
}

// --- Auth ---

type loginRequest struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Role           string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.OrganizationID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, organization_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.OrganizationID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Scoring ---

func (h Handlers) ScoreLead(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var lead leads.LeadData
	if err := c.ShouldBindJSON(&lead); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	lead.OrganizationID = orgID

	res, err := h.Scoring.ScoreLead(c.Request.Context(), lead)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type scoreBatchRequest struct {
	Leads []leads.LeadData `json:"leads"`
}

func (h Handlers) ScoreLeads(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req scoreBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Scoring.ScoreLeads(c.Request.Context(), orgID, req.Leads)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res})
}

func (h Handlers) GetLeadScore(c *gin.Context) {
	score, err := h.Scoring.GetScore(c.Request.Context(), c.Param("lead_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, score)
}

func (h Handlers) GetPriorityQueue(c *gin.Context) {
	var req scoring.PriorityQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	queue, err := h.Scoring.GetPriorityQueue(c.Request.Context(), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": queue})
}

func (h Handlers) GetBestTimeToCall(c *gin.Context) {
	res, err := h.Scoring.GetBestTimeToCall(c.Request.Context(), c.Param("lead_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) CreateScoringModel(c *gin.Context) {
	var m scoring.ScoringModel
	if err := c.ShouldBindJSON(&m); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	created, err := h.Scoring.CreateModel(c.Request.Context(), m)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h Handlers) ActivateScoringModel(c *gin.Context) {
	m, err := h.Scoring.ActivateModel(c.Request.Context(), c.Param("model_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if h.Audit != nil {
		orgID, _ := auth.OrganizationID(c.Request.Context())
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogModelActivated(c.Request.Context(), orgID, userID, role, c.ClientIP(), m.ID, "")
	}
	c.JSON(http.StatusOK, m)
}

func (h Handlers) GetScoringModel(c *gin.Context) {
	m, err := h.Scoring.GetModel(c.Request.Context(), c.Param("model_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// --- Caller ID ---

func (h Handlers) CreatePool(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req callerid.CreatePoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.OrganizationID = orgID

	pool, err := h.CallerID.CreatePool(c.Request.Context(), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pool)
}

func (h Handlers) GetPool(c *gin.Context) {
	pool, err := h.CallerID.GetPool(c.Request.Context(), c.Param("pool_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pool)
}

func (h Handlers) GetPoolStats(c *gin.Context) {
	stats, err := h.CallerID.GetPoolStats(c.Request.Context(), c.Param("pool_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type importNumbersRequest struct {
	PhoneNumbers []string `json:"phone_numbers"`
}

func (h Handlers) ImportNumbers(c *gin.Context) {
	var req importNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.CallerID.ImportNumbers(c.Request.Context(), c.Param("pool_id"), req.PhoneNumbers)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) SelectCallerID(c *gin.Context) {
	var req callerid.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.PoolID = c.Param("pool_id")

	n, err := h.CallerID.SelectCallerIDForLead(c.Request.Context(), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if n == nil {
		// Not an error: the pool has no usable number right now.
		c.JSON(http.StatusOK, gin.H{"number": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"number": n})
}

type flagNumberRequest struct {
	Source string `json:"source"`
	Notes  string `json:"notes,omitempty"`
}

func (h Handlers) FlagNumber(c *gin.Context) {
	var req flagNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	n, err := h.CallerID.FlagNumber(c.Request.Context(), c.Param("number_id"), req.Source, req.Notes)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if h.Audit != nil {
		orgID, _ := auth.OrganizationID(c.Request.Context())
		_ = h.Audit.LogNumberFlagged(c.Request.Context(), orgID, n.PoolID, n.ID, req.Source, "")
	}
	c.JSON(http.StatusOK, n)
}

func (h Handlers) UnblockNumber(c *gin.Context) {
	var req flagNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	n, err := h.CallerID.UnblockNumber(c.Request.Context(), c.Param("number_id"), req.Source, req.Notes)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if h.Audit != nil {
		orgID, _ := auth.OrganizationID(c.Request.Context())
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		_ = h.Audit.LogNumberUnblocked(c.Request.Context(), orgID, userID, role, c.ClientIP(), n.PoolID, n.ID, "")
	}
	c.JSON(http.StatusOK, n)
}

func (h Handlers) CooldownNumber(c *gin.Context) {
	n, err := h.CallerID.CooldownNumber(c.Request.Context(), c.Param("number_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h Handlers) GetNumberStats(c *gin.Context) {
	stats, err := h.CallerID.GetNumberStats(c.Request.Context(), c.Param("number_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h Handlers) ListReputationEvents(c *gin.Context) {
	events, err := h.CallerID.ListReputationEvents(c.Request.Context(), c.Param("number_id"), 0)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type recordCallStartRequest struct {
	NumberID          string `json:"number_id"`
	DestinationNumber string `json:"destination_number"`
	CampaignID        string `json:"campaign_id,omitempty"`
}

func (h Handlers) RecordCallStart(c *gin.Context) {
	var req recordCallStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	log, err := h.CallerID.RecordCallStart(c.Request.Context(), req.NumberID, req.DestinationNumber, req.CampaignID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, log)
}

type recordCallResultRequest struct {
	Result          callerid.CallResult `json:"result"`
	DurationSeconds int                 `json:"duration_seconds"`
}

func (h Handlers) RecordCallResult(c *gin.Context) {
	var req recordCallResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	log, err := h.CallerID.RecordCallResult(c.Request.Context(), c.Param("usage_log_id"), req.Result, req.DurationSeconds)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

// ResetDailyCounters is admin-only; the scheduler hits it once per day.
func (h Handlers) ResetDailyCounters(c *gin.Context) {
	reset, err := h.CallerID.ResetDailyCounters(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if h.Audit != nil {
		orgID, _ := auth.OrganizationID(c.Request.Context())
		userID, _ := auth.UserID(c.Request.Context())
		role, _ := auth.Role(c.Request.Context())
		_ = h.Audit.Append(c.Request.Context(), audit.Event{
			OrganizationID: orgID,
			Type:           audit.EventTypeDailyReset,
			ActorUserID:    userID,
			ActorRole:      role,
			IPAddress:      c.ClientIP(),
			Message:        "daily counters reset",
		})
	}
	c.JSON(http.StatusOK, gin.H{"reset": reset})
}

func (h Handlers) ProcessCooldowns(c *gin.Context) {
	swept, err := h.CallerID.ProcessCooldowns(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactivated": swept})
}

// --- Dialer ---

func (h Handlers) BuildCallPlan(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req dialer.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.OrganizationID = orgID

	plan, err := h.Dialer.BuildCallPlan(c.Request.Context(), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// --- Reporting ---

func (h Handlers) ScoringSummary(c *gin.Context) {
	orgID, ok := h.organizationID(c)
	if !ok {
		return
	}
	var req reporting.ScoringSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.OrganizationID = orgID

	out, err := h.Reporting.ScoringSummary(c.Request.Context(), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) PoolHealth(c *gin.Context) {
	var req reporting.PoolHealthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.PoolID = c.Param("pool_id")

	out, err := h.Reporting.PoolHealth(c.Request.Context(), req)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Convenience middleware bundles.

func RequireOrganizationAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireOrganization(), rbac.RequireAnyRole(roles...)}
}
