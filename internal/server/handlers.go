package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"atelier-ai/internal/billing"
	"atelier-ai/internal/catalog"
	"atelier-ai/internal/generation"
	"atelier-ai/internal/history"
)

type generateRequest struct {
	GarmentRefs []string          `json:"garment_refs"`
	Facets      map[string]string `json:"facets"`
	Service     string            `json:"service"`
}

type generateResponse struct {
	Status      string `json:"status"`
	ImageRef    string `json:"image_ref,omitempty"`
	Description string `json:"description,omitempty"`
	RecordID    string `json:"record_id,omitempty"`
	Message     string `json:"message"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	facets := make(map[catalog.Category]string, len(body.Facets))
	for k, v := range body.Facets {
		facets[catalog.Category(strings.TrimSpace(k))] = v
	}

	identity := s.identity(c)
	outcome, err := s.service.Generate(c.Request.Context(), generation.Request{
		RequesterID: identity.Requester(),
		GarmentRefs: body.GarmentRefs,
		Facets:      facets,
		Service:     body.Service,
		RequestedAt: time.Now(),
	})
	if err != nil {
		s.writeGenerateError(c, err)
		return
	}

	resp := generateResponse{
		Status:      string(outcome.Result.Status),
		ImageRef:    outcome.Result.ImageRef,
		Description: outcome.Result.Description,
	}
	if outcome.RecordID != uuid.Nil {
		resp.RecordID = outcome.RecordID.String()
	}

	switch {
	case outcome.Result.Status == generation.StatusSucceeded:
		resp.Message = "generation complete"
		c.JSON(http.StatusOK, resp)
	case outcome.Result.ErrorKind == generation.ErrorKindTimeout:
		resp.Message = "generation timed out; please try again"
		c.JSON(http.StatusGatewayTimeout, resp)
	default:
		// Upstream diagnostics stay in the audit record; callers get a
		// generic, non-verbatim message.
		resp.Message = "generation failed; please try again later"
		c.JSON(http.StatusBadGateway, resp)
	}
}

func (s *Server) writeGenerateError(c *gin.Context, err error) {
	var validationErr *generation.ValidationError
	var accessErr *billing.AccessDeniedError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &accessErr):
		c.JSON(http.StatusForbidden, gin.H{
			"error":          accessErr.Error(),
			"user_tier":      accessErr.Tier.String(),
			"required_tiers": tierNames(accessErr.Required),
		})
	case errors.Is(err, billing.ErrInsufficientCredit):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credit"})
	case errors.Is(err, billing.ErrUnknownService):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown service"})
	case errors.Is(err, billing.ErrAnonymousDenied):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	default:
		// Fail closed: internal gate/ledger errors deny the request.
		s.logger.Error("generate failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type recordProjection struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	ImageRef      string         `json:"image_ref,omitempty"`
	Description   string         `json:"description,omitempty"`
	ErrorKind     string         `json:"error_kind,omitempty"`
	Prompt        string         `json:"prompt"`
	GarmentRefs   []string       `json:"garment_refs"`
	FacetSnapshot map[string]any `json:"facet_snapshot"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (s *Server) handleListGenerations(c *gin.Context) {
	identity := s.identity(c)
	if identity.Anonymous {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	order := history.ParseOrder(c.Query("order"))

	records, err := s.history.List(c.Request.Context(), identity.UserID, limit, order)
	if err != nil {
		s.logger.Error("list generations failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]recordProjection, 0, len(records))
	for _, rec := range records {
		out = append(out, projectRecord(rec))
	}
	c.JSON(http.StatusOK, gin.H{"generations": out})
}

func projectRecord(rec history.Record) recordProjection {
	refs, _ := rec.GetGarmentRefs()
	snapshot, _ := rec.GetFacetSnapshot()

	snap := make(map[string]any, len(snapshot))
	for cat, facet := range snapshot {
		snap[string(cat)] = facet
	}

	return recordProjection{
		ID:            rec.ID.String(),
		Status:        rec.Status,
		ImageRef:      rec.ImageRef,
		Description:   rec.Description,
		ErrorKind:     rec.ErrorKind,
		Prompt:        rec.Prompt,
		GarmentRefs:   refs,
		FacetSnapshot: snap,
		CreatedAt:     rec.CreatedAt,
	}
}

func (s *Server) handleDeleteGeneration(c *gin.Context) {
	identity := s.identity(c)
	if identity.Anonymous {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	recordID, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record id"})
		return
	}

	err = s.history.Remove(c.Request.Context(), identity.UserID, recordID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	case errors.Is(err, history.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, history.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "record belongs to another requester"})
	default:
		s.logger.Error("delete generation failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) handleCheckServiceAccess(c *gin.Context) {
	serviceKey := strings.ToLower(strings.TrimSpace(c.Param("serviceKey")))
	identity := s.identity(c)

	tier, err := s.gate.ResolveTier(c.Request.Context(), identity.Requester())
	if err != nil {
		if errors.Is(err, billing.ErrAnonymousDenied) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		// Fail closed on internal errors: no access claim without a
		// resolved tier.
		s.logger.Error("tier resolution failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	err = s.gate.CheckAccess(tier, serviceKey)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"hasAccess":     true,
			"userTier":      tier.String(),
			"requiredTiers": []string{},
		})
	case errors.Is(err, billing.ErrUnknownService):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown service"})
	default:
		var accessErr *billing.AccessDeniedError
		if errors.As(err, &accessErr) {
			c.JSON(http.StatusOK, gin.H{
				"hasAccess":     false,
				"userTier":      tier.String(),
				"requiredTiers": tierNames(accessErr.Required),
			})
			return
		}
		s.logger.Error("access check failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func tierNames(tiers []billing.Tier) []string {
	out := make([]string, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, t.String())
	}
	return out
}
