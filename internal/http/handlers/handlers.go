package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/clinicflow/backend/internal/db"
	"github.com/clinicflow/backend/internal/engine"
	"github.com/clinicflow/backend/internal/models"
	"github.com/clinicflow/backend/internal/store"
	"github.com/clinicflow/backend/internal/ws"
)

type Handler struct {
	Engine    *engine.Engine
	Archive   *db.Archive // nil when running without a database
	Hub       *ws.Hub     // nil when the event feed is disabled
	Validator *validator.Validate
	Logger    zerolog.Logger
}

type checkInRequest struct {
	PatientName string `json:"patient_name" validate:"required"`
	Complaint   string `json:"complaint"`
}

type triageCompleteRequest struct {
	RequiredSpecialty string `json:"required_specialty"`
	Priority          string `json:"priority" validate:"required,oneof=NORMAL PRIORITY EMERGENCY"`
}

type completeRequest struct {
	Summary string `json:"summary"`
}

type availabilityRequest struct {
	Availability string `json:"availability" validate:"required,oneof=active break offline"`
}

type clinicianRequest struct {
	ID                string     `json:"id" validate:"required"`
	Name              string     `json:"name" validate:"required"`
	Specialty         string     `json:"specialty" validate:"required"`
	Availability      string     `json:"availability" validate:"omitempty,oneof=active break offline"`
	AvgServiceTimeSec float64    `json:"avg_service_time_sec" validate:"gte=0"`
	ShiftEndsAt       *time.Time `json:"shift_ends_at"`
}

// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	if h.Archive != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.Archive.Ping(ctx); err != nil {
			writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Check in a patient
// @Description Creates a visit and moves it straight into triage
// @Tags visits
// @Accept json
// @Produce json
// @Success 201 {object} models.Visit
// @Failure 400 {object} map[string]any
// @Router /api/visits [post]
func (h *Handler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if !h.bind(c, &req) {
		return
	}
	visit, err := h.Engine.CheckIn(req.PatientName, req.Complaint)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "CHECKIN_FAILED", "Check-in failed", err.Error())
		return
	}
	c.JSON(http.StatusCreated, visit)
}

// @Summary Complete triage and assign a clinician
// @Description Delivers the triage outcome; the engine picks a clinician in real time
// @Tags visits
// @Accept json
// @Produce json
// @Param id path string true "visit id"
// @Success 200 {object} models.AssignmentDecision
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/visits/{id}/triage-complete [post]
func (h *Handler) TriageComplete(c *gin.Context) {
	var req triageCompleteRequest
	if !h.bind(c, &req) {
		return
	}

	decision, err := h.Engine.CompleteTriage(engine.TriageCompletion{
		VisitID:           c.Param("id"),
		RequiredSpecialty: req.RequiredSpecialty,
		Priority:          models.Priority(req.Priority),
	})
	if err != nil {
		if errors.Is(err, engine.ErrNoAvailableClinician) {
			writeError(c, http.StatusUnprocessableEntity, "NO_AVAILABLE_CLINICIAN", "No active clinician available; visit remains waiting", decision)
			return
		}
		h.writeEngineError(c, err)
		return
	}

	h.recordDecisions(c.Request.Context(), decision)
	if h.Hub != nil {
		h.Hub.PublishDecision("assignment", decision)
	}
	c.JSON(http.StatusOK, decision)
}

// @Summary Call in a waiting patient
// @Tags visits
// @Produce json
// @Param id path string true "visit id"
// @Success 200 {object} models.Visit
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/visits/{id}/call-in [post]
func (h *Handler) CallIn(c *gin.Context) {
	visit, err := h.Engine.CallIn(c.Param("id"))
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, visit)
}

// @Summary Complete a consultation
// @Tags visits
// @Accept json
// @Produce json
// @Param id path string true "visit id"
// @Success 200 {object} models.Visit
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/visits/{id}/complete [post]
func (h *Handler) Complete(c *gin.Context) {
	var req completeRequest
	if c.Request.ContentLength > 0 {
		if !h.bind(c, &req) {
			return
		}
	}
	visit, err := h.Engine.Complete(c.Param("id"), req.Summary)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	if h.Archive != nil {
		ctx := c.Request.Context()
		if err := h.Archive.WithTx(ctx, func(tx pgx.Tx) error {
			return h.Archive.ArchiveVisit(ctx, tx, visit)
		}); err != nil {
			h.Logger.Error().Err(err).Str("visit_id", visit.ID).Msg("visit archive failed")
		}
	}
	c.JSON(http.StatusOK, visit)
}

// @Summary Abandon a committed assignment
// @Description Compensating decrement for callers that gave up after the assignment committed
// @Tags visits
// @Produce json
// @Param id path string true "visit id"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/visits/{id}/abandon [post]
func (h *Handler) Abandon(c *gin.Context) {
	if err := h.Engine.Abandon(c.Param("id")); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "abandoned"})
}

// @Summary List visits
// @Tags visits
// @Produce json
// @Param status query string false "visit status filter"
// @Success 200 {array} models.Visit
// @Router /api/visits [get]
func (h *Handler) VisitsList(c *gin.Context) {
	status := models.VisitStatus(c.Query("status"))
	c.JSON(http.StatusOK, h.Engine.Store().ListVisits(status))
}

// @Summary Visit details
// @Tags visits
// @Produce json
// @Param id path string true "visit id"
// @Success 200 {object} models.Visit
// @Failure 404 {object} map[string]any
// @Router /api/visits/{id} [get]
func (h *Handler) VisitDetails(c *gin.Context) {
	visit, err := h.Engine.Store().GetVisit(c.Param("id"))
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, visit)
}

// @Summary List clinicians with live loads
// @Tags clinicians
// @Produce json
// @Param specialty query string false "specialty filter"
// @Success 200 {array} models.Clinician
// @Router /api/clinicians [get]
func (h *Handler) CliniciansList(c *gin.Context) {
	c.JSON(http.StatusOK, h.Engine.Store().ListClinicians(c.Query("specialty")))
}

// @Summary Register a clinician
// @Description Adds a roster entry; load starts at zero
// @Tags clinicians
// @Accept json
// @Produce json
// @Success 201 {object} models.Clinician
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/clinicians [post]
func (h *Handler) CreateClinician(c *gin.Context) {
	var req clinicianRequest
	if !h.bind(c, &req) {
		return
	}
	clinician := models.Clinician{
		ID:                req.ID,
		Name:              req.Name,
		Specialty:         req.Specialty,
		Availability:      models.Availability(req.Availability),
		AvgServiceTimeSec: req.AvgServiceTimeSec,
		ShiftEndsAt:       req.ShiftEndsAt,
	}
	if clinician.Availability == "" {
		clinician.Availability = models.AvailabilityActive
	}
	if err := h.Engine.RegisterClinician(clinician); err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, clinician)
}

// @Summary Update clinician availability
// @Description Roster-management hook; availability changes never touch the load ledger
// @Tags clinicians
// @Accept json
// @Produce json
// @Param id path string true "clinician id"
// @Success 200 {object} models.Clinician
// @Failure 404 {object} map[string]any
// @Router /api/clinicians/{id}/availability [put]
func (h *Handler) SetAvailability(c *gin.Context) {
	var req availabilityRequest
	if !h.bind(c, &req) {
		return
	}
	clinician, err := h.Engine.SetAvailability(c.Param("id"), models.Availability(req.Availability))
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, clinician)
}

// @Summary Rebalance waiting assignments
// @Description Solves a globally optimal matching over all waiting non-emergency visits and applies only the diffs
// @Tags rebalance
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/rebalance [post]
func (h *Handler) Rebalance(c *gin.Context) {
	decisions, err := h.Engine.Rebalance()
	if err != nil {
		if errors.Is(err, engine.ErrInfeasibleBatch) {
			// Operator no-op: prior assignments are untouched.
			c.JSON(http.StatusOK, gin.H{
				"status":      "INFEASIBLE_BATCH",
				"reassigned":  []models.AssignmentDecision{},
				"description": "No feasible matching; prior assignments preserved",
			})
			return
		}
		writeError(c, http.StatusInternalServerError, "REBALANCE_FAILED", "Rebalance failed", err.Error())
		return
	}

	h.recordDecisions(c.Request.Context(), decisions...)
	if h.Hub != nil {
		for _, d := range decisions {
			h.Hub.PublishDecision("rebalance", d)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK", "reassigned": decisions})
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", err.Error())
		return false
	}
	return true
}

// recordDecisions writes audit rows best-effort; a failed write is logged
// and never surfaces to the caller, the decision already committed.
func (h *Handler) recordDecisions(ctx context.Context, decisions ...models.AssignmentDecision) {
	if h.Archive == nil || len(decisions) == 0 {
		return
	}
	err := h.Archive.WithTx(ctx, func(tx pgx.Tx) error {
		for _, d := range decisions {
			if err := h.Archive.InsertAssignment(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.Logger.Error().Err(err).Int("decisions", len(decisions)).Msg("assignment audit write failed")
	}
}

func (h *Handler) writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrVisitNotFound):
		writeError(c, http.StatusNotFound, "VISIT_NOT_FOUND", "Visit not found", nil)
	case errors.Is(err, store.ErrClinicianNotFound):
		writeError(c, http.StatusNotFound, "CLINICIAN_NOT_FOUND", "Clinician not found", nil)
	case errors.Is(err, engine.ErrInvalidPriority):
		writeError(c, http.StatusBadRequest, "INVALID_PRIORITY", "Unknown priority level", nil)
	case errors.Is(err, engine.ErrInvalidTransition):
		writeError(c, http.StatusConflict, "INVALID_TRANSITION", "Visit is not in a state that allows this operation", nil)
	case errors.Is(err, engine.ErrClinicianBusy):
		writeError(c, http.StatusConflict, "CLINICIAN_BUSY", "Assigned clinician already has a consultation in progress", nil)
	case errors.Is(err, engine.ErrNotAssigned):
		writeError(c, http.StatusConflict, "NOT_ASSIGNED", "Visit has no assigned clinician", nil)
	case errors.Is(err, store.ErrDuplicateID):
		writeError(c, http.StatusConflict, "DUPLICATE_ID", "Record already exists", nil)
	default:
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected error", err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
