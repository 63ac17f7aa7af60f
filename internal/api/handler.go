// Package api exposes the generation pipeline over HTTP. There is no deploy
// endpoint: signing keys never leave the machine that holds them.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/audit"
	"github.com/GIL794/algorand-ai-contract-creator/internal/compiler"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
	"github.com/GIL794/algorand-ai-contract-creator/internal/teal"
)

type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) *models.GenerationResult
	Explain(ctx context.Context, p models.Provider, model, source string) (string, error)
}

type Compiler interface {
	Compile(ctx context.Context, source string, mode teal.Mode) (*compiler.Artifact, error)
	CompileClear(ctx context.Context, source string) (*compiler.Artifact, error)
}

type BalanceReader interface {
	AccountBalance(ctx context.Context, address string) (uint64, error)
}

type AuditLister interface {
	List(ctx context.Context, stage audit.Stage, limit int) ([]audit.Record, error)
}

type ArtifactSaver interface {
	Save(description, source string) (string, error)
}

// Defaults fill request fields the client leaves out.
type Defaults struct {
	Provider    models.Provider
	Model       string
	Temperature float64
	MaxRetries  int
}

// Dependencies are the services behind the routes. Audit and Artifacts may
// be nil; their endpoints then report that the feature is not configured.
type Dependencies struct {
	Generator Generator
	Compiler  Compiler
	Balances  BalanceReader
	Audit     AuditLister
	Artifacts ArtifactSaver
}

type Handler struct {
	deps     Dependencies
	defaults Defaults
	logger   *zap.Logger
}

func NewHandler(deps Dependencies, defaults Defaults, logger *zap.Logger) *Handler {
	return &Handler{deps: deps, defaults: defaults, logger: logger.Named("api")}
}

// RegisterRoutes mounts /api/v1. auth guards every route; generateLimit is
// applied to generation only.
func (h *Handler) RegisterRoutes(router *gin.Engine, auth, generateLimit gin.HandlerFunc) {
	v1 := router.Group("/api/v1")
	v1.Use(auth)
	{
		v1.POST("/contracts/generate", generateLimit, h.generate)
		v1.POST("/contracts/compile", h.compile)
		v1.POST("/contracts/explain", h.explain)
		v1.GET("/audit", h.listAudit)
		v1.GET("/accounts/:address/balance", h.balance)
	}
}

type generateRequest struct {
	Description string   `json:"description" binding:"required"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxRetries  *int     `json:"max_retries"`
	Save        bool     `json:"save"`
}

type generateResponse struct {
	Result    *models.GenerationResult `json:"result"`
	SavedPath string                   `json:"saved_path,omitempty"`
}

func (h *Handler) generate(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	req, err := h.generationRequest(body)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	result := h.deps.Generator.Generate(c.Request.Context(), req)
	resp := generateResponse{Result: result}
	if !result.Succeeded() {
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}

	if body.Save {
		if h.deps.Artifacts == nil {
			handleServiceError(c, fmt.Errorf("%w: artifact store", models.ErrStoreDisabled))
			return
		}
		path, err := h.deps.Artifacts.Save(req.Description, result.Artifact.SourceCode)
		if err != nil {
			h.logger.Error("Failed to save generated contract", zap.String("request_id", result.Metadata.RequestID), zap.Error(err))
			handleServiceError(c, err)
			return
		}
		resp.SavedPath = path
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) generationRequest(body generateRequest) (models.GenerationRequest, error) {
	p := h.defaults.Provider
	if body.Provider != "" {
		parsed, err := models.ParseProvider(body.Provider)
		if err != nil {
			return models.GenerationRequest{}, err
		}
		p = parsed
	}
	model := body.Model
	if model == "" && p == h.defaults.Provider {
		model = h.defaults.Model
	}
	temperature := h.defaults.Temperature
	if body.Temperature != nil {
		temperature = *body.Temperature
	}
	maxRetries := h.defaults.MaxRetries
	if body.MaxRetries != nil {
		maxRetries = *body.MaxRetries
	}
	return models.NewGenerationRequest(body.Description, p, model, temperature, maxRetries)
}

type compileRequest struct {
	Source string `json:"source" binding:"required"`
	Mode   string `json:"mode"`
}

type compileResponse struct {
	Approval *compiler.Artifact `json:"approval"`
	Clear    *compiler.Artifact `json:"clear,omitempty"`
}

func (h *Handler) compile(c *gin.Context) {
	var body compileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	mode, err := teal.ParseMode(body.Mode)
	if err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	ctx := c.Request.Context()
	approval, err := h.deps.Compiler.Compile(ctx, body.Source, mode)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp := compileResponse{Approval: approval}
	if mode == teal.ModeApplication {
		if resp.Clear, err = h.deps.Compiler.CompileClear(ctx, body.Source); err != nil {
			handleServiceError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

type explainRequest struct {
	Source   string `json:"source" binding:"required"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (h *Handler) explain(c *gin.Context) {
	var body explainRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}
	p, model := h.defaults.Provider, h.defaults.Model
	if body.Provider != "" {
		parsed, err := models.ParseProvider(body.Provider)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		if parsed != p {
			model = ""
		}
		p = parsed
	}
	if body.Model != "" {
		model = body.Model
	}

	text, err := h.deps.Generator.Explain(c.Request.Context(), p, model, body.Source)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": text, "provider": p})
}

func (h *Handler) listAudit(c *gin.Context) {
	if h.deps.Audit == nil {
		handleServiceError(c, fmt.Errorf("%w: audit database", models.ErrStoreDisabled))
		return
	}

	stage := audit.Stage(strings.ToLower(c.Query("stage")))
	switch stage {
	case "", audit.StageGeneration, audit.StageCompilation, audit.StageDeployment:
	default:
		handleServiceError(c, fmt.Errorf("%w: unknown stage %q", models.ErrInvalidInput, stage))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			handleServiceError(c, fmt.Errorf("%w: limit must be a positive integer", models.ErrInvalidInput))
			return
		}
		limit = n
	}

	records, err := h.deps.Audit.List(c.Request.Context(), stage, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) balance(c *gin.Context) {
	address := c.Param("address")
	if _, err := types.DecodeAddress(address); err != nil {
		handleServiceError(c, fmt.Errorf("%w: invalid address %q", models.ErrInvalidInput, address))
		return
	}

	micro, err := h.deps.Balances.AccountBalance(c.Request.Context(), address)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":     address,
		"micro_algos": micro,
		"algos":       ledger.MicroAlgosToAlgos(micro),
	})
}
