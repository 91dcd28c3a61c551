package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/middleware/auth"
	"go.uber.org/zap"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
)

// DiagnosticsSearcher finds webhook logs mentioning a term.
type DiagnosticsSearcher interface {
	Search(ctx context.Context, term string, limit int) (*entity.DiagnosticReport, error)
}

type DiagnosticsHandler struct {
	diagnostics DiagnosticsSearcher
	logger      *zap.Logger
}

func NewDiagnosticsHandler(diagnostics DiagnosticsSearcher, logger *zap.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		diagnostics: diagnostics,
		logger:      logger,
	}
}

// Search handles GET /diagnostics/search?email=...&limit=...
func (h *DiagnosticsHandler) Search(c echo.Context) error {
	term := c.QueryParam("email")
	if term == "" {
		term = c.QueryParam("q")
	}

	limit, err := parseLimit(c.QueryParam("limit"), defaultSearchLimit, maxSearchLimit)
	if err != nil {
		return badRequest("limit must be a positive integer")
	}

	report, err := h.diagnostics.Search(c.Request().Context(), term, limit)
	if err != nil {
		return fail(h.logger, err, "Diagnostics search failed",
			zap.String("actor", auth.Actor(c)))
	}

	h.logger.Info("Diagnostics search",
		zap.String("actor", auth.Actor(c)),
		zap.Int("matches", len(report.Matches)))
	return c.JSON(http.StatusOK, report)
}

func parseLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, strconv.ErrSyntax
	}
	if n > max {
		return max, nil
	}
	return n, nil
}
