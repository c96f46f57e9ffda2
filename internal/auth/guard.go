package auth

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"mqueue-go/internal/metrics"
)

const (
	bearerPrefix = "Bearer "
	principalKey = "principal"
)

// DeniedError short-circuits a request that failed access control.
type DeniedError struct {
	Status  int
	Reason  string
	Message string
}

func (e *DeniedError) Error() string {
	return e.Reason + ": " + e.Message
}

var (
	errNoToken = &DeniedError{
		Status:  fiber.StatusUnauthorized,
		Reason:  "Unauthorized",
		Message: "No token found in Authorization header",
	}
	errVerification = &DeniedError{
		Status:  fiber.StatusUnauthorized,
		Reason:  "Unauthorized",
		Message: "User verification failed",
	}
	errForbidden = &DeniedError{
		Status:  fiber.StatusForbidden,
		Reason:  "Forbidden",
		Message: "You are not authorized to access this endpoint",
	}
)

// Guard gates operations behind token verification and the role policy.
type Guard struct {
	verifier Verifier
	policy   Policy
	skip     bool
	logger   *slog.Logger
}

// NewGuard creates a guard. With skip set every request is let through
// without contacting the identity service.
func NewGuard(verifier Verifier, policy Policy, skip bool, logger *slog.Logger) *Guard {
	return &Guard{
		verifier: verifier,
		policy:   policy,
		skip:     skip,
		logger:   logger,
	}
}

// Require returns middleware that admits a request only if its principal
// may invoke op. On success the principal is available via PrincipalFrom.
func (g *Guard) Require(op Operation) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !g.policy.Protected(op) {
			return c.Next()
		}
		if g.skip {
			metrics.AuthDecisionsTotal.WithLabelValues(string(op), "bypassed").Inc()
			return c.Next()
		}

		// Header values alias the request buffer, which fasthttp reuses.
		header := utils.CopyString(c.Get(fiber.HeaderAuthorization))
		if !strings.HasPrefix(header, bearerPrefix) || strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)) == "" {
			metrics.AuthDecisionsTotal.WithLabelValues(string(op), "unauthorized").Inc()
			return errNoToken
		}

		principal, err := g.verifier.Verify(c.UserContext(), header)
		if err != nil {
			metrics.AuthDecisionsTotal.WithLabelValues(string(op), "unauthorized").Inc()
			if errors.Is(err, ErrVerificationFailed) {
				g.logger.Info("token rejected", "operation", op, "error", err)
			} else {
				g.logger.Error("identity service call failed", "operation", op, "error", err)
			}
			return errVerification
		}

		if !g.policy.Allows(op, principal.Role) {
			metrics.AuthDecisionsTotal.WithLabelValues(string(op), "forbidden").Inc()
			g.logger.Info("role not permitted", "operation", op, "role", principal.Role, "principal_id", principal.ID)
			return errForbidden
		}

		metrics.AuthDecisionsTotal.WithLabelValues(string(op), "allowed").Inc()
		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// PrincipalFrom returns the principal admitted by Require, if any.
func PrincipalFrom(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	return p, ok
}
