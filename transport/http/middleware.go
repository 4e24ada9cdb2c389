package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
	"github.com/layer-3/tollgate/service"
)

// Context keys set by the payment middleware for downstream handlers.
const (
	ContextPass  = "accessPass"
	ContextEntry = "resourceEntry"
)

// Error kind names returned in 403/500 bodies.
const (
	KindPaymentRequired = "PaymentRequired"
	KindInvalidPass     = "InvalidPass"
	KindExpiredPass     = "ExpiredPass"
	KindNoRemainingUses = "NoRemainingUses"
	KindBadSignature    = "SignatureVerificationFailed"
	KindInternalError   = "InternalError"
)

// PaymentMiddleware creates middleware gating protected resources behind an
// AccessPass. Requests without the four proof headers receive a 402
// challenge; requests with them are verified and either admitted, with the
// pass attached to the context, or rejected with a 403. The middleware
// writes at most one response and aborts before any handler runs.
func PaymentMiddleware(verifier *service.Verifier, issuer *service.Issuer, registry ports.Registry, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		domain := requestDomain(c)
		resource := resourcePath(c)

		entry, err := registry.Lookup(c.Request.Context(), domain, resource)
		if err != nil {
			if errors.Is(err, ports.ErrEntryNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Resource not registered"})
				return
			}
			logger.Error("registry lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": KindInternalError, "message": "registry unavailable"})
			return
		}

		headers := core.ProofHeaders{
			PassID:    c.GetHeader(core.HeaderPassID),
			Signer:    c.GetHeader(core.HeaderSigner),
			Signature: c.GetHeader(core.HeaderSignature),
			Timestamp: c.GetHeader(core.HeaderTimestamp),
		}

		// Partial header injection falls back to the same challenge as no
		// headers at all, keeping the 402 idempotent.
		if !headers.Complete() {
			challenge(c, issuer, entry, logger)
			return
		}

		pass, err := verifier.Verify(c.Request.Context(), headers, domain, resource)
		if err != nil {
			reject(c, err, logger)
			return
		}

		c.Set(ContextPass, pass)
		c.Set(ContextEntry, entry)
		c.Next()
	}
}

func challenge(c *gin.Context, issuer *service.Issuer, entry *core.ResourceEntry, logger *zap.Logger) {
	payload, err := issuer.Challenge(entry)
	if err != nil {
		logger.Error("failed to issue challenge", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": KindInternalError, "message": "failed to issue challenge"})
		return
	}
	c.AbortWithStatusJSON(http.StatusPaymentRequired, payload)
}

// reject maps verification errors to the HTTP error taxonomy. Every domain
// error is a 403; only truly unexpected failures become a 500.
func reject(c *gin.Context, err error, logger *zap.Logger) {
	kind := KindInternalError
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrPaymentRequired):
		kind, status = KindPaymentRequired, http.StatusPaymentRequired
	case errors.Is(err, core.ErrPassNotFound),
		errors.Is(err, core.ErrOwnerMismatch),
		errors.Is(err, core.ErrScopeMismatch):
		kind, status = KindInvalidPass, http.StatusForbidden
	case errors.Is(err, core.ErrPassExpired):
		kind, status = KindExpiredPass, http.StatusForbidden
	case errors.Is(err, core.ErrNoRemainingUses):
		kind, status = KindNoRemainingUses, http.StatusForbidden
	case errors.Is(err, core.ErrBadSignature):
		kind, status = KindBadSignature, http.StatusForbidden
	default:
		logger.Error("unexpected verification failure", zap.Error(err))
	}

	c.AbortWithStatusJSON(status, gin.H{"error": kind, "message": err.Error()})
}

// requestDomain is the request host without any port.
func requestDomain(c *gin.Context) string {
	host := c.Request.Host
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host
}

// resourcePath is the wildcard path under the content group.
func resourcePath(c *gin.Context) string {
	resource := c.Param("resource")
	if resource == "" {
		resource = "/"
	}
	return core.NormalizeResource(resource)
}

// RequestLogger logs each request with its status and latency.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
