package middleware

import (
	"bytes"
	"io"

	"github.com/batsonnoah58/betledger/internal/adapter/gateway"
	"github.com/batsonnoah58/betledger/pkg/apperror"
	"github.com/batsonnoah58/betledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderWebhookSignature carries the hex HMAC-SHA256 of the raw request
// body, keyed with the per-gateway shared secret.
const HeaderWebhookSignature = "X-Webhook-Signature"

// WebhookSignature verifies a gateway callback's body signature before
// any payment lookup happens. Forged or unsigned callbacks never reach
// the handler.
func WebhookSignature(signer *gateway.Signer, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sig := c.GetHeader(HeaderWebhookSignature)
		if sig == "" {
			response.Error(c, apperror.ErrInvalidGatewaySignature())
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		if !signer.Verify(body, sig) {
			log.Warn().Str("client_ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("webhook signature rejected")
			response.Error(c, apperror.ErrInvalidGatewaySignature())
			c.Abort()
			return
		}

		c.Next()
	}
}
