package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/chamapay/backend/internal/services"
	"github.com/rs/zerolog"
)

type CallbackIngestor interface {
	HandleGatewayCallback(ctx context.Context, raw []byte) services.CallbackAck
}

type CallbackHandler struct {
	ingestor CallbackIngestor
	log      zerolog.Logger
}

func NewCallbackHandler(ingestor CallbackIngestor, log zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{
		ingestor: ingestor,
		log:      log.With().Str("component", "callback_http").Logger(),
	}
}

// GatewayCallback receives STK push results
// @Summary Gateway callback
// @Description Webhook for the payment gateway. Always answers 200 with ResultCode 0.
// @Tags Gateway
// @Accept json
// @Produce json
// @Success 200 {object} services.CallbackAck
// @Router /gateway/callback [post]
func (h *CallbackHandler) GatewayCallback(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to read callback body")
	}

	// the ingestor acks malformed bodies too
	writeJSON(w, http.StatusOK, h.ingestor.HandleGatewayCallback(r.Context(), raw))
}
