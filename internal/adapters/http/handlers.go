package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aipropiq/provisioning-service/internal/application"
	"github.com/aipropiq/provisioning-service/internal/domain"
	"github.com/aipropiq/provisioning-service/internal/ports"
)

const maxWebhookBody = 1 << 20

// Handler is the HTTP adapter entrypoint. Only application and security
// dependencies live here to keep adapter boundaries clean.
type Handler struct {
	service    *application.Service
	tokens     ports.ServiceTokenVerifier
	signatures ports.WebhookSignatureVerifier
}

func NewHandler(service *application.Service, tokens ports.ServiceTokenVerifier, signatures ports.WebhookSignatureVerifier) *Handler {
	return &Handler{service: service, tokens: tokens, signatures: signatures}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"endpoints": map[string]string{
			"webhook":        "/webhooks/orders",
			"access_check":   "/api/v1/access-check",
			"login_fallback": "/internal/v1/login-fallback",
			"provision":      "/internal/v1/provision",
			"attempts":       "/internal/v1/attempts",
			"health":         "/healthz",
		},
	})
}

// flexID tolerates the storefront sending identifiers as either JSON
// numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(raw []byte) error {
	if len(raw) == 0 || string(raw) == "null" {
		*f = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type webhookBody struct {
	ID      flexID `json:"id"`
	Status  string `json:"status"`
	Billing struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Company   string `json:"company"`
	} `json:"billing"`
	LineItems []struct {
		ProductID   flexID `json:"product_id"`
		SKU         string `json:"sku"`
		VariationID flexID `json:"variation_id"`
		Quantity    int    `json:"quantity"`
	} `json:"line_items"`
	DateCreated string `json:"date_created"`
}

// orderWebhook is the single network-facing write entry point. The
// notification is resolved into its tagged variant exactly once here:
// a body carrying status, line items and a billing email is inspected
// as delivered; anything else with an order id is re-fetched.
func (h *Handler) orderWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "unreadable request body")
		return
	}

	if h.signatures != nil && !h.signatures.Verify(raw, r.Header.Get("X-WC-Webhook-Signature")) {
		logHTTPOperationError(r.Context(), "order_webhook", http.StatusOK, "INVALID_SIGNATURE", "webhook signature mismatch", nil)
		writeJSON(w, http.StatusOK, map[string]string{"status": "invalid", "message": "signature mismatch"})
		return
	}

	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "malformed json body")
		return
	}
	if strings.TrimSpace(string(body.ID)) == "" {
		// Ping-style or unrecognized notification. Acknowledge so the
		// sender does not redeliver something that cannot be processed.
		logHTTPOperationError(r.Context(), "order_webhook", http.StatusOK, "INVALID_NOTIFICATION", "notification without order id", nil)
		writeJSON(w, http.StatusOK, map[string]string{"status": "invalid", "message": "no order id in notification"})
		return
	}

	notification := application.OrderNotification{OrderID: string(body.ID)}
	if body.Status != "" && len(body.LineItems) > 0 && strings.TrimSpace(body.Billing.Email) != "" {
		payload := application.OrderPayload{
			Status: domain.OrderStatus(body.Status),
			Billing: domain.Billing{
				Email:     body.Billing.Email,
				FirstName: body.Billing.FirstName,
				LastName:  body.Billing.LastName,
				Phone:     body.Billing.Phone,
				Company:   body.Billing.Company,
			},
		}
		for _, item := range body.LineItems {
			payload.LineItems = append(payload.LineItems, domain.LineItem{
				ProductID:   string(item.ProductID),
				SKU:         item.SKU,
				VariationID: string(item.VariationID),
				Quantity:    item.Quantity,
			})
		}
		if ts, parseErr := time.Parse(time.RFC3339, body.DateCreated); parseErr == nil {
			payload.CreatedAt = ts
		}
		notification.Payload = &payload
	}

	result, err := h.service.HandleOrderNotification(r.Context(), notification)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			logHTTPOperationError(r.Context(), "order_webhook", http.StatusOK, "INVALID_NOTIFICATION", err.Error(), err)
			writeJSON(w, http.StatusOK, map[string]string{"status": "invalid", "message": "notification cannot be processed"})
			return
		}
		// Retry-requested path: transport or upstream failure before the
		// pipeline could settle on a business outcome.
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "order_webhook", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) accessCheck(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	status, err := h.service.HasAccess(r.Context(), req.Email)
	if err != nil {
		httpStatus, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "access_check", httpStatus, code, msg, err)
		writeError(w, httpStatus, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, status)
}

func (h *Handler) loginFallback(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	result, err := h.service.ReconcileLogin(r.Context(), req.Email, readIP(r))
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "login_fallback", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	result, err := h.service.Provision(r.Context(), req.Email, readIP(r))
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "provision", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	attempts, err := h.service.ListAttempts(r.Context(), email, limit)
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "list_attempts", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	type attemptView struct {
		AttemptID   string    `json:"attempt_id"`
		Source      string    `json:"source"`
		OrderID     string    `json:"order_id,omitempty"`
		Outcome     string    `json:"outcome"`
		Reason      string    `json:"reason,omitempty"`
		AttemptedAt time.Time `json:"attempted_at"`
	}
	// The credential hash stays server-side; support verifies credentials
	// through a separate compare call, never by reading hashes.
	views := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, attemptView{
			AttemptID:   a.AttemptID.String(),
			Source:      a.Source,
			OrderID:     a.OrderID,
			Outcome:     string(a.Outcome),
			Reason:      a.Reason,
			AttemptedAt: a.AttemptedAt,
		})
	}
	writeSuccess(w, http.StatusOK, views)
}

func decodeBody(r *http.Request, target any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody))
	if err := dec.Decode(target); err != nil {
		return errors.New("invalid json body")
	}
	return nil
}
