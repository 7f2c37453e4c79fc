package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"rfid-bridge/internal/models"
	"rfid-bridge/internal/repository/scylla"
	"rfid-bridge/internal/util"
)

// CardAPI is the slice of the card service the HTTP surface needs.
type CardAPI interface {
	Authorize(ctx context.Context, tag, userName, accessPoint string) error
	Revoke(ctx context.Context, tag string) error
	OpenDoor(doorID string)
}

// SecurityAPI is the slice of the security service the HTTP surface needs.
type SecurityAPI interface {
	Resolve(ctx context.Context, eventID, notes string) error
}

// BridgeHandler handles the administrative HTTP requests
type BridgeHandler struct {
	cards    CardAPI
	security SecurityAPI
	logger   *zap.Logger
}

func NewBridgeHandler(cards CardAPI, security SecurityAPI, logger *zap.Logger) *BridgeHandler {
	return &BridgeHandler{
		cards:    cards,
		security: security,
		logger:   logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func errorResponse(err error, message string) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
		Message: message,
	}
}

var errTagRequired = errors.New("rfid_tag is required")

type authorizeRequest struct {
	RFIDTag  string `json:"rfid_tag"`
	UserName string `json:"user_name"`
}

type revokeRequest struct {
	RFIDTag string `json:"rfid_tag"`
}

type openDoorRequest struct {
	DoorID string `json:"door_id"`
}

type resolveRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

// RegisterRoutes registers all bridge routes
func (h *BridgeHandler) RegisterRoutes(router chi.Router) {
	router.Route("/cards", func(r chi.Router) {
		r.Post("/authorize", h.AuthorizeCard)
		r.Post("/revoke", h.RevokeCard)
	})
	router.Post("/door/open", h.OpenDoor)
	router.Post("/security-events/{eventID}/resolve", h.ResolveSecurityEvent)
}

// AuthorizeCard grants a card: the command goes to the device, the
// AUTHORIZED row goes to the store.
func (h *BridgeHandler) AuthorizeCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.RFIDTag == "" {
		h.respondWithError(w, http.StatusBadRequest, errTagRequired, "Missing RFID tag")
		return
	}

	if err := h.cards.Authorize(ctx, req.RFIDTag, req.UserName, models.AccessPointAPI); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err, "Failed to authorize card")
		return
	}

	h.respondWithJSON(w, http.StatusOK,
		successResponse(nil, fmt.Sprintf("Card %s authorized", req.RFIDTag)))
	h.logger.Info("Card authorized via HTTP",
		util.String("rfid_tag", req.RFIDTag),
		util.Duration("duration", time.Since(startTime)))
}

// RevokeCard revokes a card. Revoking a tag that was never authorized
// succeeds: the store update is a no-op.
func (h *BridgeHandler) RevokeCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.RFIDTag == "" {
		h.respondWithError(w, http.StatusBadRequest, errTagRequired, "Missing RFID tag")
		return
	}

	if err := h.cards.Revoke(ctx, req.RFIDTag); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err, "Failed to revoke card")
		return
	}

	h.respondWithJSON(w, http.StatusOK,
		successResponse(nil, fmt.Sprintf("Card %s revoked", req.RFIDTag)))
	h.logger.Info("Card revoked via HTTP",
		util.String("rfid_tag", req.RFIDTag),
		util.Duration("duration", time.Since(startTime)))
}

// OpenDoor publishes the door-open command. Fire-and-forget: the response
// is always success.
func (h *BridgeHandler) OpenDoor(w http.ResponseWriter, r *http.Request) {
	var req openDoorRequest
	// Body is optional here; decode failures just mean the default door.
	_ = json.NewDecoder(r.Body).Decode(&req)

	doorID := req.DoorID
	if doorID == "" {
		doorID = "main"
	}
	h.cards.OpenDoor(doorID)

	h.respondWithJSON(w, http.StatusOK,
		successResponse(nil, fmt.Sprintf("Door %s opened", doorID)))
}

// ResolveSecurityEvent marks a security event resolved.
func (h *BridgeHandler) ResolveSecurityEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventIDStr := chi.URLParam(r, "eventID")
	eventID, err := uuid.Parse(eventIDStr)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid event ID")
		return
	}

	var req resolveRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.security.Resolve(ctx, eventID.String(), req.ResolutionNotes); err != nil {
		if errors.Is(err, scylla.ErrEventNotFound) {
			h.respondWithError(w, http.StatusNotFound, err, "Security event not found")
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, err, "Failed to resolve security event")
		return
	}

	h.respondWithJSON(w, http.StatusOK,
		successResponse(nil, fmt.Sprintf("Security event %s resolved", eventID)))
}

func (h *BridgeHandler) respondWithJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", util.ErrorField(err))
	}
}

func (h *BridgeHandler) respondWithError(w http.ResponseWriter, status int, err error, message string) {
	h.logger.Warn("Request failed",
		util.Int("status", status),
		util.String("message", message),
		util.ErrorField(err))
	h.respondWithJSON(w, status, errorResponse(err, message))
}
