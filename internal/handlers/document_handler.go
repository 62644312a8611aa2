package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/dto"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/models"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/services"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// DocumentHandler exposes the per-principal collections over REST. Request
// bodies are the raw JSON object to store.
type DocumentHandler struct {
	docs *services.DocumentService
}

func NewDocumentHandler(docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

func (h *DocumentHandler) List(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	collection := c.Params("collection")

	docs, err := h.docs.List(c.UserContext(), tenant.GetAppID(c), userID, collection)
	if err != nil {
		return h.fail(c, collection, "list", err)
	}
	return c.JSON(Snapshot(collection, docs))
}

func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	collection := c.Params("collection")

	doc, err := h.docs.Get(c.UserContext(), tenant.GetAppID(c), userID, collection, c.Params("id"))
	if err != nil {
		return h.fail(c, collection, "get", err)
	}
	return c.JSON(toDocumentResponse(doc))
}

func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	collection := c.Params("collection")

	doc, err := h.docs.Create(c.UserContext(), tenant.GetAppID(c), userID, collection, body(c))
	if err != nil {
		return h.fail(c, collection, "create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.CreateDocumentResponse{ID: doc.DocID})
}

func (h *DocumentHandler) Set(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	collection := c.Params("collection")
	merge := c.QueryBool("merge", false)

	doc, err := h.docs.Set(c.UserContext(), tenant.GetAppID(c), userID, collection, c.Params("id"), body(c), merge)
	if err != nil {
		return h.fail(c, collection, "set", err)
	}
	return c.JSON(toDocumentResponse(doc))
}

func (h *DocumentHandler) Update(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	collection := c.Params("collection")

	doc, err := h.docs.Update(c.UserContext(), tenant.GetAppID(c), userID, collection, c.Params("id"), body(c))
	if err != nil {
		return h.fail(c, collection, "update", err)
	}
	return c.JSON(toDocumentResponse(doc))
}

func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	collection := c.Params("collection")

	if err := h.docs.Delete(c.UserContext(), tenant.GetAppID(c), userID, collection, c.Params("id")); err != nil {
		return h.fail(c, collection, "delete", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *DocumentHandler) fail(c *fiber.Ctx, collection, op string, err error) error {
	switch {
	case errors.Is(err, services.ErrUnknownCollection), errors.Is(err, services.ErrDocumentNotFound):
		return fail(c, fiber.StatusNotFound, dto.CodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidDocument), errors.Is(err, services.ErrInvalidDocumentID):
		return fail(c, fiber.StatusBadRequest, dto.CodeBadRequest, err.Error())
	}
	slog.Error("document operation failed", "collection", collection, "op", op, "error", err, "app_id", tenant.GetAppID(c))
	return internalError(c)
}

// Snapshot converts stored documents to their wire form.
func Snapshot(collection string, docs []models.Document) dto.SnapshotResponse {
	out := dto.SnapshotResponse{Collection: collection, Docs: make([]dto.DocumentResponse, 0, len(docs))}
	for i := range docs {
		out.Docs = append(out.Docs, toDocumentResponse(&docs[i]))
	}
	return out
}

func toDocumentResponse(doc *models.Document) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:        doc.DocID,
		Data:      json.RawMessage(doc.Data),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// body copies the request body; fasthttp reuses the buffer after the handler
// returns.
func body(c *fiber.Ctx) json.RawMessage {
	return append(json.RawMessage(nil), c.Body()...)
}
