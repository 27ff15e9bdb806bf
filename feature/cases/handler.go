package cases

import (
	"bytes"
	"errors"

	"case-mirror/core/logger"
	"case-mirror/core/remote"
	"case-mirror/feature/cases/models"
	casesync "case-mirror/feature/cases/sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for case records.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the cases routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/cases")
	group.Get("/partitions", h.HandleListPartitions)
	group.Get("/:partition/records", h.HandleListRecords)
	group.Get("/:partition/records/:key", h.HandleGetRecord)
	group.Put("/:partition/records/:key", h.HandleSaveRecord)
	group.Delete("/:partition/records/:key", h.HandleDeleteRecord)

	group.Post("/:partition/sync", h.HandleSync)
	group.Get("/:partition/diff", h.HandleDiff)
	group.Post("/:partition/diff", h.HandleApplyDiff)

	group.Get("/:partition/records/:key/attachments", h.HandleListAttachments)
	group.Get("/:partition/records/:key/attachments/:filename", h.HandleDownloadAttachment)
	group.Put("/:partition/records/:key/attachments/:filename", h.HandleUploadAttachment)
	group.Delete("/:partition/records/:key/attachments/:filename", h.HandleDeleteAttachment)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrUnknownPartition):
		status = fiber.StatusNotFound
	case remote.IsValidation(err):
		status = fiber.StatusUnprocessableEntity
	case remote.IsTransient(err):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// HandleListPartitions lists the partitions present in the local mirror.
// @Summary List Partitions
// @Description List the partitions present in the local mirror.
// @Tags cases
// @Produce json
// @Success 200 {array} string "Partitions"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /cases/partitions [get]
func (h *Handler) HandleListPartitions(c *fiber.Ctx) error {
	partitions, err := h.service.ListPartitions(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(partitions)
}

// HandleListRecords lists the local records of a partition.
// @Summary List Records
// @Description List all local records of a partition, ordered by natural key.
// @Tags cases
// @Produce json
// @Param partition path string true "Partition"
// @Param state query string false "Filter by sync state (synced, pending, conflict)"
// @Success 200 {array} models.Record "Records"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /cases/{partition}/records [get]
func (h *Handler) HandleListRecords(c *fiber.Ctx) error {
	var stateFilter *models.SyncState
	if raw := c.Query("state"); raw != "" {
		state, err := models.ParseSyncState(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		stateFilter = &state
	}

	records, err := h.service.ListRecords(c.Context(), c.Params("partition"), stateFilter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(records)
}

// HandleGetRecord returns a single local record.
// @Summary Get Record
// @Description Get one local record by partition and natural key.
// @Tags cases
// @Produce json
// @Param partition path string true "Partition"
// @Param key path string true "Natural Key"
// @Success 200 {object} models.Record "Record"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /cases/{partition}/records/{key} [get]
func (h *Handler) HandleGetRecord(c *fiber.Ctx) error {
	rec, err := h.service.GetRecord(c.Context(), c.Params("partition"), c.Params("key"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(rec)
}

type saveRecordRequest struct {
	Fields models.FieldMap `json:"fields"`
}

// HandleSaveRecord creates or updates a record from a local edit.
// @Summary Save Record
// @Description Create or update a record. The record goes pending until the next push.
// @Tags cases
// @Accept json
// @Produce json
// @Param partition path string true "Partition"
// @Param key path string true "Natural Key"
// @Param body body saveRecordRequest true "Record fields"
// @Success 200 {object} models.Record "Record"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /cases/{partition}/records/{key} [put]
func (h *Handler) HandleSaveRecord(c *fiber.Ctx) error {
	var req saveRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	rec, err := h.service.SaveRecord(c.Context(), c.Params("partition"), c.Params("key"), req.Fields)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(rec)
}

// HandleDeleteRecord removes a record from the local mirror.
// @Summary Delete Record
// @Description Delete a local record. The remote side is untouched.
// @Tags cases
// @Produce json
// @Param partition path string true "Partition"
// @Param key path string true "Natural Key"
// @Success 204 "Deleted"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /cases/{partition}/records/{key} [delete]
func (h *Handler) HandleDeleteRecord(c *fiber.Ctx) error {
	if err := h.service.DeleteRecord(c.Context(), c.Params("partition"), c.Params("key")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type syncRequest struct {
	Mode   string `json:"mode"`
	DryRun bool   `json:"dry_run"`
	Prune  bool   `json:"prune"`
}

// HandleSync triggers one reconciliation run for a partition.
// @Summary Run Sync
// @Description Run an init, diff, or full-update reconciliation for a partition.
// @Tags cases
// @Accept json
// @Produce json
// @Param partition path string true "Partition"
// @Param body body syncRequest true "Sync options"
// @Success 200 {object} any "Sync summary"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /cases/{partition}/sync [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	var req syncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	mode, ok := casesync.ParseMode(req.Mode)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown sync mode: " + req.Mode})
	}

	result, err := h.service.RunSync(c.Context(), c.Params("partition"), mode, req.DryRun, req.Prune)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

// HandleDiff reports the differences between local and remote.
// @Summary Compute Diff
// @Description Compare the local mirror against the remote table without modifying either side.
// @Tags cases
// @Produce json
// @Param partition path string true "Partition"
// @Success 200 {object} sync.DiffReport "Diff report"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /cases/{partition}/diff [get]
func (h *Handler) HandleDiff(c *fiber.Ctx) error {
	report, err := h.service.ComputeDiff(c.Context(), c.Params("partition"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

type applyDiffRequest struct {
	Decisions map[string]casesync.Decision `json:"decisions"`
}

// HandleApplyDiff resolves reported differences by explicit decisions.
// @Summary Apply Diff
// @Description Resolve differences per record or per field, by natural key.
// @Tags cases
// @Accept json
// @Produce json
// @Param partition path string true "Partition"
// @Param body body applyDiffRequest true "Decisions keyed by natural key"
// @Success 200 {object} sync.ApplyResult "Apply result"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /cases/{partition}/diff [post]
func (h *Handler) HandleApplyDiff(c *fiber.Ctx) error {
	var req applyDiffRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if len(req.Decisions) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no decisions given"})
	}

	result, err := h.service.ApplyDiff(c.Context(), c.Params("partition"), req.Decisions)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

// HandleListAttachments lists the attachments of a record.
// @Summary List Attachments
// @Tags cases
// @Produce json
// @Param partition path string true "Partition"
// @Param key path string true "Natural Key"
// @Success 200 {array} string "Filenames"
// @Router /cases/{partition}/records/{key}/attachments [get]
func (h *Handler) HandleListAttachments(c *fiber.Ctx) error {
	names, err := h.service.ListAttachments(c.Context(), c.Params("partition"), c.Params("key"))
	if err != nil {
		return h.fail(c, err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(names)
}

// HandleUploadAttachment stores the request body as an attachment.
// @Summary Upload Attachment
// @Tags cases
// @Accept octet-stream
// @Produce json
// @Param partition path string true "Partition"
// @Param key path string true "Natural Key"
// @Param filename path string true "Filename"
// @Success 201 "Created"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /cases/{partition}/records/{key}/attachments/{filename} [put]
func (h *Handler) HandleUploadAttachment(c *fiber.Ctx) error {
	body := c.Body()
	contentType := c.Get(fiber.HeaderContentType, "application/octet-stream")

	err := h.service.UploadAttachment(
		c.Context(),
		c.Params("partition"), c.Params("key"), c.Params("filename"),
		contentType,
		bytes.NewReader(body), int64(len(body)),
	)
	if err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// HandleDownloadAttachment streams an attachment back to the client.
// @Summary Download Attachment
// @Tags cases
// @Produce octet-stream
// @Param partition path string true "Partition"
// @Param key path string true "Natural Key"
// @Param filename path string true "Filename"
// @Success 200 {file} binary "Attachment"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /cases/{partition}/records/{key}/attachments/{filename} [get]
func (h *Handler) HandleDownloadAttachment(c *fiber.Ctx) error {
	obj, err := h.service.DownloadAttachment(c.Context(), c.Params("partition"), c.Params("key"), c.Params("filename"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.SendStream(obj)
}

// HandleDeleteAttachment removes one attachment.
// @Summary Delete Attachment
// @Tags cases
// @Produce json
// @Param partition path string true "Partition"
// @Param key path string true "Natural Key"
// @Param filename path string true "Filename"
// @Success 204 "Deleted"
// @Router /cases/{partition}/records/{key}/attachments/{filename} [delete]
func (h *Handler) HandleDeleteAttachment(c *fiber.Ctx) error {
	if err := h.service.DeleteAttachment(c.Context(), c.Params("partition"), c.Params("key"), c.Params("filename")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
