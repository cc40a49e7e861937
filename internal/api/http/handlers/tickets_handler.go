package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tracker-service/internal/api/dto"
	"github.com/spec-kit/tracker-service/internal/auth"
	"github.com/spec-kit/tracker-service/internal/domain"
	"github.com/spec-kit/tracker-service/internal/service"
	apperrors "github.com/spec-kit/tracker-service/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets  *service.TicketService
	links    *service.LinkService
	watchers *service.WatcherService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, links *service.LinkService, watchers *service.WatcherService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, links: links, watchers: watchers}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.Create(c.UserContext(), principal, service.TicketCreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		ProductID:      req.ProductID,
		ClientPriority: req.ClientPriority,
		ClientSeverity: req.ClientSeverity,
		ParentID:       req.ParentID,
		Labels:         req.Labels,
		ClientID:       req.ClientID,
		ReporterID:     req.ReporterID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	tickets, err := h.tickets.List(c.UserContext(), principal, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id. The id segment accepts either the opaque id or
// the issue key.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.tickets.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Update(c.UserContext(), principal, c.Params("id"), service.TicketUpdateInput{
		Status:           req.Status,
		InternalPriority: req.InternalPriority,
		InternalSeverity: req.InternalSeverity,
		AssignedTo:       req.AssignedTo,
		Labels:           req.Labels,
		ParentID:         req.ParentID,
		Resolution:       req.Resolution,
		ResolutionNote:   req.ResolutionNote,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetHistory GET /tickets/:id/history.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit := parseInt(c.Query("limit"), 100)
	offset := parseInt(c.Query("offset"), 0)
	entries, err := h.tickets.History(c.UserContext(), principal, c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.AuditEntryResponse{
			ID:         entry.ID,
			ChangeType: entry.ChangeType,
			ActorID:    entry.ActorID,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			Metadata:   entry.Metadata,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.tickets.AddComment(c.UserContext(), principal, c.Params("id"), req.Body, req.Internal)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	comments, err := h.tickets.ListComments(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddAttachments POST /tickets/:id/attachments.
func (h *TicketsHandler) AddAttachments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateAttachmentsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	inputs := make([]service.AttachmentInput, 0, len(req.Attachments))
	for _, att := range req.Attachments {
		inputs = append(inputs, service.AttachmentInput{
			StorageKey: att.StorageKey,
			FileName:   att.FileName,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
		})
	}
	attachments, err := h.tickets.AddAttachments(c.UserContext(), principal, c.Params("id"), inputs)
	if err != nil {
		return err
	}
	items := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, attachmentResponse(&attachments[i]))
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": items})
}

// ListAttachments GET /tickets/:id/attachments.
func (h *TicketsHandler) ListAttachments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	attachments, err := h.tickets.ListAttachments(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, attachmentResponse(&attachments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateLink POST /tickets/:id/links.
func (h *TicketsHandler) CreateLink(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	result, err := h.links.Create(c.UserContext(), principal, ticket.ID, req.TargetID, req.LinkType)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.LinkResponse{
		ID:             result.Link.ID,
		SourceID:       result.Link.SourceID,
		TargetID:       result.Link.TargetID,
		SourceIssueKey: result.Source.IssueKey,
		TargetIssueKey: result.Target.IssueKey,
		LinkType:       result.Link.LinkType,
		CreatedBy:      result.Link.CreatedBy,
		CreatedAt:      result.Link.CreatedAt,
	}})
}

// ListLinks GET /tickets/:id/links.
func (h *TicketsHandler) ListLinks(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.tickets.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	links, err := h.links.ListForTicket(c.UserContext(), principal, ticket.ID)
	if err != nil {
		return err
	}
	items := make([]dto.LinkResponse, 0, len(links))
	for _, link := range links {
		items = append(items, dto.LinkResponse{
			ID:        link.ID,
			SourceID:  link.SourceID,
			TargetID:  link.TargetID,
			LinkType:  link.LinkType,
			CreatedBy: link.CreatedBy,
			CreatedAt: link.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeleteLink DELETE /tickets/:id/links/:linkId.
func (h *TicketsHandler) DeleteLink(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.links.Delete(c.UserContext(), principal, c.Params("linkId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListSpawnedTasks GET /tickets/:id/tasks.
func (h *TicketsHandler) ListSpawnedTasks(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.tickets.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	links, err := h.links.ListSpawnedTasks(c.UserContext(), principal, ticket.ID)
	if err != nil {
		return err
	}
	items := make([]dto.TicketTaskLinkResponse, 0, len(links))
	for _, link := range links {
		items = append(items, dto.TicketTaskLinkResponse{
			ID:        link.ID,
			TicketID:  link.TicketID,
			TaskID:    link.TaskID,
			CreatedAt: link.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddWatcher POST /tickets/:id/watchers.
func (h *TicketsHandler) AddWatcher(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.WatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	watcher, err := h.watchers.Watch(c.UserContext(), principal, ticket.ID, req.UserID, req.Email)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.WatcherResponse{
		TicketID:  watcher.TicketID,
		UserID:    watcher.UserID,
		CreatedAt: watcher.CreatedAt,
	}})
}

// ListWatchers GET /tickets/:id/watchers.
func (h *TicketsHandler) ListWatchers(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.tickets.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	watchers, err := h.watchers.List(c.UserContext(), principal, ticket.ID)
	if err != nil {
		return err
	}
	items := make([]dto.WatcherResponse, 0, len(watchers))
	for _, watcher := range watchers {
		items = append(items, dto.WatcherResponse{
			TicketID:  watcher.TicketID,
			UserID:    watcher.UserID,
			CreatedAt: watcher.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// RemoveWatcher DELETE /tickets/:id/watchers/:userId.
func (h *TicketsHandler) RemoveWatcher(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := h.tickets.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	if err := h.watchers.Unwatch(c.UserContext(), principal, ticket.ID, c.Params("userId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if typeStr := c.Query("type"); typeStr != "" {
		for _, part := range strings.Split(typeStr, ",") {
			filter.Types = append(filter.Types, domain.TicketType(strings.TrimSpace(part)))
		}
	}
	if assignee := c.Query("assigned_to"); assignee != "" {
		filter.AssignedTo = &assignee
	}
	if productID := c.Query("product_id"); productID != "" {
		filter.ProductID = &productID
	}
	if search := c.Query("q"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                ticket.ID,
		IssueKey:          ticket.IssueKey,
		Title:             ticket.Title,
		Description:       ticket.Description,
		Type:              ticket.Type,
		Status:            ticket.Status,
		ProductID:         ticket.ProductID,
		ClientPriority:    ticket.ClientPriority,
		ClientSeverity:    ticket.ClientSeverity,
		InternalPriority:  ticket.InternalPriority,
		InternalSeverity:  ticket.InternalSeverity,
		EffectivePriority: ticket.EffectivePriority(),
		EffectiveSeverity: ticket.EffectiveSeverity(),
		ClientID:          ticket.ClientID,
		ReporterID:        ticket.ReporterID,
		AssignedTo:        ticket.AssignedTo,
		ParentID:          ticket.ParentID,
		Labels:            ticket.Labels,
		Resolution:        ticket.Resolution,
		ResolutionNote:    ticket.ResolutionNote,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
		ClosedAt:          ticket.ClosedAt,
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		AuthorID:  comment.AuthorID,
		Body:      comment.Body,
		Internal:  comment.Internal,
		CreatedAt: comment.CreatedAt,
	}
}

func attachmentResponse(att *domain.Attachment) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:         att.ID,
		TicketID:   att.TicketID,
		UploadedBy: att.UploadedBy,
		FileName:   att.FileName,
		MimeType:   att.MimeType,
		SizeBytes:  att.SizeBytes,
		CreatedAt:  att.CreatedAt,
	}
}
