package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/email"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
)

// ContactRequest is the public contact form
type ContactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email,max=254"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// SubmitContact stores a contact-form message and forwards it to support.
// A failed forward is logged; the message is kept either way.
// POST /api/v1/contact
func (h *Handlers) SubmitContact(c *gin.Context) {
	var req ContactRequest
	if !util.BindJSON(c, &req) {
		return
	}
	name, ok := checkText(c, "name", req.Name, 1, 100)
	if !ok {
		return
	}
	subject, ok := checkText(c, "subject", req.Subject, 1, 150)
	if !ok {
		return
	}
	message, ok := checkText(c, "message", req.Message, 10, 5000)
	if !ok {
		return
	}

	msg := models.ContactMessage{
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Subject:   subject,
		Message:   message,
		IP:        c.ClientIP(),
		CreatedAt: time.Now().UTC(),
	}
	if userID := util.OptionalUserID(c); userID != "" {
		msg.UserID = &userID
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Create(&msg).Error; err != nil {
		respondError(c, err)
		return
	}

	if h.mailer != nil {
		err := h.mailer.SendContactMessage(ctx, email.ContactMessage{
			Name:    msg.Name,
			Email:   msg.Email,
			Subject: msg.Subject,
			Message: msg.Message,
		})
		if err != nil {
			logger.Log.Warn("Failed to forward contact message",
				zap.String("contact_id", msg.ID),
				zap.Error(err))
		} else {
			msg.Forwarded = true
			h.db.WithContext(ctx).Model(&msg).UpdateColumn("forwarded", true)
		}
	}

	logger.Log.Info("Contact message received",
		zap.String("contact_id", msg.ID),
		logger.WithIP(msg.IP),
		zap.Bool("forwarded", msg.Forwarded))
	c.JSON(http.StatusCreated, gin.H{"id": msg.ID, "received": true})
}
