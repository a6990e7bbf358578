package handlers

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/auth"
	"github.com/zfogg/paddock/internal/chat"
	"github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/polls"
	"github.com/zfogg/paddock/internal/search"
	"github.com/zfogg/paddock/internal/storage"
	"github.com/zfogg/paddock/internal/timeline"
	"github.com/zfogg/paddock/internal/util"
	"github.com/zfogg/paddock/internal/validation"
	"gorm.io/gorm"
)

// respondError maps service errors onto API errors. Anything unknown is a
// logged 500.
func respondError(c *gin.Context, err error) {
	var pollField *polls.FieldError
	var gridField *grids.FieldError

	switch {
	case stderrors.As(err, &pollField):
		respondValidation(c, pollField.Field, pollField.Message)
	case stderrors.As(err, &gridField):
		respondValidation(c, gridField.Field, gridField.Message)

	case stderrors.Is(err, gorm.ErrRecordNotFound):
		util.RespondNotFound(c, "resource")
	case stderrors.Is(err, polls.ErrNotFound):
		util.RespondNotFound(c, "poll")
	case stderrors.Is(err, grids.ErrNotFound):
		util.RespondNotFound(c, "grid")
	case stderrors.Is(err, chat.ErrNotFound):
		util.RespondNotFound(c, "message")
	case stderrors.Is(err, auth.ErrUserNotFound):
		util.RespondNotFound(c, "user")

	case stderrors.Is(err, polls.ErrForbidden),
		stderrors.Is(err, grids.ErrForbidden),
		stderrors.Is(err, chat.ErrForbidden):
		util.RespondForbidden(c, err.Error())

	case stderrors.Is(err, polls.ErrClosed):
		util.RespondWithAPIError(c, errors.PollClosed())
	case stderrors.Is(err, polls.ErrAlreadyClosed):
		util.RespondWithAPIError(c, errors.New(errors.ErrConflict, err.Error()))
	case stderrors.Is(err, polls.ErrNotVoted):
		util.RespondNotFound(c, "vote")

	case stderrors.Is(err, chat.ErrDisabled):
		util.RespondWithAPIError(c, errors.ChatDisabled())
	case stderrors.Is(err, chat.ErrBanned):
		util.RespondWithAPIError(c, errors.Banned(""))
	case stderrors.Is(err, chat.ErrRateLimited):
		util.RespondWithAPIError(c, errors.RateLimited(err.Error()))
	case stderrors.Is(err, chat.ErrEmptyMessage), stderrors.Is(err, chat.ErrTooLong):
		respondValidation(c, "body", err.Error())
	case stderrors.Is(err, chat.ErrInvalidRoom):
		respondValidation(c, "room", err.Error())

	case stderrors.Is(err, timeline.ErrUnknownTrendingKind):
		respondValidation(c, "kind", err.Error())
	case stderrors.Is(err, timeline.ErrUnknownWindow):
		respondValidation(c, "window", err.Error())
	case stderrors.Is(err, search.ErrUnknownKind):
		respondValidation(c, "type", err.Error())

	case stderrors.Is(err, storage.ErrImageTooLarge),
		stderrors.Is(err, storage.ErrUnsupportedImage),
		stderrors.Is(err, storage.ErrEmptyImage):
		respondValidation(c, "image", err.Error())

	case stderrors.Is(err, validation.ErrPasswordMismatch):
		respondValidation(c, "password_confirm", err.Error())
	case isPasswordRule(err):
		respondValidation(c, "password", err.Error())

	case stderrors.Is(err, auth.ErrUserExists):
		util.RespondWithAPIError(c, errors.AlreadyExists("account with this email"))
	case stderrors.Is(err, auth.ErrUsernameExists):
		util.RespondWithAPIError(c, errors.New(errors.ErrAlreadyExists, err.Error()).WithField("username"))
	case stderrors.Is(err, auth.ErrInvalidCredentials), stderrors.Is(err, auth.ErrInvalidToken):
		util.RespondUnauthorized(c, err.Error())
	case stderrors.Is(err, auth.ErrInvalidTwoFactor):
		respondValidation(c, "code", err.Error())
	case stderrors.Is(err, auth.ErrInvalidResetToken):
		respondValidation(c, "token", err.Error())
	case stderrors.Is(err, auth.ErrPasswordNotSet),
		stderrors.Is(err, auth.ErrTwoFactorNotPending),
		stderrors.Is(err, auth.ErrTwoFactorEnabled),
		stderrors.Is(err, auth.ErrTwoFactorDisabled):
		util.RespondBadRequest(c, err.Error())
	case stderrors.Is(err, auth.ErrOAuthNotConfigured):
		util.RespondWithAPIError(c, errors.ServiceUnavailable("google sign-in"))

	default:
		util.RespondWithError(c, err)
	}
}

func respondValidation(c *gin.Context, field, message string) {
	util.RespondValidationError(c, field, message)
}

func isPasswordRule(err error) bool {
	for _, rule := range []error{
		validation.ErrPasswordLength,
		validation.ErrPasswordUpper,
		validation.ErrPasswordLower,
		validation.ErrPasswordDigit,
		validation.ErrPasswordSymbol,
	} {
		if stderrors.Is(err, rule) {
			return true
		}
	}
	return false
}

// checkText trims s and enforces a rune length range, responding with a
// validation error on failure
func checkText(c *gin.Context, field, s string, min, max int) (string, bool) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < min || n > max {
		if min > 0 && n == 0 {
			respondValidation(c, field, field+" is required")
		} else {
			respondValidation(c, field, field+" must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max)+" characters")
		}
		return "", false
	}
	return s, true
}

// target is a piece of content someone can like, comment on or report
type target struct {
	Type    models.TargetType
	ID      string
	OwnerID string
	Preview string
}

// loadTarget resolves a live target. Removed content is gorm.ErrRecordNotFound.
func (h *Handlers) loadTarget(ctx context.Context, tt models.TargetType, id string) (*target, error) {
	db := h.db.WithContext(ctx)
	t := &target{Type: tt, ID: id}

	switch tt {
	case models.TargetPost:
		var p models.Post
		if err := db.Select("id, user_id, body").First(&p, "id = ?", id).Error; err != nil {
			return nil, err
		}
		t.OwnerID, t.Preview = p.UserID, p.Body
	case models.TargetComment:
		var cm models.Comment
		if err := db.Select("id, user_id, body").
			Where("id = ? AND is_deleted = ?", id, false).First(&cm).Error; err != nil {
			return nil, err
		}
		t.OwnerID, t.Preview = cm.UserID, cm.Body
	case models.TargetPoll:
		var p models.Poll
		if err := db.Select("id, user_id, question").First(&p, "id = ?", id).Error; err != nil {
			return nil, err
		}
		t.OwnerID, t.Preview = p.UserID, p.Question
	case models.TargetGrid:
		var g models.Grid
		if err := db.Select("id, user_id, title").First(&g, "id = ?", id).Error; err != nil {
			return nil, err
		}
		t.OwnerID, t.Preview = g.UserID, g.Title
	case models.TargetUser:
		var u models.User
		if err := db.Select("id, username").First(&u, "id = ?", id).Error; err != nil {
			return nil, err
		}
		t.OwnerID, t.Preview = u.ID, u.Username
	case models.TargetChat:
		var m models.ChatMessage
		if err := db.Select("id, user_id, body").
			Where("id = ? AND deleted_at IS NULL", id).First(&m).Error; err != nil {
			return nil, err
		}
		t.OwnerID, t.Preview = m.UserID, m.Body
	default:
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

// respondTargetError answers a loadTarget failure
func respondTargetError(c *gin.Context, tt models.TargetType, err error) {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, string(tt))
		return
	}
	respondError(c, err)
}

// bump adds delta to a counter column on a target row. Decrements stop at
// zero.
func bump(tx *gorm.DB, table, id, column string, delta int) error {
	q := tx.Table(table).Where("id = ?", id)
	if delta < 0 {
		q = q.Where(column + " > 0")
	}
	return q.UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

// hasCounter reports whether a target table carries the named counter
func hasCounter(tt models.TargetType, column string) bool {
	switch column {
	case "like_count", "report_count":
		return tt == models.TargetPost || tt == models.TargetComment ||
			tt == models.TargetPoll || tt == models.TargetGrid
	case "comment_count":
		return tt.Commentable()
	}
	return false
}

// blockedBy returns the IDs the viewer has blocked
func (h *Handlers) blockedBy(ctx context.Context, viewerID string) (map[string]bool, error) {
	out := map[string]bool{}
	if viewerID == "" {
		return out, nil
	}
	var ids []string
	if err := h.db.WithContext(ctx).Model(&models.Block{}).
		Where("blocker_id = ?", viewerID).
		Pluck("blocked_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// bannedUsers is a subquery of banned account IDs
func (h *Handlers) bannedUsers() *gorm.DB {
	return h.db.Model(&models.User{}).Select("id").Where("is_banned = ?", true)
}
