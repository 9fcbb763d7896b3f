// Package billing receives subscription changes from the payment provider
// and applies them to user accounts.
package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/auth"
	"github.com/headwatersai/headwaters-backend/internal/tiers"
	"github.com/headwatersai/headwaters-backend/internal/utils"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SignatureHeader = "X-Billing-Signature"
	maxPayloadBytes = 1 << 20 // 1 MiB
)

// Event records a processed webhook so redeliveries are not applied twice.
type Event struct {
	ID         string    `gorm:"primaryKey;type:varchar(128)"`
	UserID     string    `gorm:"type:varchar(36);not null;index"`
	Tier       string    `gorm:"type:varchar(20);not null"`
	Payload    string    `gorm:"type:text"`
	ReceivedAt time.Time `gorm:"not null"`
}

func (Event) TableName() string { return "billing_events" }

// Init migrates the billing tables.
func Init(d *gorm.DB) error {
	if err := d.AutoMigrate(&Event{}); err != nil {
		return fmt.Errorf("auto-migrate billing tables: %w", err)
	}
	return nil
}

type Handler struct {
	db     *gorm.DB
	users  *auth.Service
	secret string
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewHandler(d *gorm.DB, users *auth.Service, secret string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		db:     d,
		users:  users,
		secret: secret,
		clock:  clockwork.NewRealClock(),
		logger: logger.With("component", "billing"),
	}
}

func (h *Handler) SetClock(c clockwork.Clock) { h.clock = c }

// Webhook handles POST /api/webhooks/billing.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large or unreadable")
		return
	}
	defer r.Body.Close()

	if h.secret == "" {
		h.logger.ErrorContext(r.Context(), "billing webhook secret is not configured")
		utils.WriteError(w, http.StatusInternalServerError, "server misconfigured")
		return
	}
	if !verifySignature(r.Header.Get(SignatureHeader), raw, h.secret) {
		utils.WriteError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "bad json")
		return
	}

	eventID := str(m, "eventId", "event_id", "id")
	userID := str(m, "userId", "user_id")
	tierName := strings.ToLower(str(m, "tier", "subscriptionTier", "subscription_tier"))
	if userID == "" || tierName == "" {
		utils.WriteError(w, http.StatusBadRequest, "userId and tier are required")
		return
	}
	tier, ok := tiers.Parse(tierName)
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, auth.ErrInvalidTier.Error())
		return
	}

	ctx := r.Context()
	duplicate := false
	// The event row is claimed before the update in one transaction: a
	// concurrent redelivery blocks on the key and then sees it taken, and a
	// failed update releases it for the next retry.
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if eventID != "" {
			ev := Event{ID: eventID, UserID: userID, Tier: string(tier), Payload: string(raw), ReceivedAt: h.clock.Now().UTC()}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ev)
			if res.Error != nil {
				return fmt.Errorf("record billing event: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				duplicate = true
				return nil
			}
		}
		_, err := h.users.WithTx(tx).UpdateSubscription(ctx, userID, tier,
			optional(str(m, "customerId", "customer_id", "stripeCustomerId")),
			optional(str(m, "subscriptionId", "subscription_id", "stripeSubscriptionId")),
		)
		return err
	})
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "update subscription", "user_id", userID, "event_id", eventID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "Failed to process webhook")
		return
	case duplicate:
		utils.WriteJSON(w, map[string]any{"success": true, "duplicate": true})
		return
	}

	h.logger.InfoContext(ctx, "subscription updated", "user_id", userID, "tier", tier)
	utils.WriteJSON(w, map[string]any{"success": true})
}

func verifySignature(sig string, raw []byte, secret string) bool {
	if !strings.HasPrefix(sig, "sha256=") {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(Sign(raw, secret)))
}

// Sign returns the header value for body: "sha256=" + hex HMAC-SHA256.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// str returns the first string value found among keys.
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
