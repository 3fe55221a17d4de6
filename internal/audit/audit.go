package audit

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/medstore/storefront-auth/internal/models"
)

// suspiciousIPThreshold is the number of distinct source IPs for one user
// within suspiciousWindow above which activity is flagged.
const (
	suspiciousIPThreshold = 3
	suspiciousWindow      = time.Hour
)

// Entry describes one security event to append to the audit trail.
type Entry struct {
	UserID    *uint64
	EventType string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
	Success   bool
}

// Recorder appends audit entries and runs the anomaly heuristic.
type Recorder struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewRecorder constructs a Recorder. A nil nowFn uses the wall clock.
func NewRecorder(db *gorm.DB, nowFn func() time.Time) *Recorder {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Recorder{db: db, nowFn: nowFn}
}

// Record appends one immutable audit row. Failures are swallowed and only
// surfaced in the local log; audit writes must never abort the auth
// operation that triggered them.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.db == nil {
		return
	}

	var metadata datatypes.JSON
	if len(entry.Metadata) > 0 {
		if data, errMarshal := json.Marshal(entry.Metadata); errMarshal == nil {
			metadata = datatypes.JSON(data)
		}
	}

	row := models.AuditLog{
		UserID:    entry.UserID,
		EventType: entry.EventType,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		Metadata:  metadata,
		Success:   entry.Success,
		CreatedAt: r.nowFn().UTC(),
	}
	if errCreate := r.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).WithField("event", entry.EventType).Warn("audit: record failed")
	}
}

// DetectSuspiciousActivity scans the last hour of entries for the user and
// flags more than three distinct source IPs. A positive result writes its
// own suspicious_activity entry and returns true for optional side effects
// at the call site.
func (r *Recorder) DetectSuspiciousActivity(ctx context.Context, userID uint64) bool {
	if r == nil || r.db == nil {
		return false
	}

	since := r.nowFn().UTC().Add(-suspiciousWindow)
	var distinctIPs int64
	errCount := r.db.WithContext(ctx).
		Model(&models.AuditLog{}).
		Where("user_id = ? AND created_at > ?", userID, since).
		Distinct("ip_address").
		Count(&distinctIPs).Error
	if errCount != nil {
		log.WithError(errCount).Warn("audit: suspicious activity scan failed")
		return false
	}

	if distinctIPs <= suspiciousIPThreshold {
		return false
	}

	r.Record(ctx, Entry{
		UserID:    &userID,
		EventType: models.EventSuspiciousActivity,
		IPAddress: "Multiple",
		UserAgent: "System",
		Metadata:  map[string]any{"reason": "Multiple IPs in short time", "ips": distinctIPs},
		Success:   false,
	})
	return true
}
