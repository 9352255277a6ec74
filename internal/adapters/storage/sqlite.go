// Package storage persists the daemon's durable state with GORM over
// SQLite: the connection session journal and the user-visible settings.
package storage

import (
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

var (
	_ ports.SessionJournal = (*SQLiteAdapter)(nil)
	_ ports.SettingsStore  = (*SQLiteAdapter)(nil)
)

// SQLiteAdapter implements the session journal and the settings store
// on one database file.
type SQLiteAdapter struct {
	db *gorm.DB
}

// SessionModel is the GORM model for connection sessions.
type SessionModel struct {
	ID          uint   `gorm:"primaryKey"`
	PeerAddress string `gorm:"index"`
	Flavor      string
	StartedAt   time.Time
	EndedAt     time.Time
	Reason      string
	Connected   bool
	Closed      bool
	GroupRole   string
	Frequency   int
}

// SettingModel is a key/value row for the settings store.
type SettingModel struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

const (
	settingDeviceName         = "device_name"
	settingInvitationFallback = "invitation_fallback_wait"
)

// NewSQLiteAdapter opens the database and migrates the schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SessionModel{}, &SettingModel{}); err != nil {
		return nil, err
	}
	db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON session_models(started_at)")
	return &SQLiteAdapter{db: db}, nil
}

// OpenSession records the start of a formation attempt.
func (a *SQLiteAdapter) OpenSession(s ports.ConnectionSession) (uint, error) {
	model := SessionModel{
		PeerAddress: s.PeerAddress,
		Flavor:      s.Flavor,
		StartedAt:   s.StartedAt,
		GroupRole:   s.GroupRole,
		Frequency:   s.Frequency,
	}
	if model.StartedAt.IsZero() {
		model.StartedAt = time.Now()
	}
	if err := a.db.Create(&model).Error; err != nil {
		return 0, err
	}
	return model.ID, nil
}

// CloseSession records the outcome. Closing an unknown or already
// closed session is a no-op.
func (a *SQLiteAdapter) CloseSession(id uint, connected bool, reason domain.FailureReason) error {
	return a.db.Model(&SessionModel{}).
		Where("id = ? AND closed = ?", id, false).
		Updates(map[string]any{
			"ended_at":  time.Now(),
			"reason":    reason.String(),
			"connected": connected,
			"closed":    true,
		}).Error
}

// RecentSessions returns the newest sessions first.
func (a *SQLiteAdapter) RecentSessions(limit int) ([]ports.ConnectionSession, error) {
	var models []SessionModel
	if err := a.db.Order("started_at desc").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ports.ConnectionSession, 0, len(models))
	for _, m := range models {
		out = append(out, ports.ConnectionSession{
			ID:          m.ID,
			PeerAddress: m.PeerAddress,
			Flavor:      m.Flavor,
			StartedAt:   m.StartedAt,
			EndedAt:     m.EndedAt,
			Reason:      parseReason(m.Reason),
			Connected:   m.Connected,
			GroupRole:   m.GroupRole,
			Frequency:   m.Frequency,
		})
	}
	return out, nil
}

// DeviceName returns the persisted name and whether one was stored.
func (a *SQLiteAdapter) DeviceName() (string, bool, error) {
	return a.setting(settingDeviceName)
}

// SaveDeviceName persists the advertised name.
func (a *SQLiteAdapter) SaveDeviceName(name string) error {
	return a.saveSetting(settingDeviceName, name)
}

// InvitationFallbackPolicy returns the persisted reinvocation fallback
// policy and whether it was ever set.
func (a *SQLiteAdapter) InvitationFallbackPolicy() (bool, bool, error) {
	v, ok, err := a.setting(settingInvitationFallback)
	return v == "wait", ok, err
}

// SaveInvitationFallbackPolicy persists the policy.
func (a *SQLiteAdapter) SaveInvitationFallbackPolicy(waitForInvitation bool) error {
	v := "fallback"
	if waitForInvitation {
		v = "wait"
	}
	return a.saveSetting(settingInvitationFallback, v)
}

func (a *SQLiteAdapter) setting(key string) (string, bool, error) {
	var row SettingModel
	err := a.db.First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (a *SQLiteAdapter) saveSetting(key, value string) error {
	return a.db.Save(&SettingModel{Key: key, Value: value}).Error
}

func parseReason(s string) domain.FailureReason {
	for r := domain.ReasonNone; r <= domain.ReasonCancelled; r++ {
		if r.String() == s {
			return r
		}
	}
	return domain.ReasonNone
}
