package database

import (
	"time"

	"gorm.io/gorm"
)

// SessionRecord is an observability-only row written on session
// lifecycle transitions, for admin history and crash forensics. It is
// never read back to reconstruct live session state: live state always
// lives in SessionManager's in-memory registry, per the spec's explicit
// ownership rules (§3 "Ownership"). Grounded on the teacher's
// transcode_models.go TranscodeSession shape, narrowed to this spec's
// session fields.
type SessionRecord struct {
	ID        string `gorm:"primaryKey;size:128"`
	SceneID   string `gorm:"index"`
	Quality   string `gorm:"index"`
	State     string `gorm:"index"`
	StartSec  float64
	CreatedAt time.Time
	EndedAt   *time.Time
	LastError string
}

func (SessionRecord) TableName() string { return "session_records" }

// RecordSessionEvent upserts the SessionRecord row for id: creating it on
// first sight (session creation) and overwriting its state/lastError on
// every later transition, setting EndedAt once the transition is a
// terminal one. Called from the event-bus subscriber wired up in
// cmd/streamd, not from internal/session directly, so the session
// package stays free of a database dependency.
func RecordSessionEvent(db *gorm.DB, id, sceneID, quality, state string, startSec float64, lastError string, ended bool) error {
	assignments := map[string]interface{}{
		"scene_id":   sceneID,
		"quality":    quality,
		"state":      state,
		"start_sec":  startSec,
		"last_error": lastError,
	}
	if ended {
		assignments["ended_at"] = time.Now()
	}
	return db.Where("id = ?", id).
		Assign(assignments).
		FirstOrCreate(&SessionRecord{ID: id}).Error
}

// User, WatchProgress, Rating, and PlaylistEntry are thin CRUD rows
// backing the UserStore collaborator boundary (§1, §6) — entirely outside
// the transcoding core, included only so the HTTP framing layer has a
// real caller to authenticate against.
type User struct {
	ID       string `gorm:"primaryKey;size:64"`
	Username string `gorm:"uniqueIndex;size:128"`
	Token    string `gorm:"uniqueIndex;size:256"`
}

func (User) TableName() string { return "users" }

type WatchProgress struct {
	ID          uint `gorm:"primaryKey"`
	UserID      string `gorm:"index"`
	SceneID     string `gorm:"index"`
	PositionSec float64
	UpdatedAt   time.Time
}

func (WatchProgress) TableName() string { return "watch_progress" }

type Rating struct {
	ID      uint `gorm:"primaryKey"`
	UserID  string `gorm:"index"`
	SceneID string `gorm:"index"`
	Stars   int
}

func (Rating) TableName() string { return "ratings" }

type PlaylistEntry struct {
	ID       uint `gorm:"primaryKey"`
	UserID   string `gorm:"index"`
	SceneID  string `gorm:"index"`
	Position int
}

func (PlaylistEntry) TableName() string { return "playlist_entries" }
