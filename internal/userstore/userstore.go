// Package userstore implements the spec's UserStore collaborator boundary:
// authentication and watch-position/rating/playlist CRUD, entirely outside
// the transcoding core (§1: "The transcoder never reads or writes it
// directly"). Backed by gorm, sharing internal/database's connection.
package userstore

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mantonx/hlscore/internal/database"
	"gorm.io/gorm"
)

// ErrInvalidToken is returned by Authenticate for an unknown token.
var ErrInvalidToken = errors.New("userstore: invalid token")

// ErrUserNotFound is returned by Get for an unknown user ID.
var ErrUserNotFound = errors.New("userstore: user not found")

// Store implements core.UserStore against a gorm database.
type Store struct {
	db *gorm.DB
}

// New constructs a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create registers a new user with the given username and returns the row,
// including its generated bearer token. Backs POST /api/users (§6.2).
func (s *Store) Create(username string) (database.User, error) {
	u := database.User{
		ID:       uuid.NewString(),
		Username: username,
		Token:    uuid.NewString(),
	}
	if err := s.db.Create(&u).Error; err != nil {
		return database.User{}, err
	}
	return u, nil
}

// Get looks up a user by ID. Backs GET /api/users/:id (§6.2).
func (s *Store) Get(id string) (database.User, error) {
	var u database.User
	if err := s.db.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.User{}, ErrUserNotFound
		}
		return database.User{}, err
	}
	return u, nil
}

// Authenticate implements core.UserStore.
func (s *Store) Authenticate(token string) (string, error) {
	var u database.User
	if err := s.db.Where("token = ?", token).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	return u.ID, nil
}

// RecordProgress implements core.UserStore.
func (s *Store) RecordProgress(userID, sceneID string, positionSec float64) error {
	rec := database.WatchProgress{
		UserID:      userID,
		SceneID:     sceneID,
		PositionSec: positionSec,
		UpdatedAt:   time.Now(),
	}
	return s.db.Where("user_id = ? AND scene_id = ?", userID, sceneID).
		Assign(rec).
		FirstOrCreate(&database.WatchProgress{}).Error
}

// Rate upserts a user's star rating for a scene.
func (s *Store) Rate(userID, sceneID string, stars int) error {
	rec := database.Rating{UserID: userID, SceneID: sceneID, Stars: stars}
	return s.db.Where("user_id = ? AND scene_id = ?", userID, sceneID).
		Assign(rec).
		FirstOrCreate(&database.Rating{}).Error
}

// AddToPlaylist appends a scene to a user's playlist at the given position.
func (s *Store) AddToPlaylist(userID, sceneID string, position int) error {
	return s.db.Create(&database.PlaylistEntry{UserID: userID, SceneID: sceneID, Position: position}).Error
}
