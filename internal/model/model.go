// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"time"
)

// Role is a user's authorization level.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleCollaborator Role = "collaborator"
)

// PlaceholderImage is stored when an ad is created without an image.
const PlaceholderImage = "https://via.placeholder.com/400x300?text=No+Image"

// Owner sentinels used when an ad references a user that no longer exists.
const (
	UnknownOwnerName   = "Unknown"
	UnknownOwnerNumber = "N/A"
)

// User is an account stored in the document. PasswordHash is never exposed
// outside the persistence layer; use Public for responses.
type User struct {
	ID                 int64  `json:"id"`
	Username           string `json:"username"`
	PasswordHash       string `json:"password"`
	Role               Role   `json:"role"`
	Name               string `json:"name"`
	CollaboratorNumber string `json:"collaboratorNumber"`
}

// PublicUser is the whitelisted projection of User returned to clients.
type PublicUser struct {
	ID                 int64  `json:"id"`
	Username           string `json:"username"`
	Name               string `json:"name"`
	Role               Role   `json:"role"`
	CollaboratorNumber string `json:"collaboratorNumber"`
}

// Public projects u to the fields safe to expose.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:                 u.ID,
		Username:           u.Username,
		Name:               u.Name,
		Role:               u.Role,
		CollaboratorNumber: u.CollaboratorNumber,
	}
}

// IsAdmin reports whether u holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// CollaboratorNumber formats the stable human-readable identifier for id.
func CollaboratorNumber(id int64) string {
	return fmt.Sprintf("COLLAB-%03d", id)
}

// Ad is a single published listing owned by one user.
type Ad struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	WhatsApp    string    `json:"whatsapp"`
	Instagram   string    `json:"instagram"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AdWithOwner annotates an ad with its owner's display data.
type AdWithOwner struct {
	Ad
	UserName           string `json:"userName"`
	CollaboratorNumber string `json:"collaboratorNumber"`
}

// AdInput carries the fields of a new ad.
type AdInput struct {
	Category    string
	Title       string
	Description string
	Image       string
	WhatsApp    string
	Instagram   string
}

// AdPatch is a partial ad update; nil fields are left unchanged.
type AdPatch struct {
	Category    *string
	Title       *string
	Description *string
	Image       *string
	WhatsApp    *string
	Instagram   *string
}

// NewCollaborator carries the fields required to create a collaborator account.
type NewCollaborator struct {
	Username string
	Password string
	Name     string
}

// UserPatch is a partial account update; nil fields are left unchanged.
type UserPatch struct {
	Username *string
	Password *string
	Name     *string
}

// Document is the whole persisted state. Version is backend bookkeeping for
// optimistic concurrency and is not part of the serialized body.
type Document struct {
	Users   []User `json:"users"`
	Ads     []Ad   `json:"ads"`
	Version int64  `json:"-"`
}

// EmptyDocument returns a valid document with no users and no ads.
func EmptyDocument() *Document {
	return &Document{Users: []User{}, Ads: []Ad{}}
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	out := &Document{
		Users:   make([]User, len(d.Users)),
		Ads:     make([]Ad, len(d.Ads)),
		Version: d.Version,
	}
	copy(out.Users, d.Users)
	copy(out.Ads, d.Ads)
	return out
}

// Normalize replaces nil collections with empty ones so the document always
// serializes as {"users":[],"ads":[]}.
func (d *Document) Normalize() {
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.Ads == nil {
		d.Ads = []Ad{}
	}
}

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	ID   int64
	Role Role
}

// Identity is what a session binds to.
type Identity struct {
	UserID             int64  `json:"userId"`
	Username           string `json:"username"`
	Role               Role   `json:"role"`
	CollaboratorNumber string `json:"collaboratorNumber"`
}

// Session is a server-held proof of authentication.
type Session struct {
	Identity
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Actor returns the session's identity as a mutation actor.
func (s Session) Actor() Actor {
	return Actor{ID: s.UserID, Role: s.Role}
}
