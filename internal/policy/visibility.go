// Package policy decides who may see which user-owned content.
package policy

import "socialconnect/internal/models"

// Viewer identifies the requester. The zero value is an anonymous viewer.
type Viewer struct {
	UserID        uint
	Authenticated bool
}

// Anonymous is the viewer of an unauthenticated request.
var Anonymous = Viewer{}

// User returns an authenticated viewer.
func User(id uint) Viewer {
	return Viewer{UserID: id, Authenticated: id != 0}
}

// IsOwner reports whether the viewer owns content authored by ownerID.
func (v Viewer) IsOwner(ownerID uint) bool {
	return v.Authenticated && v.UserID == ownerID
}

// CanView applies the owner's visibility to a viewer. followsOwner is the
// viewer's current follow edge to the owner and is ignored for anonymous viewers.
func CanView(viewer Viewer, ownerID uint, visibility models.Visibility, followsOwner bool) bool {
	if viewer.IsOwner(ownerID) {
		return true
	}
	switch visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityFollowersOnly:
		return viewer.Authenticated && followsOwner
	default:
		// private, and anything unrecognised, is owner-only
		return false
	}
}
