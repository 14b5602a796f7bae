// Package permission holds the role predicates shared by handlers.
package permission

// IsOwnerOrAdmin reports whether role carries moderation rights.
func IsOwnerOrAdmin(role string) bool {
	return role == "owner" || role == "admin"
}

// CanEditPost reports whether a user may edit or delete a post.
func CanEditPost(userID, role, postAuthorID string) bool {
	return userID == postAuthorID || IsOwnerOrAdmin(role)
}

// CanDeleteComment reports whether a user may delete a comment.
func CanDeleteComment(userID, role, commentAuthorID string) bool {
	return userID == commentAuthorID || IsOwnerOrAdmin(role)
}

// CanRemoveMember reports whether a user may remove another member from the
// family space. Owners cannot be removed and nobody removes themselves.
func CanRemoveMember(userID, role, targetUserID, targetRole string) bool {
	if !IsOwnerOrAdmin(role) {
		return false
	}
	if targetUserID == userID {
		return false
	}
	return targetRole != "owner"
}
