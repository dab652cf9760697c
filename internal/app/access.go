package app

import "askcampus/internal/model"

// CanManage reports whether user may mutate a resource. Admins manage
// everything; regular users need an explicit manager grant, or to match the
// legacy single-owner field, which is read as a grant rather than kept as a
// second source of truth.
func CanManage(user *model.User, ownerID *uint, managerIDs []uint) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	if ownerID != nil && *ownerID == user.ID {
		return true
	}
	for _, id := range managerIDs {
		if id == user.ID {
			return true
		}
	}
	return false
}

func managerIDs(managers []model.User) []uint {
	ids := make([]uint, 0, len(managers))
	for _, m := range managers {
		ids = append(ids, m.ID)
	}
	return ids
}
