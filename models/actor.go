package models

// Actor is the identity performing an operation, as resolved by the
// authentication layer.
type Actor struct {
	ID      int64
	IsStaff bool
}

// CanModify reports whether the actor is the author or a staff member.
func (a Actor) CanModify(authorID int64) bool {
	return a.IsStaff || a.ID == authorID
}
