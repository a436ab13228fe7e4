package utils

import (
	"fmt"
	"slices"

	"studydeck/models"

	"github.com/bwmarrin/discordgo"
)

// Auth decides whether a Discord member counts as forum staff.
type Auth struct {
	config models.AuthConfig
}

// NewAuth creates a new Auth instance from the commands.auth section.
func NewAuth(config models.AuthConfig) *Auth {
	return &Auth{config: config}
}

// IsDeveloper checks if a user is a developer.
func (a *Auth) IsDeveloper(userID string) bool {
	return slices.Contains(a.config.Developers, userID)
}

// IsAdmin checks if a member has an admin role.
func (a *Auth) IsAdmin(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	for _, adminRoleID := range a.config.AdminsRoles {
		if slices.Contains(member.Roles, adminRoleID) {
			return true
		}
	}
	return false
}

// Actor resolves the forum identity behind an interaction. Only members
// listed in staff_users can act on the forum; being a developer or holding
// an admin role grants the staff flag.
func (a *Auth) Actor(member *discordgo.Member) (models.Actor, error) {
	if member == nil || member.User == nil {
		return models.Actor{}, fmt.Errorf("%w: interaction has no member", models.ErrForbidden)
	}
	forumID, ok := a.config.StaffUsers[member.User.ID]
	if !ok {
		return models.Actor{}, fmt.Errorf("%w: discord user %s is not linked to a forum account", models.ErrForbidden, member.User.ID)
	}
	return models.Actor{
		ID:      forumID,
		IsStaff: a.IsDeveloper(member.User.ID) || a.IsAdmin(member),
	}, nil
}
