package models

import "time"

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// SubscriptionTier is read from the identity provider's user record.
// Premium tiers bypass the quiz quota entirely.
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierBasic   SubscriptionTier = "basic"
	TierPremium SubscriptionTier = "premium"
)

func (t SubscriptionTier) IsValid() bool {
	switch t {
	case TierFree, TierBasic, TierPremium:
		return true
	}
	return false
}

// User mirrors the identity provider's record. Users are not persisted
// locally; the casdoor repository resolves and caches them.
type User struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	FullName  string           `json:"full_name"`
	Role      UserRole         `json:"role"`
	Tier      SubscriptionTier `json:"tier"`
	Avatar    string           `json:"avatar,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
