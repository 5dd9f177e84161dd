package auth

// roleHierarchy orders the predefined roles from least to most privileged
var roleHierarchy = map[UserRole]int{
	RoleGuest: 0,
	RoleUser:  1,
	RoleAdmin: 2,
}

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	_, ok := roleHierarchy[r]
	return ok
}

// RoleIsAtLeast checks if role meets the minimum required level. Unknown
// roles never satisfy any minimum.
func RoleIsAtLeast(role, minRole UserRole) bool {
	currentLevel, ok := roleHierarchy[role]
	if !ok {
		return false
	}

	minLevel, ok := roleHierarchy[minRole]
	if !ok {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleGuest,
		RoleUser,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}

// ExpandRole returns the role plus every role beneath it in the hierarchy,
// most privileged first. Unknown roles expand to themselves.
func ExpandRole(role UserRole) []string {
	level, ok := roleHierarchy[role]
	if !ok {
		return []string{string(role)}
	}

	expanded := make([]string, 0, level+1)
	for _, r := range []UserRole{RoleAdmin, RoleUser, RoleGuest} {
		if roleHierarchy[r] <= level {
			expanded = append(expanded, string(r))
		}
	}
	return expanded
}

// RoleSet is a plain membership set of role names
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet from a list of role names
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has checks membership of a single role
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// IsAtLeast reports whether any member of the set meets the minimum level
func (s RoleSet) IsAtLeast(minRole UserRole) bool {
	for r := range s {
		if RoleIsAtLeast(UserRole(r), minRole) {
			return true
		}
	}
	return false
}

// List returns the members in hierarchical order, most privileged first.
// Roles outside the hierarchy follow in unspecified order.
func (s RoleSet) List() []string {
	out := make([]string, 0, len(s))
	for _, r := range []UserRole{RoleAdmin, RoleUser, RoleGuest} {
		if s.Has(string(r)) {
			out = append(out, string(r))
		}
	}
	for r := range s {
		if !IsValidRole(UserRole(r)) {
			out = append(out, r)
		}
	}
	return out
}
