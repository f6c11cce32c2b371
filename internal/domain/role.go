package domain

import (
	"fmt"
	"slices"
	"strings"
)

// RoleName is one of the fixed roles an account can hold.
type RoleName string

const (
	RoleUser            RoleName = "USER"
	RoleAdmin           RoleName = "ADMIN"
	RolePetOwner        RoleName = "PET_OWNER"
	RoleVeterinarian    RoleName = "VETERINARIAN"
	RoleServiceProvider RoleName = "SERVICE_PROVIDER"
)

// DefaultRole is assigned when registration does not name one.
const DefaultRole = RolePetOwner

// RoleAuthorityPrefix marks role authorities, as opposed to permissions.
const RoleAuthorityPrefix = "ROLE_"

// Permissions granted by roles.
const (
	PermAdminRead   = "admin:read"
	PermAdminUpdate = "admin:update"
	PermAdminCreate = "admin:create"
	PermAdminDelete = "admin:delete"

	PermPetOwnerRead   = "pet_owner:read"
	PermPetOwnerUpdate = "pet_owner:update"
	PermPetOwnerCreate = "pet_owner:create"
	PermPetOwnerDelete = "pet_owner:delete"

	PermVeterinarianRead   = "veterinarian:read"
	PermVeterinarianUpdate = "veterinarian:update"
	PermVeterinarianCreate = "veterinarian:create"
	PermVeterinarianDelete = "veterinarian:delete"

	PermServiceProviderRead   = "service_provider:read"
	PermServiceProviderUpdate = "service_provider:update"
	PermServiceProviderCreate = "service_provider:create"
	PermServiceProviderDelete = "service_provider:delete"
)

var petOwnerPermissions = []string{PermPetOwnerRead, PermPetOwnerUpdate, PermPetOwnerCreate, PermPetOwnerDelete}

var rolePermissions = map[RoleName][]string{
	RoleUser: nil,
	RoleAdmin: append([]string{PermAdminRead, PermAdminUpdate, PermAdminCreate, PermAdminDelete},
		petOwnerPermissions...),
	RolePetOwner:        petOwnerPermissions,
	RoleVeterinarian:    {PermVeterinarianRead, PermVeterinarianUpdate, PermVeterinarianCreate, PermVeterinarianDelete},
	RoleServiceProvider: {PermServiceProviderRead, PermServiceProviderUpdate, PermServiceProviderCreate, PermServiceProviderDelete},
}

// AllRoles lists every role in seeding order.
func AllRoles() []RoleName {
	return []RoleName{RoleUser, RoleAdmin, RolePetOwner, RoleVeterinarian, RoleServiceProvider}
}

// ParseRoleName resolves a role name case-insensitively.
func ParseRoleName(s string) (RoleName, error) {
	name := RoleName(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := rolePermissions[name]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return name, nil
}

// Permissions returns a copy of the permissions granted by the role.
func (r RoleName) Permissions() []string {
	return slices.Clone(rolePermissions[r])
}

// Authority returns the ROLE_-prefixed authority string for the role.
func (r RoleName) Authority() string {
	return RoleAuthorityPrefix + string(r)
}

// Role is a persisted role row with its permission set.
type Role struct {
	ID          int64    `json:"id"`
	Name        RoleName `json:"name"`
	Permissions []string `json:"permissions"`
}

// AuthoritiesFor derives the authority set for roles: every permission of
// every role followed by the ROLE_ authority of each, without duplicates.
func AuthoritiesFor(roles []RoleName) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(a string) {
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}

	for _, r := range roles {
		for _, p := range rolePermissions[r] {
			add(p)
		}
	}
	for _, r := range roles {
		add(r.Authority())
	}
	return out
}

// RoleAuthorities filters authorities down to the ROLE_-prefixed entries.
func RoleAuthorities(authorities []string) []string {
	out := make([]string, 0, len(authorities))
	for _, a := range authorities {
		if strings.HasPrefix(a, RoleAuthorityPrefix) {
			out = append(out, a)
		}
	}
	return out
}
