package model

type Role string

const (
	RoleCommuter  Role = "commuter"
	RoleAdmin     Role = "admin"
	RolePersonnel Role = "personnel"
)

func (r Role) Valid() bool {
	return r == RoleCommuter || r == RoleAdmin || r == RolePersonnel
}

// Identity is the single principal held by a browser session. Exactly one of
// the role payloads is set, matching Role.
type Identity struct {
	Role      Role       `json:"role"`
	Commuter  *Commuter  `json:"commuter,omitempty"`
	Admin     *Admin     `json:"admin,omitempty"`
	Personnel *Personnel `json:"personnel,omitempty"`
}

func CommuterIdentity(c Commuter) Identity {
	return Identity{Role: RoleCommuter, Commuter: &c}
}

func AdminIdentity(a Admin) Identity {
	return Identity{Role: RoleAdmin, Admin: &a}
}

func PersonnelIdentity(p Personnel) Identity {
	return Identity{Role: RolePersonnel, Personnel: &p}
}

func (i Identity) IsCommuter() bool {
	return i.Role == RoleCommuter && i.Commuter != nil
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin && i.Admin != nil
}

func (i Identity) IsPersonnel() bool {
	return i.Role == RolePersonnel && i.Personnel != nil
}

func (i Identity) ID() int64 {
	switch {
	case i.IsCommuter():
		return i.Commuter.ID
	case i.IsAdmin():
		return i.Admin.ID
	case i.IsPersonnel():
		return i.Personnel.ID
	default:
		return 0
	}
}

func (i Identity) DisplayName() string {
	switch {
	case i.IsCommuter():
		return i.Commuter.Name
	case i.IsAdmin():
		if i.Admin.FullName != "" {
			return i.Admin.FullName
		}
		return i.Admin.Username
	case i.IsPersonnel():
		return i.Personnel.FullName
	default:
		return ""
	}
}

func (i Identity) Ref() PersonnelRef {
	return PersonnelRef{ID: i.ID(), Name: i.DisplayName()}
}
