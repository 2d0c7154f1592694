package model

const PersonnelRoleSK = "SK Personnel"

type Personnel struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	Username      string `json:"username"`
	ContactNumber string `json:"contact_number"`
	Role          string `json:"role"`
	Location      string `json:"location"`
}

func PersonnelID(p Personnel) int64 {
	return p.ID
}

type PersonnelInput struct {
	FullName      string `json:"full_name"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	ContactNumber string `json:"contact_number"`
	Role          string `json:"role"`
	Location      string `json:"location"`
}

type Driver struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	ContactNumber string `json:"contact_number"`
	PlateNumber   string `json:"plate_number"`
	FranchiseNo   string `json:"franchise_number,omitempty"`
	Operator      string `json:"operator,omitempty"`
	Toda          string `json:"toda,omitempty"`
}

type Commuter struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email,omitempty"`
	Verified      bool   `json:"verified"`
}

type Admin struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type PendingAccount struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

func PendingAccountID(a PendingAccount) int64 {
	return a.ID
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
