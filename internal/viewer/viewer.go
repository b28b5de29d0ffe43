package viewer

import (
	"fmt"
	"strings"
)

// Role identifies what kind of marketplace participant is looking at the catalog.
type Role string

const (
	RoleFarmer Role = "FARMER"
	RoleBuyer  Role = "BUYER"
	RoleAdmin  Role = "ADMIN"
)

// AdminLevel is the jurisdiction scope of an administrator.
type AdminLevel string

const (
	LevelRegional AdminLevel = "REGIONAL"
	LevelCentral  AdminLevel = "CENTRAL"
)

// Viewer is a closed set of variants: Farmer, Buyer and Admin.
// Consumers pattern-match with a type switch.
type Viewer interface {
	Role() Role
	ID() string
	DisplayName() string
	isViewer()
}

// Farmer submits products and appends timeline entries to them.
type Farmer struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
}

func (Farmer) Role() Role { return RoleFarmer }
func (f Farmer) ID() string { return f.UserID }
func (f Farmer) DisplayName() string { return f.Name }
func (Farmer) isViewer() {}

// Buyer browses approved products.
type Buyer struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
}

func (Buyer) Role() Role { return RoleBuyer }
func (b Buyer) ID() string { return b.UserID }
func (b Buyer) DisplayName() string { return b.Name }
func (Buyer) isViewer() {}

// Admin moderates products inside a jurisdiction.
type Admin struct {
	UserID       string     `json:"id"`
	Name         string     `json:"name"`
	Level        AdminLevel `json:"level"`
	AssignedArea string     `json:"assigned_area"`
}

func (Admin) Role() Role { return RoleAdmin }
func (a Admin) ID() string { return a.UserID }
func (a Admin) DisplayName() string { return a.Name }
func (Admin) isViewer() {}

// IsCentral reports whether the admin has unrestricted scope.
func (a Admin) IsCentral() bool { return a.Level == LevelCentral }

// Claims is the flat representation of a viewer carried in tokens and requests.
type Claims struct {
	ID           string `json:"sub"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	AdminLevel   string `json:"admin_level,omitempty"`
	AssignedArea string `json:"assigned_area,omitempty"`
}

// FromClaims builds the viewer variant described by c.
func FromClaims(c Claims) (Viewer, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(c.Role))) {
	case RoleFarmer:
		return Farmer{UserID: c.ID, Name: c.Name}, nil
	case RoleBuyer:
		return Buyer{UserID: c.ID, Name: c.Name}, nil
	case RoleAdmin:
		level := AdminLevel(strings.ToUpper(strings.TrimSpace(c.AdminLevel)))
		switch level {
		case LevelRegional, LevelCentral:
		case "":
			level = LevelRegional
		default:
			return nil, fmt.Errorf("unknown admin level %q", c.AdminLevel)
		}
		return Admin{UserID: c.ID, Name: c.Name, Level: level, AssignedArea: c.AssignedArea}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", c.Role)
	}
}

// ToClaims flattens a viewer.
func ToClaims(v Viewer) Claims {
	c := Claims{ID: v.ID(), Name: v.DisplayName(), Role: string(v.Role())}
	if a, ok := v.(Admin); ok {
		c.AdminLevel = string(a.Level)
		c.AssignedArea = a.AssignedArea
	}
	return c
}
