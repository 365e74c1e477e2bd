package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleCustomer   UserRole = "CUSTOMER"
	RoleStudio     UserRole = "STUDIO"
	RoleLab        UserRole = "LAB"
	RoleAdmin      UserRole = "ADMIN"
	RoleSuperAdmin UserRole = "SUPERADMIN"
)

// numeric role codes issued by the account service.
var roleCodes = []UserRole{RoleCustomer, RoleStudio, RoleLab, RoleAdmin, RoleSuperAdmin}

// MediaWriterRoles may create, replace and delete media collections.
var MediaWriterRoles = []UserRole{RoleStudio, RoleLab, RoleAdmin, RoleSuperAdmin}

// UnmarshalJSON accepts either the role name or its numeric code.
func (r *UserRole) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if code, err := strconv.Atoi(s); err == nil {
			return r.fromCode(code)
		}
		*r = UserRole(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "")))
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("invalid role: %w", err)
	}
	return r.fromCode(code)
}

func (r *UserRole) fromCode(code int) error {
	if code < 0 || code >= len(roleCodes) {
		return fmt.Errorf("invalid role code %d", code)
	}
	*r = roleCodes[code]
	return nil
}

// AccountID identifies an account. Tokens may carry it as a JSON number or string.
type AccountID string

// UnmarshalJSON accepts numbers and strings.
func (a *AccountID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AccountID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid account id: %w", err)
	}
	*a = AccountID(n.String())
	return nil
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
