// Package access holds the role/capability table and the gate every
// mutating operation passes through.
package access

import (
	"context"
	"fmt"

	"campuscredits/internal/apperr"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleStudent, RoleStaff, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

type Operation string

const (
	OpSubmit       Operation = "submit"
	OpRegister     Operation = "register"
	OpCancel       Operation = "cancel"
	OpTransfer     Operation = "transfer"
	OpReview       Operation = "review"
	OpMarkAttended Operation = "mark_attended"
	OpAward        Operation = "award"
	OpViewAny      Operation = "view_any"
	// Reserved for reopening terminal decisions; no operation uses it yet.
	OpReverseDecision Operation = "reverse_decision"
	OpManageAccounts  Operation = "manage_accounts"
)

var (
	studentOps = []Operation{OpSubmit, OpRegister, OpCancel, OpTransfer}
	staffOps   = append(append([]Operation{}, studentOps...), OpReview, OpMarkAttended, OpAward, OpViewAny)
	adminOps   = append(append([]Operation{}, staffOps...), OpReverseDecision, OpManageAccounts)
)

var capabilities = map[Role]map[Operation]struct{}{
	RoleStudent: setOf(studentOps),
	RoleStaff:   setOf(staffOps),
	RoleAdmin:   setOf(adminOps),
}

func setOf(ops []Operation) map[Operation]struct{} {
	m := make(map[Operation]struct{}, len(ops))
	for _, op := range ops {
		m[op] = struct{}{}
	}
	return m
}

// Allows reports whether role holds the capability for op.
func Allows(role Role, op Operation) bool {
	_, ok := capabilities[role][op]
	return ok
}

// RoleStore resolves an account's role. Missing accounts are reported as
// apperr.AccountNotFound.
type RoleStore interface {
	RoleOf(ctx context.Context, accountID int64) (role Role, active bool, err error)
}

type Gate struct {
	roles RoleStore
}

func NewGate(roles RoleStore) *Gate {
	return &Gate{roles: roles}
}

func (g *Gate) Authorize(ctx context.Context, accountID int64, op Operation) error {
	role, active, err := g.roles.RoleOf(ctx, accountID)
	if err != nil {
		if apperr.IsKind(err, apperr.AccountNotFound) {
			return apperr.New(apperr.Unauthorized, "account %d may not %s", accountID, op)
		}
		return fmt.Errorf("resolve role: %w", err)
	}
	if !active {
		return apperr.New(apperr.Unauthorized, "account %d is deactivated", accountID)
	}
	if !Allows(role, op) {
		return apperr.New(apperr.Unauthorized, "role %s may not %s", role, op)
	}
	return nil
}
