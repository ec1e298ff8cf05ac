// Package directorygw defines the capability contract the export
// pipeline depends on to provision and deprovision directory accounts.
// The default HTTP implementation lives in the workspacehttp subpackage.
package directorygw

import "context"

// Gateway is the capability the export pipeline requires from an identity
// directory provider. CreateUser is not idempotent from the provider's
// point of view: a duplicate primary email surfaces as an error.
type Gateway interface {
	CreateUser(ctx context.Context, principal string, user CreateUserParams) error
	DeleteUser(ctx context.Context, principal string, primaryEmail string) error
}

// CreateUserParams is the payload for provisioning one directory account.
type CreateUserParams struct {
	PrimaryEmail               string
	GivenName                  string
	FamilyName                 string
	Password                   string
	ChangePasswordAtNextLogin  bool
	RecoveryEmail              string
	OrgUnitPath                string
}
