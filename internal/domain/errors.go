package domain

import "errors"

// Sentinel errors shared across gateway implementations and pipelines,
// matching the error taxonomy's semantic kinds rather than any one
// provider's wire format.
var (
	// ErrSchemaInvalid is returned by SourceGateway.ValidateSchema when the
	// base does not expose the expected tables and fields.
	ErrSchemaInvalid = errors.New("domain: source schema invalid")

	// ErrSourceNotFound is returned when a base id does not exist upstream.
	ErrSourceNotFound = errors.New("domain: source base not found")

	// ErrSourceUnauthorized is returned when the configured credential is
	// rejected by the tabular source.
	ErrSourceUnauthorized = errors.New("domain: source unauthorized")

	// ErrSourceTransport wraps a transport-fatal failure talking to the
	// tabular source, after retries have been exhausted.
	ErrSourceTransport = errors.New("domain: source transport failure")

	// ErrSourceDecode wraps a failure to decode a single record's raw
	// shape; callers drop the record and continue.
	ErrSourceDecode = errors.New("domain: source record decode failure")

	// ErrDirectoryConflict is returned by DirectoryGateway.CreateUser when
	// the new user's primary email already exists at the directory.
	ErrDirectoryConflict = errors.New("domain: directory user already exists")

	// ErrDirectoryNotFound is returned by DirectoryGateway.DeleteUser when
	// the target user does not exist (already deleted, or never created).
	ErrDirectoryNotFound = errors.New("domain: directory user not found")

	// ErrDirectoryTransport wraps a transport-fatal failure talking to the
	// directory provider.
	ErrDirectoryTransport = errors.New("domain: directory transport failure")

	// ErrStorageConflict wraps a unique or foreign-key violation surfaced
	// by StorageGateway.
	ErrStorageConflict = errors.New("domain: storage conflict")

	// ErrVolunteerAlreadyExported names the case of an export request
	// that includes a volunteer already present in the ledger while
	// skip_users_on_conflict is false. No function returns it: the export
	// preflight reports that case with exportpipeline.ErrConflict.
	ErrVolunteerAlreadyExported = errors.New("domain: volunteer already exported")

	// ErrJobNotFound is returned when a job id does not resolve to a row.
	ErrJobNotFound = errors.New("domain: job not found")

	// ErrJobTerminal names a job already in a terminal status. No function
	// returns it: a status write to a terminal job, Cancel included, is a
	// silent no-op that returns nil.
	ErrJobTerminal = errors.New("domain: job already in a terminal status")

	// ErrCancelled signals that a pipeline observed a cancellation signal.
	ErrCancelled = errors.New("domain: job cancelled")

	// ErrTimeout signals that a pipeline's hard deadline elapsed.
	ErrTimeout = errors.New("domain: job deadline exceeded")
)
