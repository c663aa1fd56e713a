// Package identity implements the account and session lifecycle for the
// coursekit learning platform backend: registration with decoupled avatar
// ingestion, credential verification, signed JWT sessions, time-bounded
// password reset tokens, and role/subscription based authorization.
//
// The package exposes small interfaces for every external collaborator
// (CredentialStore, ObjectStorage, Mailer) so the HTTP layer and the
// course/payment subsystems can wire their own implementations. Concrete
// adapters live in storage/s3 and mailer/smtp, and cmd/server shows the
// full wiring.
package identity
