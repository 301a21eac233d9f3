// Package driving defines the interfaces through which external actors
// (the CLI today) invoke core services. These are the "driving" ports in
// hexagonal architecture terminology.
//
// AskService and SessionService cover question answering and session
// lifecycle; IngestService covers bringing documents into and out of
// the corpus. Implementations live in internal/core/services.
package driving
