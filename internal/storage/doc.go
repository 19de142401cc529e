// Package storage declares persistence interfaces and record shapes shared
// by the canon retriever, the generation pipeline, and the forge service.
//
// Implementations live in subpackages; sqlite is the only one today.
package storage
