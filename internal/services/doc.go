// Package services hosts the clients for external generation engines and
// the shared error taxonomy and context plumbing they rely on.
package services
