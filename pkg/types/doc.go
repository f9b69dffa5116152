// Package types defines the workspace entity types, the store and tab
// collaborator interfaces, and the standard errors shared by the workspace
// engine packages.
package types
