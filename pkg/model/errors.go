package model

import "errors"

var (
	// ErrConnection is returned when the transport-level connect to the database fails
	ErrConnection = errors.New("connection failed")
	// ErrPermissionDenied is returned when a reachability probe is rejected for lack of authorization
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAccess is returned for reachability failures that are not authorization failures
	ErrAccess = errors.New("resource not accessible")
	// ErrNotFound is returned when the target collection does not exist
	ErrNotFound = errors.New("collection not found")
	// ErrConfig is returned when a watch configuration is malformed
	ErrConfig = errors.New("invalid configuration")
)
