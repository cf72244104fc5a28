package idemkey

import "errors"

// ConfigError reports an integration defect: mutually exclusive handler
// annotations, or a request that reached the post-handler stage without the
// routed stage ever running. It is raised as a panic so that a broken
// middleware chain aborts the request with a diagnostic instead of leaving
// handlers unprotected.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "idemkey: " + e.Reason
}

// errLockTimeout signals that the single-flight lock could not be acquired
// within the configured timeout. The request is answered with 423 Locked.
var errLockTimeout = errors.New("timed out waiting for storage lock")
