/*
Package idemkey enforces idempotency for non-safe HTTP requests using the
Idempotency-Key header described in the
draft-ietf-httpapi-idempotency-key-header RFC draft.

See: https://datatracker.ietf.org/doc/html/draft-ietf-httpapi-idempotency-key-header

A client retrying a request with the same Idempotency-Key receives the
response stored for the first attempt instead of executing the operation
twice. The client is responsible for sending a unique key per logical
operation, recommended values are UUIDs.

Enforcement runs in two middleware stages. The outer stage, installed once
with Enforcer.Middleware, captures the key from the inbound header before
routing and persists qualifying responses after the handler returns. The
routed stage, installed per route with Enforcer.Protect or
Enforcer.ProtectActions, resolves the handler's annotations, rejects enforced
requests without a key, and consults the response store to replay duplicates.
Both stages must be installed: the outer stage panics with a *ConfigError if
a request reaches it without having passed through a routed stage, so a
misconfigured chain fails loudly instead of silently skipping enforcement.
*/
package idemkey
