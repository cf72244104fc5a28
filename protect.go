package idemkey

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/idemkey/idemkey/storage"
)

// Annotations is the per-handler policy record attached at registration
// time. The zero value carries no markers, which means enforced in the
// default mode and exempt in default-exempt mode.
type Annotations struct {
	// Required opts the handler into enforcement in default-exempt mode.
	Required bool
	// Exempt opts the handler out of enforcement.
	Exempt bool
	// Manual hands the duplicate decision to the handler itself: it always
	// runs, with any previously stored response available through
	// StoredFromContext.
	Manual bool
}

// validate enforces the mutual-exclusion invariant between the markers.
func (a Annotations) validate() error {
	if a.Required && a.Exempt {
		return &ConfigError{Reason: "the Required and Exempt annotations are mutually exclusive"}
	}
	if a.Manual && a.Exempt {
		return &ConfigError{Reason: "the Manual and Exempt annotations are mutually exclusive"}
	}
	return nil
}

// ActionMap maps HTTP methods to the annotations of the action serving them,
// for grouped handlers registered once for several methods. Methods missing
// from the map carry no annotations.
type ActionMap map[string]Annotations

// Protect returns the routed middleware stage for a handler with the given
// annotations. It must sit between Middleware and the handler on every
// route.
func (e *Enforcer) Protect(ann Annotations) func(http.Handler) http.Handler {
	return e.routed(func(r *http.Request) Annotations { return ann })
}

// ProtectActions is Protect for grouped handlers: the request method is
// resolved to its action's annotations before policy lookup.
func (e *Enforcer) ProtectActions(actions ActionMap) func(http.Handler) http.Handler {
	return e.routed(func(r *http.Request) Annotations { return actions[r.Method] })
}

// routed builds the routed enforcement stage. It resolves the handler's
// annotations, requires and encodes the key on enforced requests, and
// consults the store to either short-circuit with a stored response or let
// the handler run.
func (e *Enforcer) routed(resolve func(*http.Request) Annotations) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			st, ok := stateFromContext(r.Context())
			if !ok {
				panic(&ConfigError{
					Reason: "request context carries no enforcement state; " +
						"install Enforcer.Middleware around the router",
				})
			}

			ann := resolve(r)
			if err := ann.validate(); err != nil {
				panic(err)
			}

			st.done = true
			st.manual = ann.Manual
			st.exempt = e.exemptFor(r.Method, ann)

			if st.exempt {
				next.ServeHTTP(w, r)
				return
			}

			if st.key == "" {
				e.log.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Rejecting request without idempotency key")
				http.Error(w, "Idempotency-Key request header is required", http.StatusBadRequest)
				return
			}

			encoded, err := e.encoder.Encode(r, st.key)
			if err != nil {
				e.log.Error().Err(err).Msg("Could not encode idempotency key")
				http.Error(w, "could not encode idempotency key", http.StatusInternalServerError)
				return
			}
			st.encodedKey = encoded

			replay, err := e.decide(r, st)
			if errors.Is(err, errLockTimeout) {
				e.log.Debug().
					Str("key", encoded).
					Str("path", r.URL.Path).
					Msg("Lock wait timed out, rejecting request")
				http.Error(w, "resource locked, retry the request", http.StatusLocked)
				return
			}
			if err != nil {
				e.log.Error().Err(err).Str("key", encoded).Msg("Could not consult response store")
				http.Error(w, "could not consult response store", http.StatusInternalServerError)
				return
			}

			if replay != nil {
				e.replay(w, replay)
				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}

// exemptFor resolves the effective exemption for a request. Safe methods are
// always exempt, overriding any annotation.
func (e *Enforcer) exemptFor(method string, ann Annotations) bool {
	if safeMethods[method] {
		return true
	}
	if e.defaultExempt {
		return ann.Exempt || (!ann.Required && !ann.Manual)
	}
	return ann.Exempt
}

// decide consults the store for the encoded key, holding the single-flight
// lock while doing so if one is configured. It returns the snapshot to
// replay, or nil when the request should proceed to the handler. The lock is
// released before return, so it is never held across handler execution.
func (e *Enforcer) decide(r *http.Request, st *requestState) (*storage.Snapshot, error) {
	if e.lock != nil {
		if err := e.lock.Acquire(r.Context()); err != nil {
			return nil, fmt.Errorf("%w: %v", errLockTimeout, err)
		}
		defer e.lock.Release()
	}

	snap, exists, err := e.store.Retrieve(r.Context(), st.encodedKey)
	if err != nil {
		return nil, err
	}

	st.exists = exists
	st.prior = snap

	// Manual handlers never short-circuit, they get the stored response
	// through the request context instead.
	if !st.manual && exists {
		return snap, nil
	}
	return nil, nil
}

// replay writes a stored snapshot back to the client, overriding the status
// code with the configured conflict code if one is set.
func (e *Enforcer) replay(w http.ResponseWriter, snap *storage.Snapshot) {
	status := snap.StatusCode
	if e.conflictStatus != 0 {
		status = e.conflictStatus
	}
	e.log.Debug().Int("status", status).Msg("Replaying stored response")
	copyHeader(w.Header(), snap.Header)
	w.WriteHeader(status)
	w.Write(snap.Body)
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
