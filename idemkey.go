package idemkey

import (
	"net/http"
	"time"

	recorder "github.com/idemkey/idemkey/pkg/response-recorder"
	"github.com/idemkey/idemkey/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Header is the request header carrying the client-supplied idempotency
// token.
const Header = "Idempotency-Key"

// safeMethods are the methods defined as safe by RFC 7231. Requests using
// them carry no side effects and are always exempt from enforcement.
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// defaultStoreStatuses is the success set of response codes stored for
// replay when nothing else is configured.
var defaultStoreStatuses = []int{200, 201, 202, 203, 204, 205, 206, 207}

// defaultLockTimeout bounds how long a request waits for the storage lock
// before being answered with 423 Locked.
const defaultLockTimeout = 100 * time.Millisecond

// Enforcer is the enforcement pipeline. It owns the response store, the key
// encoder and the single-flight lock, and produces the two middleware stages
// that wire enforcement into a router.
type Enforcer struct {
	store          storage.Storage
	encoder        Encoder
	lock           Locker
	lockDisabled   bool
	lockTimeout    time.Duration
	conflictStatus int
	storeStatuses  map[int]bool
	defaultExempt  bool
	log            zerolog.Logger
}

// Option is the signature for functional options configuring an Enforcer.
type Option func(*Enforcer)

// WithEncoder overrides the key encoder.
func WithEncoder(enc Encoder) Option {
	return func(e *Enforcer) {
		e.encoder = enc
	}
}

// WithConflictStatus makes duplicate replays answer with the given status
// code instead of the originally stored one.
func WithConflictStatus(code int) Option {
	return func(e *Enforcer) {
		e.conflictStatus = code
	}
}

// WithStoreStatuses overrides the set of response status codes eligible for
// storage.
func WithStoreStatuses(codes ...int) Option {
	return func(e *Enforcer) {
		e.storeStatuses = make(map[int]bool, len(codes))
		for _, code := range codes {
			e.storeStatuses[code] = true
		}
	}
}

// WithLockTimeout sets how long a request may wait for the storage lock.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Enforcer) {
		e.lockTimeout = d
	}
}

// WithLockDisabled turns off the single-flight lock, trusting the store's
// own atomicity. The retrieve-and-decide step then runs unguarded.
func WithLockDisabled() Option {
	return func(e *Enforcer) {
		e.lockDisabled = true
	}
}

// WithLocker injects a custom lock implementation.
func WithLocker(l Locker) Option {
	return func(e *Enforcer) {
		e.lock = l
	}
}

// WithDefaultExempt switches the enforcer to default-exempt mode: handlers
// are exempt unless they opt in with a Required or Manual annotation. The
// default mode enforces every handler that does not opt out.
func WithDefaultExempt() Option {
	return func(e *Enforcer) {
		e.defaultExempt = true
	}
}

// WithLogger overrides the logger, which defaults to the global zerolog
// logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Enforcer) {
		e.log = logger
	}
}

// New creates an Enforcer persisting responses to the given store.
func New(store storage.Storage, opts ...Option) *Enforcer {
	e := &Enforcer{
		store:       store,
		encoder:     DefaultEncoder{},
		lockTimeout: defaultLockTimeout,
		log:         log.Logger,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	if e.storeStatuses == nil {
		e.storeStatuses = make(map[int]bool, len(defaultStoreStatuses))
		for _, code := range defaultStoreStatuses {
			e.storeStatuses[code] = true
		}
	}
	if e.lock == nil && !e.lockDisabled {
		e.lock = newStoreLock(e.lockTimeout)
	}
	if e.lockDisabled {
		e.lock = nil
	}

	return e
}

// Middleware is the outer enforcement stage, installed once around the whole
// router. Before routing it captures the Idempotency-Key header into the
// request context; after the handler returns it persists the response when
// the routed stage decided the request is enforced and the status code is in
// the storeable set.
func (e *Enforcer) Middleware(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		st := &requestState{
			key: r.Header.Get(Header),
		}
		r = r.WithContext(newStateContext(r.Context(), st))

		rec := recorder.New(w)
		next.ServeHTTP(rec, r)

		// Server-error responses are assumed transient and unsafe to
		// replay: return them as-is, never store them.
		if rec.StatusCode() >= http.StatusInternalServerError {
			return
		}

		if !st.done {
			panic(&ConfigError{
				Reason: "routed stage never ran; every route must go through " +
					"Protect or ProtectActions, otherwise requests bypass " +
					"idempotency enforcement",
			})
		}

		if st.exempt {
			return
		}

		if !safeMethods[r.Method] && e.storeStatuses[rec.StatusCode()] {
			snap := rec.Snapshot()
			if err := e.store.Store(r.Context(), st.encodedKey, snap); err != nil {
				e.log.Error().Err(err).Str("key", st.encodedKey).Msg("Could not store response")
				return
			}
			e.log.Trace().Str("key", st.encodedKey).Int("status", snap.StatusCode).Msg("Stored response")
		}
	}

	return http.HandlerFunc(fn)
}
