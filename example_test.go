package idemkey_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/idemkey/idemkey"
	"github.com/idemkey/idemkey/storage"

	"github.com/go-chi/chi/v5"
)

func Example() {
	enf := idemkey.New(storage.NewMemory(),
		idemkey.WithConflictStatus(http.StatusConflict))

	r := chi.NewRouter()
	r.Use(enf.Middleware)
	r.With(enf.Protect(idemkey.Annotations{})).Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	// the client retries with the same Idempotency-Key
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/orders", nil)
		req.Header.Set(idemkey.Header, "b2ab44c6-ed51-4453-ab00-90779453f2b3")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		fmt.Println(rec.Code)
	}
	// Output:
	// 201
	// 409
}
