// mockapi is the local development stand-in for the remote cart
// endpoint: GET /api/cart returns the last posted cart for a session,
// defaulting to an empty one, and POST echoes the body back. No
// persistence, no auth; not production logic.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"sync"
)

type cartStore struct {
	mu    sync.Mutex
	carts map[string][]byte
}

func (s *cartStore) handleCart(w http.ResponseWriter, r *http.Request) {
	cartID := r.URL.Query().Get("cart_id")
	if cartID == "" {
		cartID = "guest"
	}
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		body, ok := s.carts[cartID]
		s.mu.Unlock()
		if !ok {
			w.Write([]byte(`{"items":[]}`))
			return
		}
		w.Write(body)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil || !json.Valid(body) {
			http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.carts[cartID] = body
		s.mu.Unlock()
		w.Write(body)

	default:
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

func main() {
	addr := flag.String("addr", ":3001", "listen address")
	flag.Parse()

	store := &cartStore{carts: make(map[string][]byte)}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/cart", store.handleCart)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	log.Printf("mock cart API listening on %s", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatalf("mock cart API: %v", err)
	}
}
