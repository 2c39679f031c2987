package webclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeAPI はテスト用のAPIサーバー。validに含まれるトークンのみを受け付ける。
type fakeAPI struct {
	mu        sync.Mutex
	valid     map[string]*User
	userCalls int
	revoked   []string
	items     []Item
	failItems int // 0以外の場合、品目一覧がこのステータスを返す
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{valid: map[string]*User{}}
	srv := httptest.NewServer(http.HandlerFunc(api.serveHTTP))
	t.Cleanup(srv.Close)
	return api, srv
}

func (f *fakeAPI) addToken(token string, user *User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid[token] = user
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userCalls
}

func (f *fakeAPI) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/api/user" {
		f.userCalls++
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	user, ok := f.valid[token]
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"UNAUTHENTICATED","message":"Authentication is required."}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/user":
		json.NewEncoder(w).Encode(user)
	case r.URL.Path == "/api/logout":
		delete(f.valid, token)
		f.revoked = append(f.revoked, token)
		w.Write([]byte(`{"message":"Logged out successfully"}`))
	case r.URL.Path == "/api/items" && r.Method == http.MethodGet:
		if f.failItems != 0 {
			w.WriteHeader(f.failItems)
			w.Write([]byte(`{"code":"INTERNAL_ERROR","message":"An internal error occurred."}`))
			return
		}
		q := strings.ToLower(r.URL.Query().Get("q"))
		out := []Item{}
		for _, it := range f.items {
			if strings.Contains(strings.ToLower(it.Name), q) {
				out = append(out, it)
			}
		}
		json.NewEncoder(w).Encode(map[string][]Item{"data": out})
	case r.URL.Path == "/api/items" && r.Method == http.MethodPost:
		var in ItemInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if in.Quantity < 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"code":"VALIDATION_FAILED","message":"quantity must not be negative"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Item{ID: "item-new", Name: in.Name, Quantity: in.Quantity, Price: in.Price, StockLevel: "critical"})
	case r.URL.Path == "/api/items/summary":
		json.NewEncoder(w).Encode(Summary{ItemCount: len(f.items)})
	case strings.HasPrefix(r.URL.Path, "/api/items/"):
		f.serveItem(w, r, strings.TrimPrefix(r.URL.Path, "/api/items/"))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"ITEM_NOT_FOUND","message":"Item not found"}`))
	}
}

// serveItem は/api/items/{id}へのGET・PUT・DELETEを処理する。
func (f *fakeAPI) serveItem(w http.ResponseWriter, r *http.Request, id string) {
	idx := -1
	for i := range f.items {
		if f.items[i].ID == id {
			idx = i
		}
	}
	if idx < 0 {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"ITEM_NOT_FOUND","message":"Item not found"}`))
		return
	}

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(f.items[idx])
	case http.MethodPut:
		var in ItemInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if in.Quantity < 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"code":"VALIDATION_FAILED","message":"quantity must not be negative"}`))
			return
		}
		f.items[idx].Name, f.items[idx].Quantity, f.items[idx].Price = in.Name, in.Quantity, in.Price
		json.NewEncoder(w).Encode(f.items[idx])
	case http.MethodDelete:
		f.items = append(f.items[:idx], f.items[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
