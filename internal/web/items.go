package web

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/stockflow/internal/webclient"
)

var (
	errQuantityNotInteger = errors.New("quantity must be a whole number")
	errPriceNotNumber     = errors.New("price must be a number")
)

// CreateItem はフォームから品目を作成してダッシュボードへ戻る。
// POST /items
func (s *Server) CreateItem(w http.ResponseWriter, r *http.Request) {
	state, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	input, err := parseItemForm(r)
	if err != nil {
		s.renderFormError(w, r, "Invalid input: "+err.Error()+".")
		return
	}

	if _, err := state.CreateItem(r.Context(), input); err != nil {
		s.handleAPIError(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// AdjustStock は品目の数量をdelta（±1など）だけ増減する。
// POST /items/{id}/adjust
func (s *Server) AdjustStock(w http.ResponseWriter, r *http.Request) {
	state, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	delta, err := strconv.Atoi(r.PostFormValue("delta"))
	if err != nil || delta == 0 {
		s.renderFormError(w, r, "The stock adjustment must be a non-zero whole number.")
		return
	}

	if _, err := state.AdjustQuantity(r.Context(), chi.URLParam(r, "id"), delta); err != nil {
		s.handleAPIError(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// DeleteItem は品目を削除してダッシュボードへ戻る。
// POST /items/{id}/delete
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	state, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if err := state.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleAPIError(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// requireSession はCookieのトークンで認証状態を確定させる。
// 未認証ならログインページへ、APIに到達できなければエラーページへ遷移してfalseを返す。
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (*webclient.AuthState, bool) {
	state := s.authState(w, r)
	if _, err := state.Resume(r.Context(), r.URL); err != nil {
		s.handleAPIError(w, r, err)
		return nil, false
	}
	if state.State() != webclient.StateAuthenticated {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return nil, false
	}
	return state, true
}

// parseItemForm は品目作成フォームの値をItemInputに変換する。
// 範囲の検証はAPI側で行い、ここでは数値として読めるかだけを確認する。
func parseItemForm(r *http.Request) (webclient.ItemInput, error) {
	quantity, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("quantity")))
	if err != nil {
		return webclient.ItemInput{}, errQuantityNotInteger
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("price")), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return webclient.ItemInput{}, errPriceNotNumber
	}

	input := webclient.ItemInput{
		Name:     r.PostFormValue("name"),
		Quantity: quantity,
		Price:    price,
	}
	if loc := strings.TrimSpace(r.PostFormValue("location_id")); loc != "" {
		input.LocationID = &loc
	}
	return input, nil
}
