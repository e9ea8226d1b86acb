package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"pricewatch/internal/app"
	"pricewatch/internal/domain"
	"pricewatch/internal/retry"
)

type Handlers struct {
	Search  *app.SearchService
	Compare *app.CompareService
	Store   domain.ObservationStore
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/hotels", h.registerHotel)
	s.mux.Get("/v1/hotels", h.listHotels)
	s.mux.Get("/v1/hotels/{key}/history", h.history)
	s.mux.Post("/v1/search", h.search)
	s.mux.Post("/v1/search/batch", h.searchBatch)
	s.mux.Get("/v1/compare", h.compare)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeWithETag(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// searchFailure maps the pipeline error taxonomy onto status codes.
func searchFailure(w http.ResponseWriter, err error) {
	var fe *domain.FetchError
	var ex *retry.ExhaustedError
	switch {
	case errors.Is(err, domain.ErrInvalidDateRange):
		writeProblem(w, http.StatusBadRequest, "Invalid date range", err.Error())
	case errors.Is(err, domain.ErrHotelNotFound):
		writeProblem(w, http.StatusNotFound, "Unknown hotel", err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoNumericValue), errors.Is(err, domain.ErrAmbiguousFormat):
		writeProblem(w, http.StatusUnprocessableEntity, "Extraction failed", err.Error())
	case errors.As(err, &ex), errors.As(err, &fe):
		writeProblem(w, http.StatusBadGateway, "Upstream fetch failed", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

type hotelRequest struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	SearchName  string `json:"search_name"`
}

func (h *Handlers) registerHotel(w http.ResponseWriter, r *http.Request) {
	var req hotelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if req.Key == "" || req.DisplayName == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "key and display_name are required")
		return
	}
	if req.SearchName == "" {
		req.SearchName = req.DisplayName
	}
	hotel := domain.Hotel{Key: req.Key, DisplayName: req.DisplayName, SearchName: req.SearchName}
	if err := h.Store.RegisterHotel(r.Context(), hotel); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Register failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": hotel.Key})
}

type hotelResponse struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	SearchName  string    `json:"search_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *Handlers) listHotels(w http.ResponseWriter, r *http.Request) {
	hotels, err := h.Store.ListHotels(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List failed", err.Error())
		return
	}
	out := make([]hotelResponse, 0, len(hotels))
	for _, ht := range hotels {
		out = append(out, hotelResponse{Key: ht.Key, DisplayName: ht.DisplayName, SearchName: ht.SearchName, CreatedAt: ht.CreatedAt})
	}
	writeWithETag(w, r, out)
}

type searchRequest struct {
	HotelKey  string   `json:"hotel_key"`
	HotelKeys []string `json:"hotel_keys"`
	CheckIn   string   `json:"check_in"`
	CheckOut  string   `json:"check_out"`
	Guests    int      `json:"guests"`
}

func (req *searchRequest) dates(w http.ResponseWriter) (time.Time, time.Time, bool) {
	in, err := parseDate(req.CheckIn)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date range", "check_in must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	out, err := parseDate(req.CheckOut)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date range", "check_out must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	return in, out, true
}

type observationResponse struct {
	HotelID    string    `json:"hotelId"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	CheckIn    string    `json:"checkIn"`
	CheckOut   string    `json:"checkOut"`
	RecordedAt time.Time `json:"recordedAt"`
}

func toObservationResponse(o domain.Observation) observationResponse {
	return observationResponse{
		HotelID:    o.HotelKey,
		Name:       o.Name,
		Price:      o.Price,
		Currency:   o.Currency,
		CheckIn:    o.CheckIn.Format(dateLayout),
		CheckOut:   o.CheckOut.Format(dateLayout),
		RecordedAt: o.RecordedAt,
	}
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if req.HotelKey == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "hotel_key is required")
		return
	}
	in, out, ok := req.dates(w)
	if !ok {
		return
	}
	obs, err := h.Search.Search(r.Context(), req.HotelKey, in, out, req.Guests)
	if err != nil {
		searchFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toObservationResponse(obs))
}

type batchResponse struct {
	Observations []observationResponse `json:"observations"`
	Failures     []batchFailure        `json:"failures"`
}

type batchFailure struct {
	HotelKey string `json:"hotel_key"`
	Error    string `json:"error"`
}

func (h *Handlers) searchBatch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if len(req.HotelKeys) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "hotel_keys is required")
		return
	}
	in, out, ok := req.dates(w)
	if !ok {
		return
	}
	res, err := h.Search.SearchBatch(r.Context(), req.HotelKeys, in, out, req.Guests)
	if err != nil {
		searchFailure(w, err)
		return
	}
	resp := batchResponse{
		Observations: make([]observationResponse, 0, len(res.Observations)),
		Failures:     make([]batchFailure, 0, len(res.Failures)),
	}
	for _, o := range res.Observations {
		resp.Observations = append(resp.Observations, toObservationResponse(o))
	}
	for _, f := range res.Failures {
		resp.Failures = append(resp.Failures, batchFailure{HotelKey: f.HotelKey, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

type rankedResponse struct {
	HotelKey    string     `json:"hotel_key"`
	Name        string     `json:"name"`
	LatestPrice *float64   `json:"latest_price"`
	Currency    string     `json:"currency,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

func (h *Handlers) compare(w http.ResponseWriter, r *http.Request) {
	keys := splitNonEmpty(r.URL.Query().Get("keys"))
	if len(keys) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "keys is required, comma-separated")
		return
	}

	var in, out time.Time
	if ci, co := r.URL.Query().Get("check_in"), r.URL.Query().Get("check_out"); ci != "" || co != "" {
		var err error
		if in, err = parseDate(ci); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid query", "check_in must be YYYY-MM-DD")
			return
		}
		if out, err = parseDate(co); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid query", "check_out must be YYYY-MM-DD")
			return
		}
	}

	ranked, err := h.Compare.Compare(r.Context(), keys, in, out)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Compare failed", err.Error())
		return
	}

	resp := make([]rankedResponse, 0, len(ranked))
	for _, rk := range ranked {
		row := rankedResponse{HotelKey: rk.HotelKey, Name: rk.Name}
		if rk.HasObservation {
			price := rk.LatestPrice
			updated := rk.LastUpdated
			row.LatestPrice = &price
			row.Currency = rk.Currency
			row.LastUpdated = &updated
		}
		resp = append(resp, row)
	}
	writeWithETag(w, r, resp)
}

func (h *Handlers) history(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 500 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = l
	}

	obs, err := h.Compare.History(r.Context(), key, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "History failed", err.Error())
		return
	}
	resp := make([]observationResponse, 0, len(obs))
	for _, o := range obs {
		resp = append(resp, toObservationResponse(o))
	}
	writeWithETag(w, r, resp)
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
