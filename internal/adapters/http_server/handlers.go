// internal/adapters/http_server/handlers.go
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"stayhub/internal/adapters/observability"
	"stayhub/internal/app"
	"stayhub/internal/domain"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	Bookings *app.BookingService
	Payments *app.PaymentService
	Q        *app.QueryService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ---- request bodies ----

type availabilityRequest struct {
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
}

type createBookingRequest struct {
	PropertyID  string   `json:"propertyId" validate:"required"`
	StartDate   string   `json:"startDate" validate:"required"`
	EndDate     string   `json:"endDate" validate:"required"`
	GuestCount  int      `json:"guestCount" validate:"gte=0"`
	ExtraCharge float64  `json:"extraCharge"`
	TotalPrice  *float64 `json:"totalPrice"`
}

type initializePaymentRequest struct {
	BookingID  string `json:"bookingId" validate:"required"`
	PayerEmail string `json:"payerEmail" validate:"required,email"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON field names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/api", func(r chi.Router) {
		r.Route("/booking", func(r chi.Router) {
			r.Post("/", h.createBooking)
			r.Get("/list", h.listBookings)
			r.Get("/{id}", h.getBooking)
			r.Post("/{propertyId}/check-availability", h.checkAvailability)
		})
		r.Route("/payment", func(r chi.Router) {
			r.Post("/initialize", h.initializePayment)
			r.Get("/verify", h.verifyPayment)
		})
		r.Route("/property", func(r chi.Router) {
			r.Get("/", h.listProperties)
			r.Get("/listProperties", h.listProperties)
			r.Get("/{id}", h.getProperty)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeProblem(w http.ResponseWriter, status int, title, kind, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Kind: kind, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(k domain.Kind) (int, string) {
	switch k {
	case domain.KindInvalidInput:
		return http.StatusBadRequest, "Invalid Input"
	case domain.KindNotFound:
		return http.StatusNotFound, "Not Found"
	case domain.KindConflict:
		return http.StatusConflict, "Conflict"
	case domain.KindUpstream:
		return http.StatusBadGateway, "Upstream Error"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status, title := statusFor(kind)
	detail := err.Error()
	if kind == domain.KindInternal {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
		detail = "internal server error"
	}
	writeProblem(w, status, title, string(kind), detail)
}

// decode reads a JSON body and runs struct validation; failures are InvalidInput.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid("request body is required")
		}
		return domain.Invalid("malformed JSON body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
			}
			return domain.Invalid("%s", strings.Join(msgs, "; "))
		}
		return domain.Invalid("%v", err)
	}
	return nil
}

// ---- bookings ----

func (h *Handlers) checkAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ok, err := h.Bookings.CheckAvailability(r.Context(), chi.URLParam(r, "propertyId"), req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decode(r, &req); err != nil {
		observability.ObserveBooking(string(domain.KindInvalidInput))
		writeError(w, r, err)
		return
	}
	b, err := h.Bookings.CreateBooking(r.Context(), app.CreateBookingInput{
		PropertyID:  req.PropertyID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		GuestCount:  req.GuestCount,
		ExtraCharge: req.ExtraCharge,
		TotalPrice:  req.TotalPrice,
	})
	if err != nil {
		observability.ObserveBooking(string(domain.KindOf(err)))
		writeError(w, r, err)
		return
	}
	observability.ObserveBooking("created")
	writeJSON(w, http.StatusCreated, struct {
		domain.Booking
		Message string `json:"message"`
	}{b, "Booking created successfully"})
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	bv, err := h.Q.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bv)
}

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.ListBookings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- payments ----

func (h *Handlers) initializePayment(w http.ResponseWriter, r *http.Request) {
	var req initializePaymentRequest
	if err := decode(r, &req); err != nil {
		observability.ObservePayment("initialize", string(domain.KindInvalidInput))
		writeError(w, r, err)
		return
	}
	res, err := h.Payments.InitializePayment(r.Context(), req.BookingID, req.PayerEmail)
	if err != nil {
		observability.ObservePayment("initialize", string(domain.KindOf(err)))
		writeError(w, r, err)
		return
	}
	observability.ObservePayment("initialize", "pending")
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	res, err := h.Payments.VerifyPayment(r.Context(), r.URL.Query().Get("reference"))
	if err != nil {
		observability.ObservePayment("verify", string(domain.KindOf(err)))
		writeError(w, r, err)
		return
	}
	if !res.Succeeded {
		observability.ObservePayment("verify", "failed")
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Payment failed", "status": res.Status, "data": res.Details})
		return
	}
	observability.ObservePayment("verify", "paid")
	writeJSON(w, http.StatusOK, map[string]any{"message": "Payment successful", "data": res.Details})
}

// ---- properties (read-only) ----

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	p, err := h.Q.GetProperty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"property": p})
}

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.ListProperties(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
