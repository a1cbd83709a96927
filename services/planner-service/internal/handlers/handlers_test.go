package handlers_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mobrickeu-cmd/gym-planner/libs/auth"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/handlers"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/memstore"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/policy"
)

const testSecret = "test-secret"

var fixedNow = time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	mux *http.ServeMux
}

func newFixture(t *testing.T, seed ...model.Customer) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	reservations := memstore.NewReservations()
	customers := memstore.NewCustomers(seed...)
	settings := memstore.NewSettings()
	policyManager := policy.NewManager(settings, logger)

	seq := 0
	engine := booking.NewEngine(reservations, customers, policyManager, logger,
		booking.WithClock(func() time.Time { return fixedNow }),
		booking.WithIDGenerator(func() string {
			seq++
			return "res-" + string(rune('0'+seq))
		}),
	)

	trainerHash, err := bcrypt.GenerateFromPassword([]byte("open sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash trainer password: %v", err)
	}

	authHandler := handlers.NewAuthHandler(customers, testSecret, string(trainerHash), time.Hour, logger)
	bookingHandler := handlers.NewBookingHandler(engine, logger)
	customersHandler := handlers.NewCustomersHandler(customers, logger)
	settingsHandler := handlers.NewSettingsHandler(policyManager, logger)

	authMW := handlers.RequireAuth(testSecret)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("GET /api/v1/slots", authMW(http.HandlerFunc(bookingHandler.Slots)))
	mux.Handle("POST /api/v1/book", authMW(http.HandlerFunc(bookingHandler.Book)))
	mux.Handle("GET /api/v1/reservations", authMW(http.HandlerFunc(bookingHandler.Reservations)))
	mux.Handle("DELETE /api/v1/reservations/{id}", authMW(http.HandlerFunc(bookingHandler.DeleteReservation)))
	mux.Handle("GET /api/v1/calendar/{year}/{month}", authMW(http.HandlerFunc(bookingHandler.Calendar)))
	mux.Handle("GET /api/v1/customers", authMW(http.HandlerFunc(customersHandler.List)))
	mux.Handle("POST /api/v1/customers", authMW(http.HandlerFunc(customersHandler.Create)))
	mux.Handle("PATCH /api/v1/customers/{id}", authMW(http.HandlerFunc(customersHandler.Update)))
	mux.Handle("DELETE /api/v1/customers/{id}", authMW(http.HandlerFunc(customersHandler.Delete)))
	mux.Handle("GET /api/v1/settings", authMW(http.HandlerFunc(settingsHandler.Get)))
	mux.Handle("PUT /api/v1/settings", authMW(http.HandlerFunc(settingsHandler.Update)))
	mux.Handle("POST /api/v1/settings/reset", authMW(http.HandlerFunc(settingsHandler.Reset)))

	return &fixture{mux: mux}
}

func tokenFor(t *testing.T, role model.Role, customerID, name string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  customerID,
		Name: name,
		Role: string(role),
		Exp:  time.Now().Add(time.Hour).Unix(),
		Iat:  time.Now().Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestLogin_TrainerAndCustomer(t *testing.T) {
	f := newFixture(t, model.Customer{ID: "c1", Name: "Ana", Sessions: 2})

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"role":"trainer","password":"open sesame"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("trainer login: got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[map[string]any](t, rec)
	if resp["access_token"] == "" || resp["token_type"] != "Bearer" {
		t.Fatalf("unexpected login response: %v", resp)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"role":"trainer","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad trainer password: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"role":"customer","customer_id":"c1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("customer login: got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[map[string]any](t, rec); resp["registered"] != true {
		t.Fatalf("existing customer should log in registered: %v", resp)
	}

	// An id without a profile still gets a token, marked unprovisioned.
	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"role":"customer","customer_id":"ghost"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("new customer login: got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[map[string]any](t, rec); resp["registered"] != false {
		t.Fatalf("new customer should log in unregistered: %v", resp)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"role":"customer"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("customer login without id: got %d", rec.Code)
	}
}

func TestBook_RequiresToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/book", "", `{"date":"2025-06-10","time_slot":"09:00"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/v1/book", "not-a-token", `{}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", rec.Code)
	}
}

func TestBook_CustomerHappyPathAndStatuses(t *testing.T) {
	f := newFixture(t, model.Customer{ID: "c1", Name: "Ana", Sessions: 1})
	token := tokenFor(t, model.RoleCustomer, "c1", "Ana")

	rec := f.do(t, http.MethodPost, "/api/v1/book", token, `{"date":"2025-06-10","time_slot":"09:00","description":"leg day"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: got %d: %s", rec.Code, rec.Body.String())
	}
	view := decodeBody[booking.ReservationView](t, rec)
	if view.CustomerName != "Ana" || view.TimeSlot != "09:00" || view.Redacted {
		t.Fatalf("unexpected view: %+v", view)
	}

	// Default capacity is 1; the same slot now conflicts.
	other := tokenFor(t, model.RoleTrainer, "", "")
	rec = f.do(t, http.MethodPost, "/api/v1/book", other, `{"date":"2025-06-10","time_slot":"09:00"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("full slot: got %d", rec.Code)
	}

	// Ana spent her only session.
	rec = f.do(t, http.MethodPost, "/api/v1/book", token, `{"date":"2025-06-10","time_slot":"10:00"}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("drained balance: got %d", rec.Code)
	}

	ghost := tokenFor(t, model.RoleCustomer, "ghost", "")
	rec = f.do(t, http.MethodPost, "/api/v1/book", ghost, `{"date":"2025-06-10","time_slot":"11:00"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("no profile: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/book", other, `{"date":"2025-05-01","time_slot":"09:00"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("past date: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/book", other, `{"date":"2025-06-10","time_slot":"23:00"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("slot outside window: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/book", other, `{"date":"garbage","time_slot":"09:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("garbage date: got %d", rec.Code)
	}
}

func TestReservations_RedactionPerViewer(t *testing.T) {
	f := newFixture(t,
		model.Customer{ID: "c1", Name: "Ana", Sessions: 5},
		model.Customer{ID: "c2", Name: "Bert", Sessions: 5},
	)
	ana := tokenFor(t, model.RoleCustomer, "c1", "Ana")
	bert := tokenFor(t, model.RoleCustomer, "c2", "Bert")
	trainer := tokenFor(t, model.RoleTrainer, "", "")

	rec := f.do(t, http.MethodPost, "/api/v1/book", ana, `{"date":"2025-06-10","time_slot":"09:00","description":"private"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/reservations?date=2025-06-10", bert, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list as other customer: got %d", rec.Code)
	}
	views := decodeBody[[]booking.ReservationView](t, rec)
	if len(views) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(views))
	}
	if !views[0].Redacted || views[0].CustomerName != booking.RedactedName {
		t.Fatalf("expected redacted view, got %+v", views[0])
	}
	if strings.Contains(rec.Body.String(), "private") || strings.Contains(rec.Body.String(), "Ana") {
		t.Fatalf("redacted body leaks identity: %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/reservations?date=2025-06-10", trainer, "")
	views = decodeBody[[]booking.ReservationView](t, rec)
	if views[0].Redacted || views[0].CustomerName != "Ana" || views[0].Description != "private" {
		t.Fatalf("trainer should see full detail, got %+v", views[0])
	}

	// A customer cannot browse someone else's history.
	rec = f.do(t, http.MethodGet, "/api/v1/reservations?customer_id=c1", bert, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-customer listing: got %d", rec.Code)
	}

	// Without a filter a customer gets their own reservations.
	rec = f.do(t, http.MethodGet, "/api/v1/reservations", ana, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("own listing: got %d", rec.Code)
	}
	views = decodeBody[[]booking.ReservationView](t, rec)
	if len(views) != 1 || views[0].Redacted {
		t.Fatalf("owner should see own detail, got %+v", views)
	}
}

func TestDeleteReservation_TrainerOnly(t *testing.T) {
	f := newFixture(t, model.Customer{ID: "c1", Name: "Ana", Sessions: 5})
	ana := tokenFor(t, model.RoleCustomer, "c1", "Ana")
	trainer := tokenFor(t, model.RoleTrainer, "", "")

	rec := f.do(t, http.MethodPost, "/api/v1/book", ana, `{"date":"2025-06-10","time_slot":"09:00"}`)
	view := decodeBody[booking.ReservationView](t, rec)

	rec = f.do(t, http.MethodDelete, "/api/v1/reservations/"+view.ID, ana, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer delete: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/reservations/"+view.ID, trainer, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("trainer delete: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/reservations?date=2025-06-10", trainer, "")
	views := decodeBody[[]booking.ReservationView](t, rec)
	if len(views) != 0 {
		t.Fatalf("expected empty day after delete, got %+v", views)
	}
}

func TestSlots_Board(t *testing.T) {
	f := newFixture(t)
	trainer := tokenFor(t, model.RoleTrainer, "", "")

	rec := f.do(t, http.MethodPost, "/api/v1/book", trainer, `{"date":"2025-06-10","time_slot":"09:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/slots?date=2025-06-10", trainer, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("slots: got %d", rec.Code)
	}
	board := decodeBody[booking.DayBoard](t, rec)
	if len(board.Slots) != 13 {
		t.Fatalf("default window is 08:00..20:00, expected 13 slots, got %d", len(board.Slots))
	}
	if board.AvailabilityPct != 92 {
		t.Fatalf("one of 13 slots taken, expected 92%%, got %d", board.AvailabilityPct)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/slots", trainer, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing date: got %d", rec.Code)
	}
}

func TestCalendar_MonthGrid(t *testing.T) {
	f := newFixture(t)
	trainer := tokenFor(t, model.RoleTrainer, "", "")

	rec := f.do(t, http.MethodGet, "/api/v1/calendar/2025/6", trainer, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("calendar: got %d: %s", rec.Code, rec.Body.String())
	}
	grid := decodeBody[booking.MonthGrid](t, rec)
	if grid.LeadingBlanks != 6 {
		t.Fatalf("June 2025 starts on Sunday, expected 6 leading blanks, got %d", grid.LeadingBlanks)
	}
	if len(grid.Days) != 30 {
		t.Fatalf("expected 30 days, got %d", len(grid.Days))
	}

	rec = f.do(t, http.MethodGet, "/api/v1/calendar/2031/1", trainer, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("out-of-range month: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/calendar/2025/13", trainer, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("month 13: got %d", rec.Code)
	}
}

// A brand-new customer must be able to go from nothing to a booked slot
// using only the API: unprovisioned login, self-service setup, then book.
func TestSelfServiceBootstrapEndToEnd(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"role":"customer","customer_id":"newbie"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d: %s", rec.Code, rec.Body.String())
	}
	login := decodeBody[map[string]any](t, rec)
	if login["registered"] != false {
		t.Fatalf("expected unregistered login, got %v", login)
	}
	token, _ := login["access_token"].(string)
	if token == "" {
		t.Fatal("login issued no token")
	}

	// No profile yet, so booking is refused.
	rec = f.do(t, http.MethodPost, "/api/v1/book", token, `{"date":"2025-06-10","time_slot":"09:00"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("book before setup: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/customers", token, `{"name":"New Person"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("self setup: got %d: %s", rec.Code, rec.Body.String())
	}
	profile := decodeBody[model.Customer](t, rec)
	if profile.ID != "newbie" || profile.Sessions != 10 {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/book", token, `{"date":"2025-06-10","time_slot":"09:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book after setup: got %d: %s", rec.Code, rec.Body.String())
	}
	view := decodeBody[booking.ReservationView](t, rec)
	if view.CustomerName != "New Person" {
		t.Fatalf("unexpected reservation view: %+v", view)
	}
}

func TestCustomers_CRUDAndSelfService(t *testing.T) {
	f := newFixture(t)
	trainer := tokenFor(t, model.RoleTrainer, "", "")

	rec := f.do(t, http.MethodPost, "/api/v1/customers", trainer, `{"name":"Ana","age":31,"sessions":5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("trainer create: got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[model.Customer](t, rec)
	if created.ID == "" || created.Sessions != 5 {
		t.Fatalf("unexpected created customer: %+v", created)
	}

	// Self-service setup gets the default balance regardless of the body.
	newcomer := tokenFor(t, model.RoleCustomer, "c-new", "Zoe")
	rec = f.do(t, http.MethodPost, "/api/v1/customers", newcomer, `{"name":"Zoe","sessions":99,"premium":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("self-service create: got %d: %s", rec.Code, rec.Body.String())
	}
	self := decodeBody[model.Customer](t, rec)
	if self.ID != "c-new" || self.Sessions != 10 || self.Premium {
		t.Fatalf("self-service defaults not applied: %+v", self)
	}
	rec = f.do(t, http.MethodPost, "/api/v1/customers", newcomer, `{"name":"Zoe"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate self-service create: got %d", rec.Code)
	}

	// Customers cannot grant themselves sessions.
	rec = f.do(t, http.MethodPatch, "/api/v1/customers/c-new", newcomer, `{"sessions":100}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("self session grant: got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPatch, "/api/v1/customers/c-new", newcomer, `{"weight":61.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("self profile update: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPatch, "/api/v1/customers/"+created.ID, trainer, `{"sessions":7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("trainer update: got %d", rec.Code)
	}
	updated := decodeBody[model.Customer](t, rec)
	if updated.Sessions != 7 || updated.Name != "Ana" {
		t.Fatalf("partial update wrong: %+v", updated)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/customers", trainer, "")
	list := decodeBody[[]model.Customer](t, rec)
	if len(list) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(list))
	}

	rec = f.do(t, http.MethodGet, "/api/v1/customers", newcomer, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer listing customers: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/customers/"+created.ID, newcomer, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer deleting customer: got %d", rec.Code)
	}
	rec = f.do(t, http.MethodDelete, "/api/v1/customers/"+created.ID, trainer, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("trainer delete: got %d", rec.Code)
	}
}

func TestSettings_UpdateValidateReset(t *testing.T) {
	f := newFixture(t)
	trainer := tokenFor(t, model.RoleTrainer, "", "")
	customer := tokenFor(t, model.RoleCustomer, "c1", "")

	rec := f.do(t, http.MethodGet, "/api/v1/settings", trainer, "")
	settings := decodeBody[model.TimeRangeSettings](t, rec)
	if settings != model.DefaultTimeRangeSettings() {
		t.Fatalf("expected defaults, got %+v", settings)
	}

	rec = f.do(t, http.MethodPut, "/api/v1/settings", trainer, `{"startHour":6,"endHour":22,"maxReservationsPerSlot":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPut, "/api/v1/settings", trainer, `{"startHour":22,"endHour":6,"maxReservationsPerSlot":1}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("inverted window: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/api/v1/settings", customer, `{"startHour":0,"endHour":23,"maxReservationsPerSlot":9}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer updating settings: got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/settings/reset", trainer, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: got %d", rec.Code)
	}
	settings = decodeBody[model.TimeRangeSettings](t, rec)
	if settings != model.DefaultTimeRangeSettings() {
		t.Fatalf("reset should restore defaults, got %+v", settings)
	}
}
