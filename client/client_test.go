package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const palinsestiJSON = `{
  "status": 2,
  "parametri": {
    "lista_risultati": [{
      "giorni": [
        {"giorno": "2025-10-27", "nome_giorno": "Lunedì", "orari_giorno": [
          {"id_orario_palinsesto": 77, "nome_corso": "Biomechanics", "orario_inizio": "20:00", "orario_fine": "21:00",
           "prenotazioni": {"id_disponibilita": "5", "numero_posti_disponibili": "3", "frase": ""}}
        ]}
      ]
    }]
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*APIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewAPIClient(Options{BaseURL: srv.URL + "/", VenueID: "42", Timeout: 2 * time.Second})
	return c, srv
}

func TestLoginSendsFormAndReturnsSession(t *testing.T) {
	forms := make(chan url.Values, 1)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != LoginPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		r.ParseForm()
		forms <- r.PostForm
		w.Write([]byte(`{"status":2,"parametri":{"sessione":{"codice_sessione":"abc123"}}}`))
	})

	session, err := c.Login(context.Background(), Credentials{Username: "me@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if session != "abc123" {
		t.Fatalf("wrong session %q", session)
	}
	got := <-forms
	want := map[string]string{"mail": "me@example.com", "pass": "secret", "versione": "33", "tipo": "web", "langauge": "it"}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("form field %s = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestLoginRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":1,"messaggio":"Credenziali errate"}`))
	})

	_, err := c.Login(context.Background(), Credentials{Username: "x", Password: "y"})
	var be *BookingError
	if !errors.As(err, &be) || be.Kind != KindApplication || be.Status != 1 {
		t.Fatalf("expected application error with status 1, got %v", err)
	}
	if !strings.Contains(err.Error(), "Credenziali errate") {
		t.Fatalf("upstream message missing: %v", err)
	}
}

func TestFetchPalinsestoDecodesMixedScalars(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("id_sede") != "42" || r.PostForm.Get("codice_sessione") != "abc" || r.PostForm.Get("giorno") != "2025-10-27" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		w.Write([]byte(palinsestiJSON))
	})

	p, err := c.FetchPalinsesto(context.Background(), "abc", "2025-10-27")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(p.Days) != 1 || len(p.Days[0].Slots) != 1 {
		t.Fatalf("unexpected palinsesto %+v", p)
	}
	s := p.Days[0].Slots[0]
	if s.ID != "77" || s.Availability.FreeSeats != 3 || !s.Availability.Bookable() {
		t.Fatalf("unexpected slot %+v", s)
	}
}

func TestFetchPalinsestoEmptyResults(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":2,"parametri":{"lista_risultati":[]}}`))
	})

	_, err := c.FetchPalinsesto(context.Background(), "abc", "2025-10-27")
	if !IsKind(err, KindApplication) {
		t.Fatalf("expected application error, got %v", err)
	}
}

func TestFetchPalinsestoToleratesUnknownSeatCount(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":2,"parametri":{"lista_risultati":[{"giorni":[
			{"giorno":"2025-10-26","nome_giorno":"Domenica","orari_giorno":[
				{"id_orario_palinsesto":"70","nome_corso":"Yoga","orario_inizio":"10:00","orario_fine":"11:00",
				 "prenotazioni":{"id_disponibilita":"1","numero_posti_disponibili":"n/d","frase":""}}]},
			{"giorno":"2025-10-27","nome_giorno":"Lunedì","orari_giorno":[
				{"id_orario_palinsesto":"77","nome_corso":"Biomechanics","orario_inizio":"20:00","orario_fine":"21:00",
				 "prenotazioni":{"id_disponibilita":"5","numero_posti_disponibili":4,"frase":""}}]}]}]}}`))
	})

	p, err := c.FetchPalinsesto(context.Background(), "abc", "2025-10-27")
	if err != nil {
		t.Fatalf("one unreadable seat count must not fail the schedule: %v", err)
	}
	res := ResolveSlot(p, SlotQuery{Date: "2025-10-27", Course: "Biomechanics", Start: "20:00"})
	if res.Outcome != OutcomeBookable || res.Slot.Availability.FreeSeats != 4 {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if p.Days[0].Slots[0].Availability.FreeSeats != 0 {
		t.Fatalf("unreadable seat count should decode as 0")
	}
}

func TestFetchPalinsestoMalformedPayload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":2,"parametri":{"lista_risultati":"nessuno"}}`))
	})

	_, err := c.FetchPalinsesto(context.Background(), "abc", "2025-10-27")
	if !IsKind(err, KindProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestSubmitBooking(t *testing.T) {
	forms := make(chan url.Values, 1)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != BookingPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		r.ParseForm()
		forms <- r.PostForm
		w.Write([]byte(`{"status":"2","messaggio":"Prenotazione effettuata"}`))
	})

	res, err := c.SubmitBooking(context.Background(), "abc", "77", "2025-10-27")
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if res.Status != StatusOK || res.Message != "Prenotazione effettuata" {
		t.Fatalf("unexpected result %+v", res)
	}
	form := <-forms
	if form.Get("id_orario_palinsesto") != "77" || form.Get("id_sede") != "42" {
		t.Fatalf("unexpected form %v", form)
	}
}

func TestPostFormWithoutBaseURL(t *testing.T) {
	c := NewAPIClient(Options{})
	_, err := c.PostForm(context.Background(), "login", LoginPath, url.Values{})
	if !IsKind(err, KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestPostFormProtocolErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><head><title>Manutenzione in corso</title></head><body>...</body></html>`))
		case "/array":
			w.Write([]byte(`[1,2,3]`))
		default:
			http.Error(w, "boom", http.StatusBadGateway)
		}
	})

	_, err := c.PostForm(context.Background(), "test", "/html", nil)
	if !IsKind(err, KindProtocol) || !strings.Contains(err.Error(), "Manutenzione in corso") {
		t.Fatalf("expected protocol error with page title, got %v", err)
	}

	_, err = c.PostForm(context.Background(), "test", "/array", nil)
	if !IsKind(err, KindProtocol) {
		t.Fatalf("expected protocol error for non-object JSON, got %v", err)
	}

	_, err = c.PostForm(context.Background(), "test", "/fail", nil)
	var be *BookingError
	if !errors.As(err, &be) || be.Kind != KindProtocol || be.Status != http.StatusBadGateway {
		t.Fatalf("expected protocol error with HTTP 502, got %v", err)
	}
}

func TestPostFormTransportTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"status":2}`))
	}))
	defer srv.Close()

	c := NewAPIClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.PostForm(context.Background(), "test", "/slow", nil)
	if !IsKind(err, KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSafetySwitchStopsFurtherCalls(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.PostForm(context.Background(), "test", "/x", nil)
	if !IsKind(err, KindProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if !c.Safety().IsTriggered() {
		t.Fatalf("429 should trip the safety switch")
	}

	_, err = c.PostForm(context.Background(), "test", "/x", nil)
	if !errors.Is(err, ErrSafetyTriggered) {
		t.Fatalf("expected safety error, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected 1 upstream call, got %d", n)
	}
}

func TestLooseScalars(t *testing.T) {
	var env Envelope
	if err := env.Messaggio.UnmarshalJSON([]byte(`12`)); err != nil || env.Messaggio != "12" {
		t.Fatalf("number into LooseString: %q %v", env.Messaggio, err)
	}
	if err := env.Status.UnmarshalJSON([]byte(`" 2 "`)); err != nil || env.Status != 2 {
		t.Fatalf("quoted number into LooseInt: %d %v", env.Status, err)
	}
	if err := env.Status.UnmarshalJSON([]byte(`"n/d"`)); err != nil || env.Status != 0 {
		t.Fatalf("non numeric string into LooseInt: %d %v", env.Status, err)
	}
	if err := env.Status.UnmarshalJSON([]byte(`{"n":1}`)); err == nil {
		t.Fatalf("expected error for an object")
	}
	if err := env.DecodeParametri(&struct{}{}); err == nil {
		t.Fatalf("expected error for missing parametri")
	}
}
