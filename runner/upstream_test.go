package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"palinsesto-booker/client"
)

const upstreamPalinsesto = `{"status":2,"parametri":{"lista_risultati":[{"giorni":[
	{"giorno":"2025-10-27","nome_giorno":"Lunedì","orari_giorno":[
		{"id_orario_palinsesto":"77","nome_corso":"Biomechanics","orario_inizio":"20:00","orario_fine":"21:00",
		 "prenotazioni":{"id_disponibilita":"5","numero_posti_disponibili":"3","frase":""}}]}]}]}}`

// fakeUpstream serves the three endpoints. Bookings made with a session in
// failing are answered with 502.
type fakeUpstream struct {
	mu       sync.Mutex
	failing  map[string]bool
	logins   map[string]int
	bookings map[string]int
}

func (u *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	u.mu.Lock()
	defer u.mu.Unlock()
	switch r.URL.Path {
	case client.LoginPath:
		mail := r.PostForm.Get("mail")
		u.logins[mail]++
		w.Write([]byte(`{"status":2,"parametri":{"sessione":{"codice_sessione":"S-` + mail + `"}}}`))
	case client.PalinsestiPath:
		w.Write([]byte(upstreamPalinsesto))
	case client.BookingPath:
		session := r.PostForm.Get("codice_sessione")
		u.bookings[session]++
		if u.failing[session] {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":2,"messaggio":"Prenotazione effettuata"}`))
	default:
		http.NotFound(w, r)
	}
}

func TestServerErrorsForOneUserDoNotBlockTheNext(t *testing.T) {
	up := &fakeUpstream{
		failing:  map[string]bool{"S-mario": true},
		logins:   map[string]int{},
		bookings: map[string]int{},
	}
	srv := httptest.NewServer(up)
	defer srv.Close()

	root := client.NewSafetyManager()
	n := &fakeNotifier{}
	r := &Runner{
		NewAPI: func(user string) API {
			return client.NewAPIClient(client.Options{BaseURL: srv.URL, VenueID: "1", Safety: root.ForUser(5)})
		},
		Notifier:   n,
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
		Sleep:      func(ctx context.Context, d time.Duration) error { return nil },
		RunID:      "run-2",
	}

	s := r.Run(context.Background(), Request{Users: users("mario", "luigi"), Query: exampleQuery, Mode: ModeBook})

	if len(s.Outcomes) != 2 {
		t.Fatalf("expected two outcomes, got %d", len(s.Outcomes))
	}
	mario, luigi := s.Outcomes[0], s.Outcomes[1]
	if mario.Booked || mario.ErrorKind != "retry-exhausted" || mario.Attempts != 5 {
		t.Fatalf("unexpected outcome for mario %+v", mario)
	}
	if up.bookings["S-mario"] != 5 {
		t.Fatalf("expected 5 booking requests for mario, got %d", up.bookings["S-mario"])
	}
	if !luigi.Booked || !luigi.OK {
		t.Fatalf("luigi should still book: %+v", luigi)
	}
	if up.logins["luigi"] != 1 || up.bookings["S-luigi"] != 1 {
		t.Fatalf("luigi requests: logins=%d bookings=%d", up.logins["luigi"], up.bookings["S-luigi"])
	}
	if root.IsTriggered() {
		t.Fatalf("server errors must not trip the shared switch: %s", root.Reason())
	}
}
