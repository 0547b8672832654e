package client

import (
	"context"
	"log"
	"net/url"
)

// Upstream endpoints, relative to the configured API_URL.
const (
	LoginPath      = "/loginApp"
	PalinsestiPath = "/palinsesti"
	BookingPath    = "/prenotazione_new"
)

// Login form constants the web client sends.
const (
	clientVersion = "33"
	clientType    = "web"
	clientLang    = "it"
)

// Login authenticates creds and returns the session code used by every
// following call of the same run.
func (c *APIClient) Login(ctx context.Context, creds Credentials) (string, error) {
	data := url.Values{}
	data.Set("mail", creds.Username)
	data.Set("pass", creds.Password)
	data.Set("versione", clientVersion)
	data.Set("tipo", clientType)
	// upstream expects the misspelled key
	data.Set("langauge", clientLang)

	env, err := c.PostForm(ctx, "login", LoginPath, data)
	if err != nil {
		return "", err
	}
	if !env.OK() {
		return "", newStatusError(KindApplication, "login", int(env.Status), "login failed: "+env.Messaggio.String())
	}

	var p loginParametri
	if err := env.DecodeParametri(&p); err != nil {
		return "", newError(KindProtocol, "login", "unexpected login payload", err)
	}
	session := p.Sessione.CodiceSessione.String()
	if session == "" {
		return "", newError(KindProtocol, "login", "login succeeded without a session code", nil)
	}
	log.Printf("✅ Login OK, codice sessione: [%s]", session)
	return session, nil
}

// FetchPalinsesto returns the venue schedule around date for session.
func (c *APIClient) FetchPalinsesto(ctx context.Context, session, date string) (*Palinsesto, error) {
	data := url.Values{}
	data.Set("id_sede", c.venueID)
	data.Set("codice_sessione", session)
	data.Set("giorno", date)

	env, err := c.PostForm(ctx, "palinsesti", PalinsestiPath, data)
	if err != nil {
		return nil, err
	}
	if !env.OK() {
		return nil, newStatusError(KindApplication, "palinsesti", int(env.Status), "schedule fetch failed: "+env.Messaggio.String())
	}

	var p palinsestiParametri
	if err := env.DecodeParametri(&p); err != nil {
		return nil, newError(KindProtocol, "palinsesti", "unexpected palinsesti payload", err)
	}
	if len(p.ListaRisultati) == 0 {
		return nil, newError(KindApplication, "palinsesti", "schedule fetch returned no results", nil)
	}
	pal := p.ListaRisultati[0]
	Debugf("palinsesto for %s: %d days", date, len(pal.Days))
	return &pal, nil
}

// SubmitBooking performs one booking attempt for slotID on date.
func (c *APIClient) SubmitBooking(ctx context.Context, session, slotID, date string) (*BookingResult, error) {
	data := url.Values{}
	data.Set("id_sede", c.venueID)
	data.Set("codice_sessione", session)
	data.Set("id_orario_palinsesto", slotID)
	data.Set("giorno", date)

	env, err := c.PostForm(ctx, "prenotazione", BookingPath, data)
	if err != nil {
		return nil, err
	}
	if !env.OK() {
		return nil, newStatusError(KindApplication, "prenotazione", int(env.Status), env.Messaggio.String())
	}
	return &BookingResult{Status: int(env.Status), Message: env.Messaggio.String()}, nil
}
