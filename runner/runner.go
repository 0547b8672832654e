// Package runner drives one booking run: for each user it logs in, fetches
// the palinsesto, resolves the requested slot and, in book mode, books it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"palinsesto-booker/client"
	"palinsesto-booker/notify"
)

// Mode gates whether a run may book.
type Mode string

const (
	ModeRead Mode = "read"
	ModeBook Mode = "book"
)

// ParseMode validates a --mode value.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRead:
		return ModeRead, nil
	case ModeBook:
		return ModeBook, nil
	}
	return "", fmt.Errorf("invalid mode %q (want read or book)", s)
}

// API is the upstream surface one user run needs.
type API interface {
	Login(ctx context.Context, creds client.Credentials) (string, error)
	FetchPalinsesto(ctx context.Context, session, date string) (*client.Palinsesto, error)
	SubmitBooking(ctx context.Context, session, slotID, date string) (*client.BookingResult, error)
}

// Notifier relays status messages to the operator.
type Notifier interface {
	Notify(ctx context.Context, m notify.Message) error
}

// User is one account to run for.
type User struct {
	Name        string
	Credentials client.Credentials
}

// Request describes what to look for and what to do with it.
type Request struct {
	Users []User
	Query client.SlotQuery
	Mode  Mode
	// At, when set, delays the schedule fetch until that instant.
	At time.Time
}

// Runner holds the collaborators of a run.
type Runner struct {
	// NewAPI returns a fresh upstream client for each user.
	NewAPI     func(user string) API
	Notifier   Notifier
	MaxRetries int
	RetryDelay time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
	// WaitUntil blocks until the booking window; nil skips the wait.
	WaitUntil func(ctx context.Context, t time.Time) error
	RunID     string
	Now       func() time.Time
}

// Stages a user run goes through, recorded where it stopped.
const (
	StageLogin   = "login"
	StageWait    = "wait"
	StageFetch   = "palinsesti"
	StageResolve = "resolve"
	StageBook    = "prenotazione"
	StageDone    = "done"
)

// UserOutcome is the result of one user's run.
type UserOutcome struct {
	User       string `json:"user"`
	Stage      string `json:"stage"`
	Resolution string `json:"resolution,omitempty"`
	SlotID     string `json:"slot_id,omitempty"`
	DayLabel   string `json:"day_label,omitempty"`
	FreeSeats  int    `json:"free_seats"`
	Reason     string `json:"reason,omitempty"`
	Booked     bool   `json:"booked"`
	Attempts   int    `json:"attempts"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	OK         bool   `json:"ok"`
}

// Summary is the result of a whole run.
type Summary struct {
	RunID    string        `json:"run_id"`
	Mode     Mode          `json:"mode"`
	Date     string        `json:"giorno"`
	Course   string        `json:"corso"`
	Start    string        `json:"ora_start"`
	End      string        `json:"ora_end,omitempty"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Outcomes []UserOutcome `json:"outcomes"`
}

// OK reports whether every user reached the goal of the run's mode.
func (s Summary) OK() bool {
	for _, o := range s.Outcomes {
		if !o.OK {
			return false
		}
	}
	return len(s.Outcomes) > 0
}

// Run processes req.Users one after another. A failing user never stops the
// following ones.
func (r *Runner) Run(ctx context.Context, req Request) Summary {
	summary := Summary{
		RunID:   r.RunID,
		Mode:    req.Mode,
		Date:    req.Query.Date,
		Course:  req.Query.Course,
		Start:   req.Query.Start,
		End:     req.Query.End,
		Started: r.now(),
	}
	for _, user := range req.Users {
		if ctx.Err() != nil {
			summary.Outcomes = append(summary.Outcomes, UserOutcome{
				User: user.Name, Stage: StageLogin, ErrorKind: "cancelled", Error: ctx.Err().Error(),
			})
			continue
		}
		log.Printf("👤 Utente [%s]: %s in modalità %s", user.Name, req.Query, req.Mode)
		summary.Outcomes = append(summary.Outcomes, r.runUser(ctx, user, req))
	}
	summary.Finished = r.now()
	return summary
}

func (r *Runner) runUser(ctx context.Context, user User, req Request) UserOutcome {
	out := UserOutcome{User: user.Name, Stage: StageLogin}
	api := r.NewAPI(user.Name)

	session, err := api.Login(ctx, user.Credentials)
	if err != nil {
		return r.fail(ctx, out, "Login fallita", err)
	}

	if !req.At.IsZero() && r.WaitUntil != nil {
		out.Stage = StageWait
		log.Printf("⏳ Attesa apertura prenotazioni fino a %s", req.At.Format("15:04:05.000"))
		if err := r.WaitUntil(ctx, req.At); err != nil {
			return r.fail(ctx, out, "Attesa interrotta", err)
		}
	}

	out.Stage = StageFetch
	pal, err := api.FetchPalinsesto(ctx, session, req.Query.Date)
	if err != nil {
		return r.fail(ctx, out, "Recupero palinsesti fallito", err)
	}

	out.Stage = StageResolve
	res := client.ResolveSlot(pal, req.Query)
	out.Resolution = res.Outcome.String()
	if res.Outcome != client.OutcomeNotFound {
		out.SlotID = string(res.Slot.ID)
		out.DayLabel = res.DayLabel
		out.FreeSeats = int(res.Slot.Availability.FreeSeats)
		out.Reason = string(res.Slot.Availability.Reason)
		log.Printf("🔎 Id orario palinsesto: [%s] (%s), posti disponibili: [%d]", out.SlotID, out.DayLabel, out.FreeSeats)
	}

	if req.Mode == ModeRead {
		out.Stage = StageDone
		out.OK = res.Outcome != client.OutcomeNotFound
		level := notify.LevelInfo
		if !out.OK {
			level = notify.LevelWarning
		}
		r.notify(ctx, user.Name, "Verifica disponibilità", readStatus(res), level)
		return out
	}

	if err := res.Err(); err != nil {
		return r.fail(ctx, out, "Corso non prenotabile", err)
	}

	out.Stage = StageBook
	booker := &client.Booker{
		Submitter:  api,
		MaxRetries: r.MaxRetries,
		RetryDelay: r.RetryDelay,
		Sleep:      r.Sleep,
		OnFailure: func(attempt int, err error) {
			out.Attempts = attempt
			r.notify(ctx, user.Name, fmt.Sprintf("Prenotazione fallita (tentativo %d)", attempt), attemptStatus(err), notify.LevelWarning)
		},
	}
	result, err := booker.Book(ctx, session, out.SlotID, req.Query.Date)
	if err != nil {
		return r.fail(ctx, out, "Prenotazione non riuscita", err)
	}

	out.Stage = StageDone
	out.Attempts = result.Attempts
	out.Booked = true
	out.OK = true
	r.notify(ctx, user.Name, "Prenotazione avvenuta con successo",
		fmt.Sprintf("Corso %s il giorno %s dalle %s (tentativo %d)", req.Query.Course, req.Query.Date, req.Query.Start, result.Attempts),
		notify.LevelSuccess)
	return out
}

// fail records err on out and reports it once.
func (r *Runner) fail(ctx context.Context, out UserOutcome, title string, err error) UserOutcome {
	out.Error = err.Error()
	if kind, ok := client.KindOf(err); ok {
		out.ErrorKind = kind.String()
	} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		out.ErrorKind = "cancelled"
	}
	log.Printf("❌ [%s] %s: %v", out.User, title, err)
	if client.IsKind(err, client.KindRetryExhausted) {
		// each attempt was already reported by OnFailure
		return out
	}
	// the run context may already be cancelled; the report should still go out
	r.notify(context.WithoutCancel(ctx), out.User, title, err.Error(), notify.LevelError)
	return out
}

func (r *Runner) notify(ctx context.Context, user, title, status string, level notify.Level) {
	if r.Notifier == nil {
		return
	}
	err := r.Notifier.Notify(ctx, notify.Message{
		Title:  title,
		User:   user,
		RunID:  r.RunID,
		Status: status,
		Level:  level,
		Time:   r.now(),
	})
	if err != nil {
		log.Printf("⚠️ notification failed: %v", err)
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func readStatus(res client.Resolution) string {
	switch res.Outcome {
	case client.OutcomeBookable:
		return fmt.Sprintf("%s: prenotabile, id %s, posti disponibili %d", res.Query, res.Slot.ID, res.Slot.Availability.FreeSeats)
	case client.OutcomeNotBookable:
		return fmt.Sprintf("%s: non prenotabile, id %s: %s", res.Query, res.Slot.ID, res.Slot.Availability.Reason)
	}
	return fmt.Sprintf("%s: corso non trovato nel palinsesto", res.Query)
}

func attemptStatus(err error) string {
	var be *client.BookingError
	if errors.As(err, &be) && be.Status != 0 {
		return fmt.Sprintf("stato: [%d] messaggio: [%s]", be.Status, be.Message)
	}
	return err.Error()
}
