package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"palinsesto-booker/client"
	"palinsesto-booker/config"
	"palinsesto-booker/notify"
	"palinsesto-booker/runner"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// userList collects --users given either comma separated or repeated.
type userList []string

func (u *userList) String() string {
	return strings.Join(*u, ",")
}

func (u *userList) Set(value string) error {
	for _, name := range strings.Split(value, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*u = append(*u, name)
		}
	}
	return nil
}

type options struct {
	date    string
	start   string
	end     string
	course  string
	mode    string
	at      string
	users   userList
	jsonOut bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("palinsesto-booker", flag.ContinueOnError)
	fs.StringVar(&opts.date, "giorno", "", "class date, YYYY-MM-DD (required)")
	fs.StringVar(&opts.start, "ora_start", "", "class start time, HH:MM (required)")
	fs.StringVar(&opts.end, "ora_end", "", "class end time, HH:MM (also matched when set)")
	fs.StringVar(&opts.course, "corso", "", "course name (required)")
	fs.StringVar(&opts.mode, "mode", string(runner.ModeRead), "read (report only) or book")
	fs.StringVar(&opts.at, "at", "", "wait until this local time (HH:MM[:SS]) before reading the palinsesto")
	fs.Var(&opts.users, "users", "users to run for, comma separated (default: USERNAME/PASSWORD)")
	fs.BoolVar(&opts.jsonOut, "json", false, "print the run summary as a JSON line")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.date == "" || opts.start == "" || opts.course == "" {
		return opts, errors.New("--giorno, --ora_start and --corso are required")
	}
	if _, err := time.Parse(dateLayout, opts.date); err != nil {
		return opts, fmt.Errorf("invalid --giorno %q: want YYYY-MM-DD", opts.date)
	}
	if _, err := time.Parse(timeLayout, opts.start); err != nil {
		return opts, fmt.Errorf("invalid --ora_start %q: want HH:MM", opts.start)
	}
	if opts.end != "" {
		if _, err := time.Parse(timeLayout, opts.end); err != nil {
			return opts, fmt.Errorf("invalid --ora_end %q: want HH:MM", opts.end)
		}
	}
	return opts, nil
}

// parseAt returns the instant of an HH:MM[:SS] value on now's day.
func parseAt(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"15:04:05", timeLayout} {
		t, err := time.ParseInLocation(layout, value, now.Location())
		if err == nil {
			return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location()), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --at %q: want HH:MM or HH:MM:SS", value)
}

func buildRequest(cfg *config.Config, opts options) (runner.Request, error) {
	mode, err := runner.ParseMode(opts.mode)
	if err != nil {
		return runner.Request{}, err
	}
	if !cfg.HasCourse(opts.course) {
		return runner.Request{}, fmt.Errorf("unknown --corso %q (known: %s)", opts.course, strings.Join(cfg.Courses, ", "))
	}
	if cfg.MatchEndTime && opts.end == "" {
		return runner.Request{}, errors.New("MATCH_END_TIME is set: --ora_end is required")
	}
	at, err := parseAt(opts.at, time.Now())
	if err != nil {
		return runner.Request{}, err
	}

	var users []runner.User
	if len(opts.users) == 0 {
		if cfg.Default == nil {
			return runner.Request{}, fmt.Errorf("no --users given and USERNAME is not set (configured users: %s)", strings.Join(cfg.UserNames(), ", "))
		}
		users = append(users, runner.User{Name: cfg.Default.Username, Credentials: *cfg.Default})
	}
	for _, name := range opts.users {
		creds, err := cfg.CredentialsFor(name)
		if err != nil {
			return runner.Request{}, err
		}
		users = append(users, runner.User{Name: name, Credentials: creds})
	}

	return runner.Request{
		Users: users,
		Query: client.SlotQuery{
			Date:     opts.date,
			Course:   opts.course,
			Start:    opts.start,
			End:      opts.end,
			MatchEnd: opts.end != "",
		},
		Mode: mode,
		At:   at,
	}, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		log.Printf("❌ %v", err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("❌ config error: %v", err)
		return 2
	}
	client.SetDebug(cfg.LogLevel == "debug")

	req, err := buildRequest(cfg, opts)
	if err != nil {
		log.Printf("❌ %v", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	proxies := client.NewProxyManager(cfg.ProxyURLs)
	proxies.Shuffle()
	fingerprint := client.NewFingerprintManager(cfg.UserAgents)
	safety := client.NewSafetyManager()
	scheduler := client.NewScheduler()

	client.Debugf("run %s: api=%s sede=%s retries=%d delay=%s timeout=%s proxies=%d utls=%v",
		runID, cfg.APIURL, cfg.VenueID, cfg.MaxRetries, cfg.RetryDelay, cfg.HTTPTimeout, proxies.Len(), cfg.FingerprintTLS)

	r := &runner.Runner{
		NewAPI: func(user string) runner.API {
			proxyURL := proxies.Next()
			log.Printf("🌐 [%s] network: %s", user, client.Describe(proxyURL))
			return client.NewAPIClient(client.Options{
				BaseURL:        cfg.APIURL,
				VenueID:        cfg.VenueID,
				Timeout:        cfg.HTTPTimeout,
				ProxyURL:       proxyURL,
				FingerprintTLS: cfg.FingerprintTLS,
				Fingerprint:    fingerprint,
				Safety:         safety.ForUser(cfg.MaxRetries),
			})
		},
		Notifier:   notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID),
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		WaitUntil: func(ctx context.Context, t time.Time) error {
			drift, err := scheduler.SleepUntil(ctx, t)
			if err != nil {
				return err
			}
			scheduler.LogDrift(drift)
			return nil
		},
		RunID: runID,
	}

	summary := r.Run(ctx, req)
	if opts.jsonOut {
		if err := runner.WriteJSON(os.Stdout, summary); err != nil {
			log.Printf("⚠️ failed to write JSON summary: %v", err)
		}
	} else {
		runner.PrintSummary(os.Stdout, summary)
	}

	if !summary.OK() {
		return 1
	}
	return 0
}
