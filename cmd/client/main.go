package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/iliyamo/authflow/internal/client"
	"github.com/iliyamo/authflow/internal/logging"
)

const usage = `usage: authflow-client [flags] <command>

commands:
  register    create an account (prompts for name, email, password)
  login       log in and store the session
  logout      revoke the token and clear the session
  me          show the current user
  refresh     replace the stored token
  dashboard   call the protected dashboard
  resend      resend the verification mail
  watch       stay logged in while stdin shows activity; log out when idle
`

func main() {
	_ = godotenv.Load()

	defPath, err := client.DefaultStorePath()
	if err != nil {
		defPath = "authflow-session.json"
	}
	apiURL := flag.String("api", envOr("AUTHFLOW_API", "http://localhost:8000/api"), "API base URL")
	sessionPath := flag.String("session", envOr("AUTHFLOW_SESSION", defPath), "session file")
	storeKind := flag.String("store", envOr("AUTHFLOW_STORE", "file"), "session store: file or sqlite")
	idle := flag.Duration("idle", envDur("IDLE_TIMEOUT", client.DefaultIdleWindow), "inactivity window for watch")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage); flag.PrintDefaults() }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	path := *sessionPath
	if *storeKind == "sqlite" && path == defPath {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
	}
	store, closeStore, err := openStore(*storeKind, path)
	if err != nil {
		log.Fatalf("open session store: %v", err)
	}
	defer closeStore()
	auth := client.NewAuth(client.NewAPI(*apiURL, store), store, logger)
	if err := auth.Restore(); err != nil {
		log.Fatalf("restore session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	in := bufio.NewReader(os.Stdin)

	switch cmd := flag.Arg(0); cmd {
	case "register":
		req := client.RegisterRequest{
			Name:  prompt(in, "Name: "),
			Email: prompt(in, "Email: "),
		}
		req.Password = promptSecret(in, "Password: ")
		req.PasswordConfirmation = promptSecret(in, "Confirm password: ")
		msg, err := auth.Register(ctx, req)
		exitOn(err)
		fmt.Println(msg)
	case "login":
		u, err := auth.Login(ctx, prompt(in, "Email: "), promptSecret(in, "Password: "))
		exitOn(err)
		fmt.Printf("Logged in as %s <%s>\n", u.Name, u.Email)
	case "logout":
		exitOn(auth.Logout(ctx))
		fmt.Println("Logged out")
	case "me":
		u, err := auth.Me(ctx)
		exitOn(err)
		fmt.Printf("#%d %s <%s>\n", u.ID, u.Name, u.Email)
	case "refresh":
		exitOn(auth.Refresh(ctx))
		fmt.Println("Token refreshed")
	case "dashboard":
		msg, err := client.NewAPI(*apiURL, store).Dashboard(ctx)
		exitOn(err)
		fmt.Println(msg)
	case "resend":
		msg, err := client.NewAPI(*apiURL, store).ResendVerification(ctx, prompt(in, "Email: "))
		exitOn(err)
		fmt.Println(msg)
	case "watch":
		watch(ctx, auth, in, *idle, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
}

// watch treats every line typed on stdin as a key press and logs out once
// the user has been idle for the window.
func watch(ctx context.Context, auth *client.Auth, in *bufio.Reader, window time.Duration, logger logging.Logger) {
	if !auth.LoggedIn() {
		fmt.Println("Not logged in.")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := client.NewInactivityMonitor(auth, client.RealClock(), window, logger)
	m.OnTimeout = func() {
		fmt.Println("Logged out due to inactivity.")
		cancel()
	}

	events := make(chan client.Event)
	go func() {
		defer close(events)
		for {
			if _, err := in.ReadString('\n'); err != nil {
				return
			}
			select {
			case events <- client.EventKeyPress:
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Printf("Watching for activity; idle timeout %s. Press Enter to stay logged in.\n", window)
	m.Watch(ctx, events)
}

func openStore(kind, path string) (client.Store, func(), error) {
	switch kind {
	case "file":
		return client.NewFileStore(path), func() {}, nil
	case "sqlite":
		s, err := client.OpenSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", kind)
	}
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptSecret(in *bufio.Reader, label string) string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, label)
	}
	fmt.Print(label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return ""
	}
	return string(b)
}

func exitOn(err error) {
	if err == nil {
		return
	}
	var ae *client.APIError
	if errors.As(err, &ae) {
		fmt.Fprintln(os.Stderr, ae.Message)
		for field, msgs := range ae.Errors {
			for _, m := range msgs {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", field, m)
			}
		}
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return d
}
