package main

import (
	"bufio"
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BrandonDHaskell/kioskauth/internal/client"
	"github.com/BrandonDHaskell/kioskauth/internal/config"
	"github.com/BrandonDHaskell/kioskauth/internal/httpx"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
	"github.com/BrandonDHaskell/kioskauth/internal/session"
)

// logNotifier reports session outcomes on the terminal.
type logNotifier struct {
	logger *log.Logger
}

func (n logNotifier) LoggedIn(u session.User) {
	n.logger.Printf("unlocked: %s %s (%s)", u.FirstName, u.LastName, u.Role)
}

func (n logNotifier) LoggedOut(u session.User, reason string) {
	n.logger.Printf("locked: %s signed out (%s)", u.FirstName, reason)
}

func (n logNotifier) UnknownTag(ev types.TagEvent) {
	n.logger.Printf("unknown tag %s on %s", ev.UID, ev.Device)
}

func (n logNotifier) InactiveUser(ev types.TagEvent) {
	name := ev.UID
	if ev.Member != nil {
		name = ev.Member.FirstName + " " + ev.Member.LastName
	}
	n.logger.Printf("inactive member %s", name)
}

func (n logNotifier) TagForAssignment(ev types.TagEvent) {
	n.logger.Printf("tag %s ready for assignment", ev.UID)
}

// statusHandler forwards to the session machine and logs connection changes.
type statusHandler struct {
	*session.Machine
	logger *log.Logger
}

func (h statusHandler) OnStatus(s client.Status) {
	h.logger.Printf("connection %s", s)
	h.Machine.OnStatus(s)
}

func main() {
	logger := log.New(os.Stdout, "kiosk-client ", log.LstdFlags|log.LUTC)

	cfg, err := config.ClientFromEnv()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	headers := httpx.NewHeaderInjector(nil, cfg.SourceName, cfg.DeviceID)

	machine := session.NewMachine(session.Dependencies{
		Notifier: logNotifier{logger: logger},
		Auditor:  client.NewLogoutAuditor(headers.Client(), cfg.APIURL),
		Identity: headers,
		Logger:   logger,
	})

	mgr := client.NewManager(client.Config{URL: cfg.WSURL, Backoff: client.DefaultBackoff()},
		client.WebSocketDialer{}, statusHandler{Machine: machine, logger: logger}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr.Connect()
	go commands(machine, logger, stop)

	<-ctx.Done()
	mgr.Disconnect()
	machine.Wait()
}

// commands reads operator commands from stdin.
func commands(m *session.Machine, logger *log.Logger, quit func()) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "logout":
			m.Logout(session.ReasonUserInitiated)
		case "assign on":
			m.SetTagAssignmentMode(true)
		case "assign off":
			m.SetTagAssignmentMode(false)
		case "status":
			st := m.State()
			role := "-"
			if st.User != nil {
				role = string(st.User.Role)
			}
			logger.Printf("locked=%t role=%s reader=%s connection=%s assign=%t",
				st.Locked, role, st.ReaderStatus, st.Connection, st.TagAssignmentMode)
		case "quit", "exit":
			quit()
			return
		case "":
		default:
			logger.Printf("commands: logout, assign on, assign off, status, quit")
		}
	}
}
