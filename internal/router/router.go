// ABOUTME: Sticky domain router: activation codes, menu replies, stickiness, then classifier
// ABOUTME: Pure decision over conversation state and text; never mutates the state

package router

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/clementeaf/ai-assistants/internal/store"
)

// Reasons recorded on a Decision.
const (
	ReasonAutonomousMode = "autonomous_mode"
	ReasonActivation     = "activation_code"
	ReasonMenu           = "menu"
	ReasonMenuChoice     = "menu_choice"
	ReasonSticky         = "sticky"
	ReasonClassifier     = "classifier"
	ReasonClassifierErr  = "classifier_error"
)

// Decision is the router output for one turn.
type Decision struct {
	Domain Domain
	Reason string
	// Menu is set when the turn must display a menu instead of running a
	// handler. The caller stores it so a numeric reply can be mapped back.
	Menu []Domain
	// ClearMenu asks the caller to drop any stored menu.
	ClearMenu bool
}

// activationNames maps the NAME part of FLOW_<NAME>_INIT / START_<NAME>.
var activationNames = map[string]Domain{
	"BOOKING":    Bookings,
	"BOOKINGS":   Bookings,
	"RESERVAS":   Bookings,
	"TURNOS":     Bookings,
	"PURCHASE":   Purchases,
	"PURCHASES":  Purchases,
	"COMPRAS":    Purchases,
	"ORDERS":     Purchases,
	"PEDIDOS":    Purchases,
	"CLAIM":      Claims,
	"CLAIMS":     Claims,
	"RECLAMOS":   Claims,
	"AUTONOMOUS": Autonomous,
	"AUTONOMO":   Autonomous,
}

const menuCode = "MENU_INIT"

var (
	flowCodePattern  = regexp.MustCompile(`^FLOW_([A-Z]+)_INIT$`)
	startCodePattern = regexp.MustCompile(`^START_([A-Z]+)$`)
	numericPattern   = regexp.MustCompile(`^\d{1,3}$`)
)

// Config configures a Router.
type Config struct {
	// AutonomousMode routes every turn to the autonomous domain.
	AutonomousMode bool
	// Classifier handles free text; nil uses NewKeywordClassifier.
	Classifier Classifier
	Logger     *slog.Logger
}

// Router selects a domain per turn.
type Router struct {
	autonomous bool
	classifier Classifier
	logger     *slog.Logger
}

// New creates a Router.
func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &Router{
		autonomous: cfg.AutonomousMode,
		classifier: classifier,
		logger:     logger.With("component", "router"),
	}
}

// Route decides the domain for text given the conversation so far.
func (r *Router) Route(ctx context.Context, state *store.ConversationState, text string) Decision {
	if r.autonomous {
		return Decision{Domain: Autonomous, Reason: ReasonAutonomousMode}
	}

	if d, ok := activation(text); ok {
		return d
	}

	if d, ok := menuChoice(state, text); ok {
		return d
	}

	current := Parse(state.RoutedDomain)
	if sticky(current, state) {
		return Decision{Domain: current, Reason: ReasonSticky}
	}

	domain, err := r.classifier.Classify(ctx, text)
	if err != nil {
		r.logger.Warn("classifier failed, routing to unknown", "conversation_id", state.ConversationID, "error", err)
		return Decision{Domain: Unknown, Reason: ReasonClassifierErr}
	}
	if !domain.Valid() {
		domain = Unknown
	}
	return Decision{Domain: domain, Reason: ReasonClassifier}
}

// activation recognises MENU_INIT, FLOW_<NAME>_INIT and START_<NAME>.
func activation(text string) (Decision, bool) {
	code := strings.ToUpper(Fold(text))
	if code == "" {
		return Decision{}, false
	}
	if code == menuCode {
		menu := append([]Domain(nil), DefaultMenu...)
		return Decision{Domain: Unknown, Reason: ReasonMenu, Menu: menu}, true
	}

	var name string
	if m := flowCodePattern.FindStringSubmatch(code); m != nil {
		name = m[1]
	} else if m := startCodePattern.FindStringSubmatch(code); m != nil {
		name = m[1]
	} else {
		return Decision{}, false
	}

	d, ok := activationNames[name]
	if !ok {
		return Decision{}, false
	}
	return Decision{Domain: d, Reason: ReasonActivation, ClearMenu: true}, true
}

// menuChoice maps a 1-indexed number onto the stored menu. Out-of-range
// numbers are not a choice and leave the menu in place.
func menuChoice(state *store.ConversationState, text string) (Decision, bool) {
	if len(state.PendingMenu) == 0 {
		return Decision{}, false
	}
	trimmed := strings.TrimSpace(text)
	if !numericPattern.MatchString(trimmed) {
		return Decision{}, false
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 1 || n > len(state.PendingMenu) {
		return Decision{}, false
	}
	return Decision{Domain: Parse(state.PendingMenu[n-1]), Reason: ReasonMenuChoice, ClearMenu: true}, true
}

// sticky reports whether the conversation stays in its current domain.
func sticky(current Domain, state *store.ConversationState) bool {
	switch current {
	case Bookings:
		return state.CustomerName != "" || state.RequestedBookingDate != ""
	case Purchases:
		return state.LastOrderID != "" || state.LastTrackingID != ""
	case Claims:
		return true
	default:
		return false
	}
}

// MenuTags converts a menu to its persisted form.
func MenuTags(menu []Domain) []string {
	out := make([]string, len(menu))
	for i, d := range menu {
		out[i] = string(d)
	}
	return out
}

// RenderMenu formats a menu as numbered lines.
func RenderMenu(menu []Domain) string {
	var b strings.Builder
	for i, d := range menu {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(d.Label())
	}
	return b.String()
}
