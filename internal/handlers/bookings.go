// ABOUTME: Bookings domain: collects name, date and time range, then reserves a slot
// ABOUTME: Partial answers are kept on the conversation across turns

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clementeaf/ai-assistants/internal/store"
)

var (
	namePattern      = regexp.MustCompile(`\b(?:[Mm]e llamo|[Mm]i nombre es|[Ss]oy|[Mm]y name is)\s+(\p{L}+(?:\s+\p{Lu}\p{L}*)?)`)
	datePattern      = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	timeRangePattern = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\s*(?:-|a|to)\s*([01]?\d|2[0-3]):([0-5]\d)\b`)
)

// Booking is a reservation request.
type Booking struct {
	CustomerName string
	Date         string // YYYY-MM-DD
	Start        string // HH:MM
	End          string // HH:MM
}

// BookingBackend reserves slots. Failures are *Error values.
type BookingBackend interface {
	Reserve(ctx context.Context, b Booking) (string, error)
}

// MemoryBookingBackend rejects overlapping slots on the same date.
type MemoryBookingBackend struct {
	mu     sync.Mutex
	byDate map[string][]Booking
	newID  func() string
}

// NewMemoryBookingBackend creates an empty booking calendar.
func NewMemoryBookingBackend() *MemoryBookingBackend {
	return &MemoryBookingBackend{
		byDate: make(map[string][]Booking),
		newID:  func() string { return "BOOK-" + shortID() },
	}
}

// Reserve stores b unless it overlaps an existing booking.
func (m *MemoryBookingBackend) Reserve(_ context.Context, b Booking) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byDate[b.Date] {
		// HH:MM strings compare chronologically.
		if b.Start < existing.End && existing.Start < b.End {
			return "", newError(KindInvalidInput, "reserve",
				fmt.Errorf("slot %s %s-%s is taken", b.Date, b.Start, b.End))
		}
	}
	m.byDate[b.Date] = append(m.byDate[b.Date], b)
	return m.newID(), nil
}

// shortID returns eight upper-case hex characters.
func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Bookings drives the reservation flow.
type Bookings struct {
	backend BookingBackend
	now     func() time.Time
	logger  *slog.Logger
}

// NewBookings creates the bookings handler.
func NewBookings(backend BookingBackend, logger *slog.Logger) *Bookings {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bookings{backend: backend, now: time.Now, logger: logger.With("component", "bookings")}
}

// Handle implements Handler.
func (b *Bookings) Handle(ctx context.Context, state *store.ConversationState, text string) (Reply, error) {
	if m := namePattern.FindStringSubmatch(text); m != nil {
		state.CustomerName = titleCase(m[1])
	}

	if m := datePattern.FindStringSubmatch(text); m != nil {
		day, err := time.Parse(time.DateOnly, m[1])
		if err != nil {
			return Reply{Text: "Esa fecha no es válida. Usá el formato AAAA-MM-DD."}, nil
		}
		today := b.now().UTC().Truncate(24 * time.Hour)
		if day.Before(today) {
			return Reply{Text: "Esa fecha ya pasó. ¿Qué otro día te sirve? (AAAA-MM-DD)"}, nil
		}
		state.RequestedBookingDate = m[1]
	}

	if m := timeRangePattern.FindStringSubmatch(text); m != nil {
		start := clock(m[1], m[2])
		end := clock(m[3], m[4])
		if end <= start {
			return Reply{Text: "El horario de fin tiene que ser posterior al de inicio."}, nil
		}
		state.RequestedBookingStart = start
		state.RequestedBookingEnd = end
	}

	switch {
	case state.CustomerName == "":
		return Reply{Text: "¡Perfecto! ¿A nombre de quién hago la reserva?"}, nil
	case state.RequestedBookingDate == "":
		return Reply{Text: fmt.Sprintf("Gracias, %s. ¿Para qué fecha? (AAAA-MM-DD)", state.CustomerName)}, nil
	case state.RequestedBookingStart == "" || state.RequestedBookingEnd == "":
		return Reply{Text: fmt.Sprintf("¿En qué horario del %s? Por ejemplo 10:00-11:00.", state.RequestedBookingDate)}, nil
	}

	booking := Booking{
		CustomerName: state.CustomerName,
		Date:         state.RequestedBookingDate,
		Start:        state.RequestedBookingStart,
		End:          state.RequestedBookingEnd,
	}
	id, err := b.backend.Reserve(ctx, booking)
	if err != nil {
		return b.failure(state, err), nil
	}

	state.LastBookingID = id
	state.RequestedBookingDate = ""
	state.RequestedBookingStart = ""
	state.RequestedBookingEnd = ""

	return Reply{
		Text: fmt.Sprintf("Listo, %s: reservé el %s de %s a %s. Tu código es %s.",
			booking.CustomerName, booking.Date, booking.Start, booking.End, id),
		UIHints: map[string]any{"booking_id": id, "date": booking.Date},
	}, nil
}

func (b *Bookings) failure(state *store.ConversationState, err error) Reply {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindInvalidInput {
		// Keep the date, ask for another slot.
		state.RequestedBookingStart = ""
		state.RequestedBookingEnd = ""
		return Reply{Text: fmt.Sprintf("Ese horario ya está ocupado el %s. ¿Probamos otro?", state.RequestedBookingDate)}
	}
	b.logger.Warn("booking backend unavailable", "error", err)
	return Reply{Text: "No pude confirmar la reserva ahora. Guardé tus datos, probá de nuevo en unos minutos."}
}

// clock formats hour and minute captures as zero-padded HH:MM.
func clock(hour, minute string) string {
	h, _ := strconv.Atoi(hour)
	return fmt.Sprintf("%02d:%s", h, minute)
}

func titleCase(name string) string {
	parts := strings.Fields(name)
	for i, p := range parts {
		r := []rune(strings.ToLower(p))
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}
