// Package notify delivers short toast notifications to the user.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// Variant selects how prominently a toast is shown.
type Variant string

const (
	Default     Variant = "default"
	Destructive Variant = "destructive"
)

// Toast is a single notification.
type Toast struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier presents toasts.
type Notifier interface {
	Notify(ctx context.Context, t Toast) error
}

// Nop discards every toast.
type Nop struct{}

func (Nop) Notify(context.Context, Toast) error { return nil }

// Func adapts a function to Notifier.
type Func func(ctx context.Context, t Toast) error

func (f Func) Notify(ctx context.Context, t Toast) error { return f(ctx, t) }

// Multi fans a toast out to several notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, t Toast) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logger records toasts in the structured log.
type Logger struct {
	log *zap.Logger
}

// NewLogger returns a Notifier writing to log.
func NewLogger(log *zap.Logger) *Logger {
	return &Logger{log: log.Named("toast")}
}

func (l *Logger) Notify(_ context.Context, t Toast) error {
	fields := []zap.Field{
		zap.String("title", t.Title),
		zap.String("description", t.Description),
		zap.String("variant", string(t.Variant)),
	}
	if t.Variant == Destructive {
		l.log.Warn("toast", fields...)
	} else {
		l.log.Info("toast", fields...)
	}
	return nil
}

var (
	toastStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder())
	toastTitle = lipgloss.NewStyle().Bold(true)
)

// VariantColor maps a variant to its accent colour.
func VariantColor(v Variant) lipgloss.Color {
	if v == Destructive {
		return lipgloss.Color("9")
	}
	return lipgloss.Color("12")
}

// Terminal draws toasts as small bordered boxes.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal returns a Notifier drawing on w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (n *Terminal) Notify(_ context.Context, t Toast) error {
	body := toastTitle.Render(t.Title)
	if desc := strings.TrimSpace(t.Description); desc != "" {
		body += "\n" + desc
	}
	box := toastStyle.BorderForeground(VariantColor(t.Variant)).Render(body)

	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintln(n.w, box)
	return err
}
