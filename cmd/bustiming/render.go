package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"bustiming.sgbus.dev/internal/controller"
)

// textRenderer prints controller output as plain text. Background refreshes
// write through it too, so every method holds mu.
type textRenderer struct {
	mu    sync.Mutex
	out   io.Writer
	theme string
	// quiet suppresses the favorites panel for commands that don't ask for it.
	quiet bool
}

func newTextRenderer(out io.Writer) *textRenderer {
	return &textRenderer{out: out}
}

func (r *textRenderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *textRenderer) ShowLoading() {}

func (r *textRenderer) HideSections() {}

func (r *textRenderer) ShowError(message string) {
	r.printf("Error: %s\n", message)
}

func (r *textRenderer) ShowStopInfo(info controller.StopInfo) {
	r.printf("%s\n%s\n", info.Title, info.Subtitle)
	if info.Status != "" {
		r.printf("(%s)\n", info.Status)
	}
}

func (r *textRenderer) ShowServices(services []string) {
	r.printf("Services: %s\n", strings.Join(services, ", "))
}

func (r *textRenderer) ShowArrivals(view controller.ArrivalsView) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "\nBus %s at %s", view.ServiceNo, view.StopCode)
	if view.Demo {
		fmt.Fprint(r.out, " [demo]")
	}
	fmt.Fprintf(r.out, "  (updated %s)\n", view.UpdatedAt.Format("15:04:05"))

	if len(view.Slots) == 0 {
		fmt.Fprintln(r.out, "  No buses")
		return
	}
	for _, s := range view.Slots {
		fmt.Fprintf(r.out, "  %-8s %-7s %-9s %-9s %s\n", s.Label, s.Minutes, s.Clock, s.Crowd.Label, s.Vehicle)
	}
}

func (r *textRenderer) SetFavoriteIndicator(active bool) {
	if active {
		r.printf("  * favorite\n")
	}
}

func (r *textRenderer) ShowFavorites(favs []controller.FavoriteView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiet {
		return
	}

	if len(favs) == 0 {
		fmt.Fprintln(r.out, "No favorites yet")
		return
	}
	fmt.Fprintln(r.out, "Favorites:")
	for _, f := range favs {
		timings := "--"
		if len(f.Timings) > 0 {
			timings = strings.Join(f.Timings, " / ")
		}
		fmt.Fprintf(r.out, "  %-5s @ %s  %s\n", f.ServiceNo, f.StopCode, timings)
	}
}

func (r *textRenderer) ShowRecent(codes []string) {}

func (r *textRenderer) ShowSuggestions(results []controller.Suggestion) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(results) == 0 {
		fmt.Fprintln(r.out, "No matching stops")
		return
	}
	for _, s := range results {
		line := fmt.Sprintf("  %s  %s, %s", s.StopCode, s.Description, s.RoadName)
		if d := s.DistanceLabel(); d != "" {
			line += "  (" + d + ")"
		}
		fmt.Fprintln(r.out, line)
	}
}

func (r *textRenderer) HideSuggestions() {}

func (r *textRenderer) ApplyTheme(theme string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.theme = theme
}

func (r *textRenderer) Theme() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.theme
}

func (r *textRenderer) Notify(message string) {
	r.printf("%s\n", message)
}

// lineConfirmer asks on out and reads a y/N answer from in. assumeYes skips
// the question.
type lineConfirmer struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func newLineConfirmer(in io.Reader, out io.Writer, assumeYes bool) *lineConfirmer {
	return &lineConfirmer{in: bufio.NewReader(in), out: out, assumeYes: assumeYes}
}

func (c *lineConfirmer) Confirm(prompt string) bool {
	if c.assumeYes {
		return true
	}
	fmt.Fprintf(c.out, "%s [y/N] ", prompt)
	answer, err := c.in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
