// feedwatch is a terminal monitor for a running flightfeed server. It polls
// one region and draws predicted positions on a radar scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skyroute/flightfeed/internal/feed"
	"github.com/skyroute/flightfeed/pkg/coordinates"
)

const (
	minRadius = 0.25
	maxRadius = 10.0
)

type model struct {
	client   *feedClient
	center   coordinates.Geographic
	radius   float64 // degrees
	interval time.Duration
	dest     string // airport code for lookups, optional

	result   feed.Result
	flights  []feed.Flight // sorted by callsign
	selected int
	detail   *feed.Flight
	lastPoll time.Time
	polling  bool
	err      error

	width  int
	height int
}

type tickMsg time.Time

type resultMsg struct {
	result feed.Result
	err    error
}

type detailMsg struct {
	flight *feed.Flight
	err    error
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) poll() tea.Cmd {
	client, center, radius := m.client, m.center, m.radius
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		result, err := client.Flights(ctx, center.Latitude, center.Longitude, radius)
		return resultMsg{result: result, err: err}
	}
}

func (m model) lookup(icao24 string) tea.Cmd {
	client := m.client
	req := feed.LookupRequest{ICAO24: icao24}
	if m.dest != "" {
		req.Destination = &feed.Destination{Airport: m.dest}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		flight, err := client.Lookup(ctx, req)
		return detailMsg{flight: flight, err: err}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.poll(), tick(m.interval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.detail = nil
			}
		case "down", "j":
			if m.selected < len(m.flights)-1 {
				m.selected++
				m.detail = nil
			}
		case "enter", " ":
			if m.selected < len(m.flights) {
				return m, m.lookup(m.flights[m.selected].ICAO24)
			}
		case "+", "=":
			// Zoom in
			m.radius = clampRadius(m.radius / 1.5)
			return m, m.poll()
		case "-", "_":
			m.radius = clampRadius(m.radius * 1.5)
			return m, m.poll()
		case "r":
			return m, m.poll()
		}

	case tickMsg:
		if m.polling {
			return m, tick(m.interval)
		}
		m.polling = true
		return m, tea.Batch(m.poll(), tick(m.interval))

	case resultMsg:
		m.polling = false
		m.lastPoll = time.Now()
		m.err = msg.err
		if msg.err == nil {
			m = m.withResult(msg.result)
		}

	case detailMsg:
		m.err = msg.err
		m.detail = msg.flight
	}

	return m, nil
}

// withResult installs a new result, keeping the selection on the same aircraft.
func (m model) withResult(result feed.Result) model {
	var selectedICAO string
	if m.selected < len(m.flights) {
		selectedICAO = m.flights[m.selected].ICAO24
	}

	flights := append([]feed.Flight(nil), result.Flights...)
	sort.Slice(flights, func(i, j int) bool {
		if flights[i].Callsign != flights[j].Callsign {
			return flights[i].Callsign < flights[j].Callsign
		}
		return flights[i].ICAO24 < flights[j].ICAO24
	})

	m.result = result
	m.flights = flights
	m.selected = 0
	for i, f := range flights {
		if f.ICAO24 == selectedICAO {
			m.selected = i
			break
		}
	}
	return m
}

func clampRadius(r float64) float64 {
	if r < minRadius {
		return minRadius
	}
	if r > maxRadius {
		return maxRadius
	}
	return r
}

func (m model) View() string {
	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	s.WriteString(titleStyle.Render("FLIGHTFEED WATCH"))
	s.WriteString("  ")
	s.WriteString(m.renderStatus())
	s.WriteString("\n\n")

	radar := strings.Split(m.renderRadar(), "\n")
	list := strings.Split(m.renderFlightList(), "\n")
	w, _ := m.radarSize()

	lines := len(radar)
	if len(list) > lines {
		lines = len(list)
	}
	for i := 0; i < lines; i++ {
		if i < len(radar) {
			s.WriteString(radar[i])
		} else {
			s.WriteString(strings.Repeat(" ", w+2))
		}
		s.WriteString("  ")
		if i < len(list) {
			s.WriteString(list[i])
		}
		s.WriteString("\n")
	}

	if m.detail != nil {
		s.WriteString("\n")
		s.WriteString(renderDetail(*m.detail))
	}

	if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		s.WriteString("\n")
		s.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: Select  ENTER: Details  +/-: Zoom  R: Refresh  Q: Quit"))
	s.WriteString("\n")

	return s.String()
}

// renderStatus shows the feed flags of the last poll.
func (m model) renderStatus() string {
	badge := func(label string, on bool) string {
		color := lipgloss.Color("241")
		if on {
			color = lipgloss.Color("46")
		}
		return lipgloss.NewStyle().Foreground(color).Render(label)
	}

	parts := []string{
		fmt.Sprintf("%.3f,%.3f r=%.2f°", m.center.Latitude, m.center.Longitude, m.radius),
		badge("AUTH", m.result.Authenticated),
		badge("CACHED", m.result.Cached),
	}
	if m.result.Timestamp > 0 {
		age := time.Since(time.UnixMilli(m.result.Timestamp)).Round(time.Second)
		parts = append(parts, fmt.Sprintf("data age %v", age))
	}
	if m.result.Error != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Render("upstream: "+m.result.Error))
	}
	return strings.Join(parts, "  ")
}

func (m model) renderFlightList() string {
	var list strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	list.WriteString(headerStyle.Render(fmt.Sprintf("%d FLIGHTS", len(m.flights))))
	list.WriteString("\n")

	if len(m.flights) == 0 {
		list.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  No flights in range"))
		return list.String()
	}

	_, h := m.radarSize()
	start := 0
	if m.selected >= h-2 {
		start = m.selected - (h - 3)
	}

	for i := start; i < len(m.flights) && i < start+h-2; i++ {
		f := m.flights[i]
		callsign := f.Callsign
		if callsign == "" {
			callsign = "-"
		}
		alt := "   ground"
		if !f.OnGround {
			alt = "        -"
			if f.PredictedAltitude != nil {
				alt = fmt.Sprintf("%7.0f m", *f.PredictedAltitude)
			}
		}
		line := fmt.Sprintf("%-6s %-8s %s %5.0f km/h %3.0f°", f.ICAO24, callsign, alt,
			f.Velocity*coordinates.MetersPerSecondToKmh, f.TrueTrack)

		if i == m.selected {
			line = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")).Render("▶ " + line)
		} else {
			line = "  " + line
		}
		list.WriteString(line)
		list.WriteString("\n")
	}

	return strings.TrimRight(list.String(), "\n")
}

func renderDetail(f feed.Flight) string {
	var d strings.Builder
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	d.WriteString(headerStyle.Render(fmt.Sprintf("%s %s", f.ICAO24, f.Callsign)))
	d.WriteString("\n")
	d.WriteString(fmt.Sprintf("  Origin: %s  Squawk: %s  Source: %s\n", f.OriginCountry, deref(f.Squawk), f.PositionSource))
	d.WriteString(fmt.Sprintf("  Observed: %.4f,%.4f  Predicted: %.4f,%.4f\n",
		f.Latitude, f.Longitude, f.PredictedPosition.Latitude, f.PredictedPosition.Longitude))
	if f.Airline != nil {
		d.WriteString(fmt.Sprintf("  Airline: %s (%s)\n", f.Airline.Name, f.Airline.ICAO))
	}
	if f.Aircraft != nil {
		d.WriteString(fmt.Sprintf("  Aircraft: %s %s %s\n", f.Aircraft.Registration, f.Aircraft.Manufacturer, f.Aircraft.Model))
	}
	if f.Destination != nil {
		name := f.Destination.Code
		if name == "" {
			name = fmt.Sprintf("%.4f,%.4f", f.Destination.Latitude, f.Destination.Longitude)
		}
		d.WriteString(fmt.Sprintf("  Destination: %s  %.0f nm to go\n", name,
			coordinates.DistanceNauticalMiles(f.PredictedPosition, f.Destination.Position())))
	}
	return d.String()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func main() {
	server := flag.String("server", "http://localhost:8080", "flightfeed server URL")
	lat := flag.Float64("lat", 40.64, "Region centre latitude")
	lng := flag.Float64("lng", -73.78, "Region centre longitude")
	radius := flag.Float64("radius", feed.DefaultRadius, "Region radius in degrees")
	interval := flag.Duration("interval", 5*time.Second, "Poll interval")
	dest := flag.String("dest", "", "Airport code to route looked-up flights to")
	flag.Parse()

	m := model{
		client:   newFeedClient(*server),
		center:   coordinates.Geographic{Latitude: *lat, Longitude: *lng},
		radius:   clampRadius(*radius),
		interval: *interval,
		dest:     strings.ToUpper(strings.TrimSpace(*dest)),
		width:    120,
		height:   40,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
