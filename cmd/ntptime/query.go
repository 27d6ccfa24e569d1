package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/AndrewLester/ntptime/internal/ntp"
	"github.com/AndrewLester/ntptime/internal/sugar"
	"github.com/AndrewLester/ntptime/internal/ui"
	"github.com/AndrewLester/ntptime/pkg/ntptime"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	beevik "github.com/beevik/ntp"
)

type queryFlags struct {
	plain   bool
	compare bool
	set     bool
}

const compareTimeout = 5 * time.Second

var errQueryCancelled = errors.New("query cancelled")

func handleQueryCommand(config ntptime.Config, flags queryFlags) {
	transport := config.Transport()
	requester := ntptime.NewRequester(transport, nil)

	var result queryResult
	var err error
	if flags.plain {
		result, err = runPlainQuery(config, requester)
	} else {
		result, err = runQueryProgram(config, requester)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	result.server = config.Server
	if addr := transport.Server(); addr != nil {
		result.address = addr.IP.String()
	}
	result.offset = time.Unix(result.seconds, 0).Sub(time.Now().Truncate(time.Second))

	fmt.Println(result.String())
	if header, err := ntp.ParseHeader(result.response); err == nil {
		fmt.Println(describeHeader(header))
	}

	if flags.compare {
		compareResult(config, result)
	}

	if flags.set {
		if err := ntptime.SetSystemClock(result.seconds); err != nil {
			fmt.Printf("Error setting clock: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("System clock set.")
	}
}

type queryResult struct {
	seconds  int64
	response []byte

	server  string
	address string
	offset  time.Duration
}

func (r queryResult) String() string {
	s := fmt.Sprint(r.seconds, " ", time.Unix(r.seconds, 0).UTC().Format(time.RFC3339), " ",
		ui.Offset(r.offset, ntptime.StepThreshold), " ", r.server)
	if r.address != "" && r.address != r.server {
		s += " " + r.address
	}
	return s
}

func describeHeader(header *ntp.Header) string {
	s := fmt.Sprintf("leap %d, version %d, mode %s, stratum %d, reference %s, poll %s, root delay %s, root dispersion %s",
		header.Leap, header.Version, header.Mode, header.Stratum, header.ReferenceName(),
		ntp.Log2ToDuration(header.Poll), ntp.ShortToDuration(header.Rootdelay), ntp.ShortToDuration(header.Rootdisp))
	if header.Version > ntp.Version {
		s += fmt.Sprintf(" (newer than version %d)", ntp.Version)
	}
	return s
}

func runPlainQuery(config ntptime.Config, requester *ntptime.Requester) (queryResult, error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seconds, err := ntptime.Query(ctx, requester, config.QueryOptions())
	if err != nil {
		return queryResult{}, err
	}
	return queryResult{seconds: seconds, response: requester.Response()}, nil
}

func runQueryProgram(config ntptime.Config, requester *ntptime.Requester) (queryResult, error) {
	if !requester.BeginRequest(config.Retries, config.RetryInterval, nil) {
		return queryResult{}, ntptime.ErrSendFailed
	}

	m := newQueryCommandModel(config, requester)
	final, err := sugar.RunProgram(m)
	if err != nil {
		return queryResult{}, err
	}
	return final.result, nil
}

// compareResult checks the whole-second result against a full SNTP
// exchange with the same server.
func compareResult(config ntptime.Config, result queryResult) {
	port, err := strconv.Atoi(config.Port)
	if err != nil {
		fmt.Printf("Error comparing: invalid port %q\n", config.Port)
		return
	}
	response, err := beevik.QueryWithOptions(config.Server, beevik.QueryOptions{
		Timeout: compareTimeout,
		Port:    port,
	})
	if err != nil {
		fmt.Printf("Error comparing: %v\n", err)
		return
	}
	if err := response.Validate(); err != nil {
		fmt.Printf("Error comparing: %v\n", err)
		return
	}
	fmt.Println(describeComparison(result.seconds, response.Time, response.RTT))
}

func describeComparison(seconds int64, reference time.Time, rtt time.Duration) string {
	difference := time.Unix(seconds, 0).Sub(reference.Truncate(time.Second))
	return fmt.Sprintf("sntp %s (rtt %s), difference %s",
		reference.UTC().Format(time.RFC3339Nano), rtt, ui.Offset(difference, ntptime.StepThreshold))
}

const (
	padding  = 10
	maxWidth = 80
)

type queryCommandModel struct {
	requester *ntptime.Requester
	server    string
	pump      time.Duration

	progress progress.Model
	result   queryResult
	done     bool
	err      error
}

type pumpMsg time.Time

func newQueryCommandModel(config ntptime.Config, requester *ntptime.Requester) queryCommandModel {
	pump := config.Pump
	if pump <= 0 {
		pump = ntptime.DefaultPump
	}
	return queryCommandModel{
		requester: requester,
		server:    config.Server,
		pump:      pump,
		progress:  progress.New(progress.WithScaledGradient("#68b1b1", "#6ea4ff")),
	}
}

func pumpCommand(duration time.Duration) tea.Cmd {
	return tea.Tick(duration, func(t time.Time) tea.Msg {
		return pumpMsg(t)
	})
}

func (m queryCommandModel) Init() tea.Cmd {
	return pumpCommand(m.pump)
}

func (m queryCommandModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.err = errQueryCancelled
			return m, tea.Quit
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - padding*2 - 4
		if m.progress.Width > maxWidth {
			m.progress.Width = maxWidth
		}
		return m, nil
	case pumpMsg:
		m.requester.Update()
		if m.requester.RequestReceived() {
			m.result = queryResult{
				seconds:  m.requester.RequestResult(),
				response: m.requester.Response(),
			}
			m.done = true
			return m, tea.Quit
		}
		if !m.requester.Requesting() {
			m.err = ntptime.ErrNoResponse
			return m, tea.Quit
		}
		return m, pumpCommand(m.pump)
	default:
		return m, nil
	}
}

// percent is the share of the retry budget used. Unlimited requests cycle.
func (m queryCommandModel) percent() float64 {
	retries := m.requester.Retries()
	limit := m.requester.RetryLimit()
	if limit == 0 {
		return float64(retries%10) / 10
	}
	return float64(retries) / float64(limit)
}

func (m queryCommandModel) View() (s string) {
	if m.err != nil || m.done {
		return
	}

	s += ui.Title("ntptime - Query "+m.server) + "\n\n"
	s += m.progress.ViewAs(m.percent()) + "\n\n"
	s += ui.Help("q: exit") + "\n"
	return
}

func (m queryCommandModel) GetError() error {
	return m.err
}
