package main

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AndrewLester/ntptime/internal/ntp"
	"github.com/AndrewLester/ntptime/pkg/ntptime"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopTransport answers every send with a fixed transmit time when reply is
// set.
type loopTransport struct {
	reply   bool
	seconds uint32
	pending []byte
	open    bool
}

func (l *loopTransport) Send(packet []byte) error {
	l.open = true
	l.pending = nil
	if l.reply {
		l.pending = make([]byte, ntp.PacketSize)
		l.pending[0] = 0b00100100
		l.pending[1] = 2
		l.pending[2] = 6
		binary.BigEndian.PutUint32(l.pending[4:], 0x00008000)
		binary.BigEndian.PutUint32(l.pending[8:], 0x00000800)
		copy(l.pending[12:], net.IPv4(192, 0, 2, 1).To4())
		binary.BigEndian.PutUint32(l.pending[40:], l.seconds)
	}
	return nil
}

func (l *loopTransport) Receive(packet []byte) (int, error) {
	if !l.open {
		return 0, net.ErrClosed
	}
	if l.pending == nil {
		return 0, nil
	}
	n := copy(packet, l.pending)
	l.pending = nil
	return n, nil
}

func (l *loopTransport) Close() error {
	l.open = false
	return nil
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ntptime.conf")
	require.NoError(t, os.WriteFile(path, []byte("server time.example.com port 1123\nretries 0\n"), 0o600))

	config, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "time.example.com", config.Server)
	assert.Equal(t, "1123", config.Port)
	assert.Zero(t, config.Retries)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.conf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("NTP_HOST", "env.example.com")
	t.Setenv("NTP_PORT", "1123")

	config := ntptime.DefaultConfig()
	config.ApplyEnvironment()
	overrides{server: "flag.example.com", retries: 0, interval: 50 * time.Millisecond}.apply(&config)

	assert.Equal(t, "flag.example.com", config.Server)
	assert.Equal(t, "1123", config.Port)
	assert.Zero(t, config.Retries)
	assert.Equal(t, 50*time.Millisecond, config.RetryInterval)
}

func TestUnsetFlagsKeepConfig(t *testing.T) {
	t.Setenv("NTP_HOST", "env.example.com")

	config := ntptime.DefaultConfig()
	config.ApplyEnvironment()
	overrides{retries: -1}.apply(&config)

	assert.Equal(t, "env.example.com", config.Server)
	assert.Equal(t, uint(ntptime.DefaultRetries), config.Retries)
	assert.Equal(t, ntptime.DefaultRetryInterval, config.RetryInterval)
}

func TestQueryModelReceives(t *testing.T) {
	requester := ntptime.NewRequester(&loopTransport{reply: true, seconds: 3_913_056_000}, nil)
	config := ntptime.DefaultConfig()
	require.True(t, requester.BeginRequest(3, time.Second, nil))

	m := newQueryCommandModel(config, requester)
	next, cmd := m.Update(pumpMsg(time.Now()))
	require.NotNil(t, cmd)

	final := next.(queryCommandModel)
	assert.True(t, final.done)
	assert.NoError(t, final.GetError())
	assert.Equal(t, int64(1_704_067_200), final.result.seconds)

	header, err := ntp.ParseHeader(final.result.response)
	require.NoError(t, err)
	assert.Equal(t, "leap 0, version 4, mode server, stratum 2, reference 192.0.2.1, poll 1m4s, root delay 500ms, root dispersion 31.25ms",
		describeHeader(header))
	assert.Empty(t, final.View())
}

func TestDescribeHeaderNewerVersion(t *testing.T) {
	header := &ntp.Header{Version: 5, Mode: ntp.SERVER}
	header.Stratum = 1
	header.Refid = 0x47505300
	assert.Equal(t, "leap 0, version 5, mode server, stratum 1, reference GPS, poll 1s, root delay 0s, root dispersion 0s (newer than version 4)",
		describeHeader(header))
}

func TestQueryModelNoResponse(t *testing.T) {
	requester := ntptime.NewRequester(&loopTransport{}, nil)
	require.True(t, requester.BeginRequest(1, time.Millisecond, nil))

	var m tea.Model = newQueryCommandModel(ntptime.DefaultConfig(), requester)
	require.Eventually(t, func() bool {
		m, _ = m.Update(pumpMsg(time.Now()))
		return m.(queryCommandModel).GetError() != nil
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, m.(queryCommandModel).GetError(), ntptime.ErrNoResponse)
	assert.False(t, requester.Requesting())
}

func TestQueryModelCancel(t *testing.T) {
	requester := ntptime.NewRequester(&loopTransport{}, nil)
	require.True(t, requester.BeginRequest(0, time.Second, nil))

	m := newQueryCommandModel(ntptime.DefaultConfig(), requester)
	assert.Contains(t, m.View(), "ntptime - Query "+ntptime.DefaultServer)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.ErrorIs(t, next.(queryCommandModel).GetError(), errQueryCancelled)
}

func TestQueryModelPercent(t *testing.T) {
	requester := ntptime.NewRequester(&loopTransport{}, nil)
	require.True(t, requester.BeginRequest(4, time.Second, nil))
	m := newQueryCommandModel(ntptime.DefaultConfig(), requester)
	assert.Zero(t, m.percent())
}

func TestQueryResultString(t *testing.T) {
	result := queryResult{seconds: 1_704_067_200, server: "time.example.com", address: "192.0.2.1"}
	s := result.String()
	assert.Contains(t, s, "1704067200 2024-01-01T00:00:00Z")
	assert.Contains(t, s, "time.example.com 192.0.2.1")

	result.address = "time.example.com"
	assert.NotContains(t, result.String(), "time.example.com time.example.com")
}

func TestDescribeComparison(t *testing.T) {
	reference := time.Unix(1_704_067_201, 250_000_000)
	s := describeComparison(1_704_067_200, reference, 12*time.Millisecond)
	assert.Contains(t, s, "rtt 12ms")
	assert.Contains(t, s, "-1s")
}

func TestStatusRows(t *testing.T) {
	now := time.Unix(1_704_067_260, 0)
	rows := statusRows(ntptime.Status{
		Server:     "time.example.com",
		Requesting: true,
		Retries:    2,
		LastResult: 1_704_067_200,
		LastSync:   time.Unix(1_704_067_200, 0),
		LastOffset: 3 * time.Second,
		Stepped:    true,
		Successes:  4,
		Failures:   1,
	}, now)

	assert.Equal(t, []string{"Server", "time.example.com"}, []string(rows[0]))
	assert.Equal(t, "requesting (2/unlimited)", rows[1][1])
	assert.Equal(t, "2024-01-01T00:00:00Z", rows[2][1])
	assert.Equal(t, "1m0s ago", rows[3][1])
	assert.Equal(t, "3s (stepped)", rows[4][1])
	assert.Equal(t, "4", rows[5][1])
	assert.Equal(t, "1", rows[6][1])
}

func TestStatusRowsBeforeFirstSync(t *testing.T) {
	rows := statusRows(ntptime.Status{Server: "time.example.com", RetryLimit: 3}, time.Now())
	assert.Equal(t, "idle", rows[1][1])
	assert.Equal(t, "never", rows[3][1])
	assert.Equal(t, "-", rows[4][1])
}
