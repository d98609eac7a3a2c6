package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bubble-overlay/src/config"
	"bubble-overlay/src/eventloop"
	"bubble-overlay/src/hotkey"
	"bubble-overlay/src/screenshot"
	"bubble-overlay/src/singleinstance"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"bubble-overlay", "-viewer", "-api-key-path", "/tmp/key"},
			out:  []string{"bubble-overlay", "--viewer", "--api-key-path", "/tmp/key"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"bubble-overlay", "-delay=250ms", "-region=0,0,100,100"},
			out:  []string{"bubble-overlay", "--delay=250ms", "--region=0,0,100,100"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{"bubble-overlay", "--tray", "-v", "-regions"},
			out:  []string{"bubble-overlay", "--tray", "-v", "-regions"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.out, normalizeLegacyArgs(tt.in))
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--viewer", "--delay", "250ms", "--region", "1,2,300,400", "--env", "/tmp/x.env"}))

	assert.True(t, opts.viewer)
	assert.Equal(t, 250*time.Millisecond, opts.delay)
	assert.Equal(t, "1,2,300,400", opts.region)
	assert.Equal(t, "/tmp/x.env", opts.envPath)
}

func TestCheckOptions(t *testing.T) {
	assert.NoError(t, checkOptions(mainOptions{tray: true, region: "0,0,200,100"}))
	assert.Error(t, checkOptions(mainOptions{viewer: true, tray: true}))
	assert.ErrorIs(t, checkOptions(mainOptions{delay: -time.Second}), config.ErrInvalidDelay)
	assert.ErrorIs(t, checkOptions(mainOptions{region: "a,b"}), screenshot.ErrInvalidRect)
}

func TestChordMap(t *testing.T) {
	m := hotkey.NewMatcher()
	got := chordMap(m)
	assert.Len(t, got, 4)
	assert.Equal(t, "Escape", got[hotkey.ActionStopAlt].String())
}

func TestCheckOptionsSend(t *testing.T) {
	assert.NoError(t, checkOptions(mainOptions{send: "snip"}))
	assert.Error(t, checkOptions(mainOptions{send: "jump"}))
}

func TestResidentHandler(t *testing.T) {
	var posted []hotkey.Action
	accept := true
	h := residentHandler(func(a hotkey.Action) bool {
		posted = append(posted, a)
		return accept
	})

	reply, err := h(singleinstance.Request{Action: "start"})
	require.NoError(t, err)
	assert.Equal(t, "start queued", reply)

	_, err = h(singleinstance.Request{Action: "bogus"})
	assert.Error(t, err)

	accept = false
	_, err = h(singleinstance.Request{Action: "snip"})
	require.Error(t, err)
	assert.Equal(t, eventloop.MsgBusy, err.Error())

	assert.Equal(t, []hotkey.Action{hotkey.ActionStart, hotkey.ActionSnip}, posted)
}
