package shell

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canbcm/bcm-go/pkg/frame"
	"github.com/canbcm/bcm-go/pkg/task"
	"github.com/canbcm/bcm-go/pkg/wire"
)

func TestParseSend(t *testing.T) {
	s := &Shell{}

	req, err := s.parse("send", []string{"0x123", "DEADBEEF"})
	require.NoError(t, err)

	assert.Equal(t, task.OpSend, req.Kind)
	require.Len(t, req.Frames, 1)
	assert.Equal(t, uint32(0x123), req.Frames[0].ID)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, req.Frames[0].Data)
	assert.Equal(t, frame.FlavorClassic, req.Frames[0].Flavor)
}

func TestParseSendFDShell(t *testing.T) {
	s := &Shell{fd: true}

	req, err := s.parse("send", []string{"0x123", "01"})
	require.NoError(t, err)
	assert.True(t, req.FD)
	assert.Equal(t, frame.FlavorFD, req.Frames[0].Flavor)
}

func TestParseSendEmptyPayload(t *testing.T) {
	s := &Shell{}

	req, err := s.parse("send", []string{"0x123", "-"})
	require.NoError(t, err)
	assert.Empty(t, req.Frames[0].Data)
}

func TestParseCyclic(t *testing.T) {
	s := &Shell{}

	req, err := s.parse("cyclic", []string{"0x100", "01", "10ms", "5", "1s"})
	require.NoError(t, err)

	assert.Equal(t, task.OpSetupCyclic, req.Kind)
	require.Len(t, req.Params, 1)
	assert.Equal(t, uint32(5), req.Params[0].Count)
	assert.Equal(t, wire.TimevalFromDuration(10*time.Millisecond), req.Params[0].Ival1)
	assert.Equal(t, wire.TimevalFromDuration(time.Second), req.Params[0].Ival2)
}

func TestParseCyclicWithoutCount(t *testing.T) {
	s := &Shell{}

	req, err := s.parse("cyclic", []string{"0x100", "01", "100ms"})
	require.NoError(t, err)

	assert.Equal(t, uint32(0), req.Params[0].Count)
	assert.True(t, req.Params[0].Ival1.IsZero())
	assert.Equal(t, wire.TimevalFromDuration(100*time.Millisecond), req.Params[0].Ival2)
}

func TestParseSequence(t *testing.T) {
	s := &Shell{}

	req, err := s.parse("sequence", []string{"0x700", "100ms", "0x101:01", "0x102:02"})
	require.NoError(t, err)

	assert.Equal(t, task.OpSetupSequence, req.Kind)
	assert.Equal(t, uint32(0x700), req.ID)
	require.Len(t, req.Frames, 2)
	assert.Equal(t, uint32(0x101), req.Frames[0].ID)
	assert.Equal(t, uint32(0x102), req.Frames[1].ID)
}

func TestParseFilterVariants(t *testing.T) {
	s := &Shell{}

	req, err := s.parse("filter", []string{"0x222"})
	require.NoError(t, err)
	assert.Equal(t, task.OpFilterID, req.Kind)
	assert.Empty(t, req.Params)

	req, err = s.parse("filter", []string{"0x222", "FF00"})
	require.NoError(t, err)
	assert.Equal(t, task.OpFilterMask, req.Kind)
	require.Len(t, req.Frames, 1)
	assert.Equal(t, []byte{0xFF, 0x00}, req.Frames[0].Data)

	req, err = s.parse("filter", []string{"0x222", "500ms"})
	require.NoError(t, err)
	assert.Equal(t, task.OpFilterID, req.Kind)
	require.Len(t, req.Params, 1)
	assert.Equal(t, wire.TimevalFromDuration(500*time.Millisecond), req.Params[0].Ival1)

	req, err = s.parse("filter", []string{"0x222", "FF00", "500ms"})
	require.NoError(t, err)
	assert.Equal(t, task.OpFilterMask, req.Kind)
	require.Len(t, req.Params, 1)
}

func TestParseDeletes(t *testing.T) {
	s := &Shell{}

	req, err := s.parse("delete", []string{"0x700"})
	require.NoError(t, err)
	assert.Equal(t, task.OpDeleteTx, req.Kind)
	assert.Equal(t, uint32(0x700), req.ID)

	req, err = s.parse("unfilter", []string{"0x222"})
	require.NoError(t, err)
	assert.Equal(t, task.OpDeleteRx, req.Kind)
}

func TestParseErrors(t *testing.T) {
	s := &Shell{}

	cases := [][]string{
		{"send", "0x123"},
		{"send", "notanid", "01"},
		{"send", "0x123", "XYZ"},
		{"cyclic", "0x100", "01", "notaduration"},
		{"sequence", "0x700", "100ms", "missingcolon"},
		{"bogus"},
	}
	for _, c := range cases {
		_, err := s.parse(c[0], c[1:])
		assert.Error(t, err, "command %v", c)
	}
}
