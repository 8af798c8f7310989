// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"testing"
	"time"

	"formant/internal/control"
	"formant/internal/dsp"
	"formant/internal/transport"
	"formant/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUDPPublisherValidates(t *testing.T) {
	var latest transport.Latest
	_, err := NewUDPPublisher(time.Millisecond, nil, &latest)
	assert.Error(t, err)
	_, err = NewUDPPublisher(time.Millisecond, &utils.MockSink{}, nil)
	assert.Error(t, err)

	p, err := NewUDPPublisher(0, &utils.MockSink{}, &latest)
	require.NoError(t, err)
	assert.Positive(t, p.interval)
}

func TestPublishPacksNewestSpectrumOnce(t *testing.T) {
	var latest transport.Latest
	sender := &utils.MockSink{}
	p, err := NewUDPPublisher(time.Hour, sender, &latest)
	require.NoError(t, err)

	p.publish()
	_, n := sender.Last()
	assert.Zero(t, n, "nothing to send before the first frame")

	var spec dsp.Spectrum
	spec[0], spec[9], spec[256], spec[300] = 3, 512, -1, 77
	latest.Publish(&spec, control.Result{Seq: 12, Bin: 9})

	p.publish()
	p.publish() // Same frame; skipped.
	data, n := sender.Last()
	require.Equal(t, 1, n)

	pkt, err := DecodePacket(data)
	require.NoError(t, err)
	assert.Len(t, data, PacketSize)
	assert.Equal(t, uint32(1), pkt.Sequence)
	assert.Equal(t, uint64(12), pkt.Frame)
	assert.Equal(t, int16(9), pkt.PeakBin)
	require.Len(t, pkt.Power, Bins)
	assert.Equal(t, int16(3), pkt.Power[0])
	assert.Equal(t, int16(512), pkt.Power[9])
	assert.Equal(t, int16(-1), pkt.Power[256])
	assert.WithinDuration(t, time.Now(), pkt.Timestamp, time.Minute)

	latest.Publish(&spec, control.Result{Seq: 13, Bin: -1})
	p.publish()
	data, n = sender.Last()
	require.Equal(t, 2, n)
	pkt, err = DecodePacket(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pkt.Sequence)
	assert.Equal(t, int16(-1), pkt.PeakBin)
}

func TestPublishZeroAllocs(t *testing.T) {
	var latest transport.Latest
	p, err := NewUDPPublisher(time.Hour, discard{}, &latest)
	require.NoError(t, err)

	var spec dsp.Spectrum
	var seq uint64
	allocs := testing.AllocsPerRun(100, func() {
		seq++
		latest.Publish(&spec, control.Result{Seq: seq})
		p.publish()
	})
	assert.Zero(t, allocs)
}

type discard struct{}

func (discard) Send([]byte) error { return nil }

func TestDecodePacketShort(t *testing.T) {
	_, err := DecodePacket(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrShortPacket)

	header := make([]byte, HeaderSize)
	header[22], header[23] = 0, 4 // Claims four bins but carries none.
	_, err = DecodePacket(header)
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestPublisherOverRealSocket(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	sender, err := NewUDPSender(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()
	assert.Equal(t, conn.LocalAddr().String(), sender.Target())

	var latest transport.Latest
	var spec dsp.Spectrum
	spec[5] = 400
	latest.Publish(&spec, control.Result{Seq: 1, Bin: 5})

	p, err := NewUDPPublisher(5*time.Millisecond, sender, &latest)
	require.NoError(t, err)
	p.Start()
	p.Start() // Already running.
	defer p.Close()

	buf := make([]byte, 2*PacketSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)

	pkt, err := DecodePacket(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, int16(400), pkt.Power[5])
	assert.Equal(t, int16(5), pkt.PeakBin)

	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())
	sent, _ := sender.Counts()
	assert.Equal(t, uint64(1), sent, "one frame, one packet")
}

func TestSenderClosed(t *testing.T) {
	s, err := NewUDPSender("127.0.0.1:9")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send([]byte{1}), ErrSenderClosed)

	_, err = NewUDPSender("not an address")
	assert.Error(t, err)
}
