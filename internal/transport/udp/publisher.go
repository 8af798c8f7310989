// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"formant/internal/config"
	"formant/internal/control"
	"formant/internal/dsp"
	"formant/internal/log"
)

// SpectrumSource provides the newest analyzed spectrum. transport.Latest
// implements it.
type SpectrumSource interface {
	LatestInto(dst *dsp.Spectrum) (control.Result, bool)
}

// Sender writes one datagram. UDPSender implements it.
type Sender interface {
	Send(data []byte) error
}

// Bins is the number of one-sided spectrum bins carried per packet.
const Bins = config.FrameSize/2 + 1

// HeaderSize is the fixed packet header length in bytes.
const HeaderSize = 4 + 8 + 8 + 2 + 2

// PacketSize is the full length of a spectrum packet.
const PacketSize = HeaderSize + Bins*2

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp: short spectrum packet")

// UDPPublisher periodically packs the newest spectrum into a binary packet
// and sends it. A tick with no new frame since the last packet sends nothing.
type UDPPublisher struct {
	sender   Sender
	source   SpectrumSource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32
	lastFrame   uint64

	// Reused every tick.
	spectrum dsp.Spectrum
	packet   []byte
}

// NewUDPPublisher creates a publisher. An interval <= 0 defaults to the
// frame period.
func NewUDPPublisher(interval time.Duration, sender Sender, source SpectrumSource) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: spectrum source cannot be nil")
	}
	if interval <= 0 {
		interval = config.FramePeriod
		log.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	log.Infof("UDPPublisher: Initializing (Interval: %s, Bins: %d, Packet: %d bytes)", interval, Bins, PacketSize)
	return &UDPPublisher{
		sender:   sender,
		source:   source,
		interval: interval,
		packet:   make([]byte, 0, PacketSize),
	}, nil
}

// Start launches the publishing goroutine. Calling Start while running is a
// no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("UDPPublisher: Start called but already running.")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Locals so the goroutine does not race with Stop clearing the fields.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it. Safe to call repeatedly.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	log.Infof("UDPPublisher: Stopped after %d packets.", p.sequenceNum)
	return nil
}

/*
Spectrum packet, big endian:

	+-----------------+--------+------+---------------------------------+
	| Field           | Type   | Size | Description                     |
	+-----------------+--------+------+---------------------------------+
	| Sequence Number | uint32 | 4    | Packet counter                  |
	| Timestamp       | int64  | 8    | Send time, ns since epoch       |
	| Frame           | uint64 | 8    | Loop iteration of the spectrum  |
	| Peak Bin        | int16  | 2    | Classified bin, -1 if none      |
	| Bin Count       | uint16 | 2    | N, always 257                   |
	| Power           | []int16| N*2  | Bins 0..256 of the spectrum     |
	+-----------------+--------+------+---------------------------------+
*/

// Packet is a decoded spectrum packet.
type Packet struct {
	Sequence  uint32
	Timestamp time.Time
	Frame     uint64
	PeakBin   int16
	Power     []int16
}

// publish builds and sends one packet if a new spectrum is available.
func (p *UDPPublisher) publish() {
	res, ok := p.source.LatestInto(&p.spectrum)
	if !ok || res.Seq == p.lastFrame {
		return
	}
	p.lastFrame = res.Seq
	p.sequenceNum++

	b := p.packet[:0]
	b = binary.BigEndian.AppendUint32(b, p.sequenceNum)
	b = binary.BigEndian.AppendUint64(b, uint64(time.Now().UnixNano()))
	b = binary.BigEndian.AppendUint64(b, res.Seq)
	b = binary.BigEndian.AppendUint16(b, uint16(int16(res.Bin)))
	b = binary.BigEndian.AppendUint16(b, Bins)
	for _, v := range p.spectrum[:Bins] {
		b = binary.BigEndian.AppendUint16(b, uint16(v))
	}
	p.packet = b

	// Send failures are counted and logged by the sender.
	_ = p.sender.Send(b)
}

// DecodePacket parses a spectrum packet.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	be := binary.BigEndian
	pkt := Packet{
		Sequence:  be.Uint32(b[0:]),
		Timestamp: time.Unix(0, int64(be.Uint64(b[4:]))),
		Frame:     be.Uint64(b[12:]),
		PeakBin:   int16(be.Uint16(b[20:])),
	}
	n := int(be.Uint16(b[22:]))
	if len(b) < HeaderSize+2*n {
		return Packet{}, ErrShortPacket
	}
	pkt.Power = make([]int16, n)
	for i := range pkt.Power {
		pkt.Power[i] = int16(be.Uint16(b[HeaderSize+2*i:]))
	}
	return pkt, nil
}

// Close stops the publisher.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
