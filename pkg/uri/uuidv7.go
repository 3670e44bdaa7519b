package uri

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// uuidv7Generator produces RFC 9562 UUIDv7 values that are strictly
// monotonic within a process: the 48-bit millisecond timestamp never moves
// backward (a wall clock regression is clamped to one millisecond past the
// last emitted timestamp), and calls landing in the
// same millisecond increment a 12-bit sequence in rand_a. Sequence
// overflow advances the timestamp by one millisecond.
type uuidv7Generator struct {
	mu         sync.Mutex
	now        func() time.Time
	lastMillis uint64
	seq        uint16
	hasLast    bool
}

var defaultV7 = &uuidv7Generator{now: time.Now}

func (g *uuidv7Generator) next() (uuid.UUID, error) {
	var random [10]byte
	if _, err := rand.Read(random[:]); err != nil {
		return uuid.UUID{}, err
	}

	g.mu.Lock()
	millis := uint64(g.now().UnixMilli()) & 0xFFFFFFFFFFFF
	switch {
	case !g.hasLast || millis > g.lastMillis:
		g.lastMillis = millis
		g.hasLast = true
		// Start the sequence in the lower half to leave increment
		// headroom within this millisecond.
		g.seq = uint16(random[0]&0x07)<<8 | uint16(random[1])
	case millis < g.lastMillis:
		// The wall clock moved backward: clamp to one millisecond past
		// the last emitted timestamp and start a fresh sequence.
		g.lastMillis++
		g.seq = uint16(random[0]&0x07)<<8 | uint16(random[1])
		millis = g.lastMillis
	default:
		// Same millisecond: reuse the last timestamp and bump the
		// sequence.
		g.seq++
		if g.seq > 0x0FFF {
			g.lastMillis++
			g.seq = 0
		}
		millis = g.lastMillis
	}
	seq := g.seq
	g.mu.Unlock()

	var u uuid.UUID
	u[0] = byte(millis >> 40)
	u[1] = byte(millis >> 32)
	u[2] = byte(millis >> 24)
	u[3] = byte(millis >> 16)
	u[4] = byte(millis >> 8)
	u[5] = byte(millis)
	u[6] = 0x70 | byte(seq>>8)   // version 7 + high 4 bits of the sequence
	u[7] = byte(seq)             // low 8 bits of the sequence
	u[8] = 0x80 | random[2]&0x3F // variant 10 + 6 random bits
	u[9] = random[3]
	u[10] = random[4]
	u[11] = random[5]
	u[12] = random[6]
	u[13] = random[7]
	u[14] = random[8]
	u[15] = random[9]
	return u, nil
}
