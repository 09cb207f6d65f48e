package bridge

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CallbackPrefix namespaces callback ids generated by this bridge.
const CallbackPrefix = "meet_callback_"

// IDGenerator produces callback ids of the form <prefix><unix-millis>_<random>.
type IDGenerator struct {
	prefix string
	now    func() time.Time
	random func() string
}

// NewIDGenerator returns a generator using CallbackPrefix.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		prefix: CallbackPrefix,
		now:    time.Now,
		random: randomSuffix,
	}
}

// Next returns a fresh callback id.
func (g *IDGenerator) Next() string {
	var b strings.Builder
	b.WriteString(g.prefix)
	b.WriteString(strconv.FormatInt(g.now().UnixMilli(), 10))
	b.WriteByte('_')
	b.WriteString(g.random())
	return b.String()
}

// randomSuffix takes the first 12 hex digits of a v4 UUID (48 random bits).
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
