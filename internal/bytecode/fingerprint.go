package bytecode

import "github.com/segmentio/fasthash/fnv1a"

// Fingerprint hashes the op/operand sequence. Positions do not contribute.
func (c *Chunk) Fingerprint() uint64 {
	h := fnv1a.Init64
	if c == nil {
		return h
	}
	for _, ins := range c.Code {
		h = fnv1a.AddString64(h, ins.Op.String())
		h = fnv1a.AddString64(h, "\x00")
		h = fnv1a.AddString64(h, ins.Operand)
		h = fnv1a.AddString64(h, "\x00")
	}
	return h
}
