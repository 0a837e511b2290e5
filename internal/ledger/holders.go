package ledger

import "likoin.network/lkn/internal/types"

// holderIndex is an enumerable set with O(1) add and remove. Removal moves
// the last entry into the freed slot, so positions change after removals.
type holderIndex struct {
	entries []types.Address
	pos     map[types.Address]int
}

func newHolderIndex() *holderIndex {
	return &holderIndex{pos: make(map[types.Address]int)}
}

func (h *holderIndex) add(who types.Address) {
	if _, ok := h.pos[who]; ok {
		return
	}
	h.pos[who] = len(h.entries)
	h.entries = append(h.entries, who)
}

func (h *holderIndex) remove(who types.Address) {
	i, ok := h.pos[who]
	if !ok {
		return
	}
	last := len(h.entries) - 1
	if i != last {
		moved := h.entries[last]
		h.entries[i] = moved
		h.pos[moved] = i
	}
	h.entries = h.entries[:last]
	delete(h.pos, who)
}

func (h *holderIndex) contains(who types.Address) bool {
	_, ok := h.pos[who]
	return ok
}

func (h *holderIndex) len() int { return len(h.entries) }

// at is 1-based.
func (h *holderIndex) at(n int) (types.Address, bool) {
	if n < 1 || n > len(h.entries) {
		return "", false
	}
	return h.entries[n-1], true
}

func (h *holderIndex) list() []types.Address {
	return append([]types.Address(nil), h.entries...)
}
