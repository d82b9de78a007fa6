package store

import "iter"

// All returns a lazy, finite, non-restartable sequence over every
// occupied slot across all sub-indexes in key-length order (spec.md
// §4.6.3). The key and value slices are only valid for the duration of
// one yield; a consumer that needs to retain either must copy.
func (s *Store) All() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		for _, entry := range s.meta.Lengths {
			if !s.walkLength(entry, yield) {
				return
			}
		}
	}
}

// AllKeys is All without value decoding, for callers that only need keys
// (spec.md §4.6.3 "keys-only sequence").
func (s *Store) AllKeys() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, entry := range s.meta.Lengths {
			if !s.walkLengthKeys(entry, yield) {
				return
			}
		}
	}
}

func (s *Store) walkLength(entry LengthEntry, yield func([]byte, []byte) bool) bool {
	slotBase := s.meta.IndexRegionOffset + entry.IndexOffset
	for idx := int64(0); idx < entry.SlotCount; idx++ {
		slotOff := slotBase + idx*int64(entry.SlotSize)
		slot, err := s.mapped.slice(slotOff, int64(entry.SlotSize))
		if err != nil || isZero(slot) {
			continue
		}
		key := slot[:entry.Length]
		offset := readSlotOffset(slot[entry.Length:])
		if offset == vacantOffset {
			continue
		}
		value, ok, err := s.readValueAt(entry, offset)
		if err != nil || !ok {
			continue
		}
		if !yield(key, value) {
			return false
		}
	}
	return true
}

func (s *Store) walkLengthKeys(entry LengthEntry, yield func([]byte) bool) bool {
	slotBase := s.meta.IndexRegionOffset + entry.IndexOffset
	for idx := int64(0); idx < entry.SlotCount; idx++ {
		slotOff := slotBase + idx*int64(entry.SlotSize)
		slot, err := s.mapped.slice(slotOff, int64(entry.SlotSize))
		if err != nil || isZero(slot) {
			continue
		}
		key := slot[:entry.Length]
		offset := readSlotOffset(slot[entry.Length:])
		if offset == vacantOffset {
			continue
		}
		if !yield(key) {
			return false
		}
	}
	return true
}
