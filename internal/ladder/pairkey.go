package ladder

// PairKey identifies an unordered pair of players.
type PairKey struct {
	Min string
	Max string
}

// NewPairKey orders a and b so both argument orders give the same key.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{Min: a, Max: b}
}

func (k PairKey) String() string { return k.Min + "_" + k.Max }

// Has reports whether id is one of the two players.
func (k PairKey) Has(id string) bool { return k.Min == id || k.Max == id }

// Other returns the player paired with id.
func (k PairKey) Other(id string) string {
	if k.Min == id {
		return k.Max
	}
	return k.Min
}
