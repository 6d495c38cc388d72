package storage

// CoerceToType converts the column to the target type. Matching types are
// identity: NUMERIC precision changes carry the data unchanged, and arrays,
// structs and ranges are identity only when element and field types match
// structurally. Everything else falls back to a row-by-row rebuild through
// Push, honoring the push coercion table; rows the table rejects become null.
func (c *Column) CoerceToType(target DataType) *Column {
	if c.typ.Equal(target) {
		if c.typ.Kind == KindNumeric || c.typ.Kind == KindBigNumeric {
			out := c.Clone()
			out.typ = target
			return out
		}
		return c.Clone()
	}
	out := NewColumn(target)
	for i := 0; i < c.Len(); i++ {
		if err := out.Push(c.GetValue(i)); err != nil {
			out.pushNullPlaceholder()
		}
	}
	return out
}
