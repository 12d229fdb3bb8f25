package descriptor

// Constraints carries the validation bounds a field or type declares. Known
// members pass through verbatim onto the compiled fragment. Other holds
// constraint kinds the compiler does not understand; they are dropped with a
// recorded warning, never fatally.
type Constraints struct {
	MinLength *int64
	MaxLength *int64
	Pattern   string

	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum bool
	ExclusiveMaximum bool
	MultipleOf       *float64

	MinItems    *int64
	MaxItems    *int64
	UniqueItems bool

	Format string

	// Other maps unsupported constraint names to their declared values.
	Other map[string]interface{}
}

// Empty reports whether no constraint at all is declared.
func (c *Constraints) Empty() bool {
	if c == nil {
		return true
	}
	return c.MinLength == nil && c.MaxLength == nil && c.Pattern == "" &&
		c.Minimum == nil && c.Maximum == nil && !c.ExclusiveMinimum && !c.ExclusiveMaximum &&
		c.MultipleOf == nil && c.MinItems == nil && c.MaxItems == nil && !c.UniqueItems &&
		c.Format == "" && len(c.Other) == 0
}

// Int64 returns a pointer to v, for constraint literals.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v, for constraint literals.
func Float64(v float64) *float64 { return &v }
