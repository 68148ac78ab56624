package activity

// Missing is the display form of a field the payload did not carry. It is
// never written back to a payload.
const Missing = "[missing]"

// Text is an optional string field. The zero value is absent, which is
// distinct from a present empty string.
type Text struct {
	Value string
	Valid bool
}

// Some returns a present Text.
func Some(s string) Text {
	return Text{Value: s, Valid: true}
}

// String returns the value, or Missing when absent.
func (t Text) String() string {
	if !t.Valid {
		return Missing
	}
	return t.Value
}

// Or returns the value, or def when absent.
func (t Text) Or(def string) string {
	if !t.Valid {
		return def
	}
	return t.Value
}
