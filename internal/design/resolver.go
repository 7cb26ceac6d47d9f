package design

// Resolve turns tagged interpreter output into literal numeric deltas
// against the current snapshot.
//
// Absolute values pass through unchanged, including values for field names
// outside the schema; the parameter store drops those silently on update.
// A relative offset must be bound to the field it is keyed under and the
// field must exist in the schema, otherwise there is no base value to add
// the offset to and the change is rejected.
func Resolve(parsed map[string]ChangeValue, current Snapshot) (Delta, error) {
	delta := make(Delta, len(parsed))
	for field, change := range parsed {
		switch change.Kind {
		case Absolute:
			delta[field] = change.Value
		case RelativeOffset:
			if change.Field != field {
				return nil, &ResolutionError{
					Field: field,
					Raw:   "offset is bound to a different field: " + change.Field,
				}
			}
			if !IsField(field) {
				return nil, &ResolutionError{
					Field: field,
					Raw:   "relative change against unknown field",
				}
			}
			base, ok := current[field]
			if !ok {
				base = DefaultValue(field)
			}
			delta[field] = base + change.Offset
		default:
			return nil, &ResolutionError{Field: field, Raw: "unrecognized change kind"}
		}
	}
	return delta, nil
}
