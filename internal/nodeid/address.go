package nodeid

// String serializes the Address into its canonical `kind:name` form.
func (a *Address) String() string {
	if a == nil {
		return ""
	}
	return string(a.Kind) + ":" + a.Name
}

// Equal checks for equality between two Address pointers.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return *a == *other
}
