package chart

// Chart errors are user errors: something is wrong with a definition
// or with data aimed at one.

// ValidationError reports a defect found while validating a chart
// definition.
type ValidationError struct {
	ChartId string
	NodeId  string
	Reason  string
}

func (e *ValidationError) Error() string {
	s := `invalid chart "` + e.ChartId + `"`
	if e.NodeId != "" && e.NodeId != e.ChartId {
		s += ` at node "` + e.NodeId + `"`
	}
	return s + ": " + e.Reason
}

// InvalidNodeId occurs when a string doesn't parse as a scn:/// node
// id.
type InvalidNodeId struct {
	Id string
}

func (e *InvalidNodeId) Error() string {
	return `invalid node id "` + e.Id + `"`
}

// TypeMismatch occurs when a value doesn't fit a variable's declared
// type.
type TypeMismatch struct {
	Variable string
	Want     ValueType
	Got      ValueType
}

func (e *TypeMismatch) Error() string {
	s := "type mismatch"
	if e.Variable != "" {
		s += ` for variable "` + e.Variable + `"`
	}
	return s + ": want " + string(e.Want) + ", got " + string(e.Got)
}

// Incomparable occurs when two values have no ordering, such as a
// boolean against a string.
type Incomparable struct {
	A ValueType
	B ValueType
}

func (e *Incomparable) Error() string {
	return "cannot compare " + string(e.A) + " with " + string(e.B)
}

// UnresolvableTarget occurs when following start-node references from
// a node never reaches a leaf: a reference names a missing or foreign
// child, or a composite node lacks one.
type UnresolvableTarget struct {
	NodeId string
	Ref    string
	Reason string
}

func (e *UnresolvableTarget) Error() string {
	s := `cannot resolve a leaf from node "` + e.NodeId + `"`
	if e.Ref != "" {
		s += ` via start-node "` + e.Ref + `"`
	}
	if e.Reason != "" {
		s += ": " + e.Reason
	}
	return s
}
