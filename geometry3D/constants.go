package geometry3D

const (
	VSMALL     = 1.0e-300
	ROOTVSMALL = 1.0e-150
	SMALL      = 1.0e-15
	// IntersectTolerance is the fraction of a source face area below which an
	// overlap is considered empty.
	IntersectTolerance = 1.0e-6
)
