package pdb

// Let the external tests get at some internals.
var (
	ElementFromName = elementFromName
	Comparefirst    = comparefirst
	LookInData      = lookInData
	MaxLine         = maxLine
)
