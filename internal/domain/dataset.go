package domain

// Dataset is the merged output of one raw-data load: every tract seen by
// any source, plus the cross-cutting context values.
type Dataset struct {
	Tracts        []*Tract
	WHO           WHOContext
	CDCLatestYear int
}
