package cohort

// Class is the phenotype class an individual resolves to.
type Class int

const (
	Excluded Class = iota // missing phenotype, never part of the graph
	Control
	Case
)

func (c Class) String() string {
	switch c {
	case Case:
		return "case"
	case Control:
		return "control"
	default:
		return "excluded"
	}
}

// Individual is a study participant. IID is the unique key within a run.
type Individual struct {
	FID   string
	IID   string
	Class Class
	Raw   string // phenotype value as read from the table
}

// SampleRecord is one row of the sample table: FID IID.
type SampleRecord struct {
	FID string
	IID string
}

// PhenotypeRecord is one row of the phenotype table: FID IID value.
type PhenotypeRecord struct {
	FID   string
	IID   string
	Value string
}

// KinshipRecord is one row of the kinship table: IID1 IID2 metric.
type KinshipRecord struct {
	IID1   string
	IID2   string
	Metric float64
}
