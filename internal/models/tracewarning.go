package models

// TraceWarningMetadata records one successfully verified trace-warning
// package. ID is the unix-hour bucket the package covers.
type TraceWarningMetadata struct {
	ID      int64
	Country string
	ETag    string
}

// TraceTimeIntervalWarning is a single decoded warning: an infected person
// was present at the location identified by LocationIDHash starting at
// StartIntervalNumber (10-minute buckets since epoch) for Period buckets.
type TraceTimeIntervalWarning struct {
	LocationIDHash        []byte
	StartIntervalNumber   uint32
	Period                uint32
	TransmissionRiskLevel uint32
}

// TraceWarningPackage is the decoded payload of one downloaded package.
type TraceWarningPackage struct {
	Warnings []TraceTimeIntervalWarning
}

// TraceTimeIntervalMatch links one check-in to one warning with positive
// temporal overlap. Matches are inserted exactly once and only ever removed
// by cascade when their check-in or source package metadata is deleted.
type TraceTimeIntervalMatch struct {
	ID                    string
	CheckinID             string
	PackageID             int64
	Country               string
	LocationIDHash        []byte
	TransmissionRiskLevel uint32
	StartIntervalNumber   uint32
	EndIntervalNumber     uint32
}
