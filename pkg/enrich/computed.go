package enrich

import "strings"

// Prefix namespaces computed fields so they never collide with source fields.
const Prefix = "X-"

// Computed field names.
const (
	FieldURL                           = Prefix + "Url"
	FieldStatusCategory                = Prefix + "StatusCategory"
	FieldAge                           = Prefix + "Age"
	FieldTimeInStatus                  = Prefix + "TimeInStatus"
	FieldTimeInCategory                = Prefix + "TimeInCategory"
	FieldLeadTime                      = Prefix + "LeadTime"
	FieldCycleTime                     = Prefix + "CycleTime"
	FieldCarriedOverSprint             = Prefix + "CarriedOverSprint"
	FieldCompletedSprint               = Prefix + "CompletedSprint"
	FieldCompletedSprintStartDate      = Prefix + "CompletedSprintStartDate"
	FieldCompletedSprintEndDate        = Prefix + "CompletedSprintEndDate"
	FieldTimeSinceStatusCategoryChange = Prefix + "TimeSinceStatusCategoryChange"
)

// Well-known source field names and aliases read by the computed fields.
const (
	SprintAlias       = "sprint"
	TimeInStatusAlias = "[CHART] Time in Status"

	createdKey                  = "created"
	resolutionDateKey           = "resolutiondate"
	statusKey                   = "status"
	statusCategoryChangeDateKey = "statuscategorychangedate"
)

// ComputedField describes one computed field and the source fields (names or
// aliases) it is derived from.
type ComputedField struct {
	Name      string
	DependsOn []string
}

// ComputedFields lists every computed field in a stable order.
var ComputedFields = []ComputedField{
	{FieldStatusCategory, []string{statusKey}},
	{FieldAge, []string{createdKey}},
	{FieldTimeInStatus, []string{TimeInStatusAlias}},
	{FieldTimeInCategory, []string{TimeInStatusAlias}},
	{FieldLeadTime, []string{resolutionDateKey, createdKey}},
	{FieldCycleTime, []string{TimeInStatusAlias, resolutionDateKey}},
	{FieldCarriedOverSprint, []string{SprintAlias, resolutionDateKey}},
	{FieldCompletedSprint, []string{SprintAlias, resolutionDateKey}},
	{FieldCompletedSprintStartDate, []string{SprintAlias, resolutionDateKey}},
	{FieldCompletedSprintEndDate, []string{SprintAlias, resolutionDateKey}},
	{FieldTimeSinceStatusCategoryChange, []string{statusCategoryChangeDateKey}},
	{FieldURL, nil},
}

// LookupComputed finds a computed field by name, case-insensitively.
func LookupComputed(name string) (ComputedField, bool) {
	for _, f := range ComputedFields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return ComputedField{}, false
}
