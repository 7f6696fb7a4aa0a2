package query

import "github.com/jiraquery/jiraquery/pkg/issue"

// AggregateRequest is one pivot table: the issues matching JQL grouped by
// Group and SubGroup with Value reduced per cell.
type AggregateRequest struct {
	JQL      string                 `json:"jql"`
	Group    issue.FieldGrouping    `json:"group"`
	SubGroup issue.FieldGrouping    `json:"subGroup"`
	Value    issue.FieldAggregation `json:"value"`
}

// SelectFields lists the fields the request reads.
func (r AggregateRequest) SelectFields() []string {
	return []string{r.Group.Field, r.SubGroup.Field, r.Value.Field}
}

// ComparisonRequest is a baseline and a comparison pivot table over two
// queries. Nil comparison groupings fall back to the baseline's.
type ComparisonRequest struct {
	BaselineJQL     string                 `json:"baselineJql"`
	CompareJQL      string                 `json:"compareJql"`
	Group           issue.FieldGrouping    `json:"group"`
	CompareGroup    *issue.FieldGrouping   `json:"compareGroup,omitempty"`
	SubGroup        issue.FieldGrouping    `json:"subGroup"`
	CompareSubGroup *issue.FieldGrouping   `json:"compareSubGroup,omitempty"`
	Value           issue.FieldAggregation `json:"value"`
}

// Baseline returns the request for the baseline table.
func (r ComparisonRequest) Baseline() AggregateRequest {
	return AggregateRequest{JQL: r.BaselineJQL, Group: r.Group, SubGroup: r.SubGroup, Value: r.Value}
}

// Comparison returns the request for the comparison table.
func (r ComparisonRequest) Comparison() AggregateRequest {
	req := AggregateRequest{JQL: r.CompareJQL, Group: r.Group, SubGroup: r.SubGroup, Value: r.Value}
	if r.CompareGroup != nil {
		req.Group = *r.CompareGroup
	}
	if r.CompareSubGroup != nil {
		req.SubGroup = *r.CompareSubGroup
	}
	return req
}
