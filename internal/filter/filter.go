// Package filter builds the EC2 instance query shared by every shotty command.
package filter

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/yairfalse/shotty/pkg/resource"
)

// DefaultTagKey is the tag that identifies the project an instance belongs to.
const DefaultTagKey = "Project"

// Query selects instances by project tag and/or instance id.
// The zero value selects every instance.
type Query struct {
	TagKey     string
	Project    string
	InstanceID string
}

// New creates a Query for the given project and instance id.
func New(tagKey, project, instanceID string) Query {
	return Query{
		TagKey:     tagKey,
		Project:    project,
		InstanceID: instanceID,
	}
}

// Key returns the project tag key, falling back to DefaultTagKey.
func (q Query) Key() string {
	if q.TagKey == "" {
		return DefaultTagKey
	}
	return q.TagKey
}

// IsEmpty returns true if the query selects every instance.
func (q Query) IsEmpty() bool {
	return q.Project == "" && q.InstanceID == ""
}

// EC2Filters returns the DescribeInstances filters for the query.
// The tag filter always comes before the instance id filter.
func (q Query) EC2Filters() []ec2types.Filter {
	if q.IsEmpty() {
		return nil
	}

	filters := make([]ec2types.Filter, 0, 2)
	if q.Project != "" {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("tag:" + q.Key()),
			Values: []string{q.Project},
		})
	}
	if q.InstanceID != "" {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("instance-id"),
			Values: []string{q.InstanceID},
		})
	}
	return filters
}

// Matches returns true if the instance satisfies the query.
func (q Query) Matches(i resource.Instance) bool {
	if q.InstanceID != "" && i.ID != q.InstanceID {
		return false
	}
	if q.Project != "" && i.Tags[q.Key()] != q.Project {
		return false
	}
	return true
}

// String renders the query for log lines.
func (q Query) String() string {
	if q.IsEmpty() {
		return "all"
	}

	var parts []string
	if q.Project != "" {
		parts = append(parts, strings.ToLower(q.Key())+"="+q.Project)
	}
	if q.InstanceID != "" {
		parts = append(parts, "instance="+q.InstanceID)
	}
	return strings.Join(parts, " ")
}
