package aws

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// toEC2Tags converts a tag map to EC2 tags sorted by key.
func toEC2Tags(tags map[string]string) []ec2types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]ec2types.Tag, 0, len(keys))
	for _, k := range keys {
		result = append(result, ec2types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return result
}
