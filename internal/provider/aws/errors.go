package aws

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// APIErrorMessage renders an EC2 API error as "Code: Message".
// Errors that did not come from the API are returned as is.
func APIErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}
