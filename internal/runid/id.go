// Package runid generates the correlation id attached to every log event of
// one uploader invocation.
package runid

import "github.com/google/uuid"

// Prefix marks ids produced by the uploader.
const Prefix = "upl-"

// Generate creates a new random run id, e.g. "upl-1b4e28ba-2fa1-11d2-883f-0016d3cca427".
func Generate() string {
	return Prefix + uuid.NewString()
}
